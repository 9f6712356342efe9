package normalize

import (
	"szattr/internal"
	"szattr/internal/schema"
)

// Parser turns serialized records into normalized attributes. The schema store is the only
// state it holds, so one Parser can serve many goroutines.
type Parser struct {
	resolver *Resolver
}

func NewParser(store *schema.Store) *Parser {
	return &Parser{resolver: NewResolver(store)}
}

func (p *Parser) Resolver() *Resolver { return p.resolver }

func (p *Parser) Store() *schema.Store { return p.resolver.store }

func (p *Parser) Parse(line []byte) ([]internal.NormalizedAttribute, error) {
	g, err := p.ParseGroups(line)
	if err != nil {
		return nil, err
	}
	return Assemble(g), nil
}

// ParseGroups stops after grouping, for callers that want segments without flattening.
func (p *Parser) ParseGroups(line []byte) (*Groups, error) {
	rec, err := ParseRecord(line)
	if err != nil {
		return nil, err
	}
	return p.resolver.Group(rec), nil
}

func (p *Parser) Normalize(rec Record) []internal.NormalizedAttribute {
	return Assemble(p.resolver.Group(rec))
}
