package normalize

import (
	"strings"

	"szattr/internal"
	"szattr/internal/schema"
)

// Resolver maps raw field names onto schema attribute definitions.
type Resolver struct {
	store *schema.Store
}

func NewResolver(store *schema.Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve never fails: a name the schema does not know becomes an unranked PAYLOAD attribute.
func (r *Resolver) Resolve(name string, value any) internal.AttributeInstance {
	code := strings.ToUpper(name)
	inst := internal.AttributeInstance{Value: value}

	if def, ok := r.store.Attribute(code); ok {
		inst.AttributeDefinition = def
		return inst
	}
	if def, label, ok := r.splitPrefixLabel(code); ok {
		inst.AttributeDefinition = def
		inst.UsageType = label
		return inst
	}
	if def, label, ok := r.splitSuffixLabel(code); ok {
		inst.AttributeDefinition = def
		inst.UsageType = label
		return inst
	}

	inst.AttributeDefinition = internal.AttributeDefinition{
		AttrID:    internal.DefaultAttrID,
		AttrCode:  code,
		AttrClass: internal.ClassPayload,
	}
	return inst
}

// splitPrefixLabel reads HOME_PHONE_NUMBER as label HOME on PHONE_NUMBER.
func (r *Resolver) splitPrefixLabel(code string) (internal.AttributeDefinition, string, bool) {
	idx := strings.Index(code, "_")
	if idx < 0 {
		return internal.AttributeDefinition{}, "", false
	}
	def, ok := r.store.Attribute(code[idx+1:])
	return def, code[:idx], ok
}

// splitSuffixLabel reads PHONE_NUMBER_HOME as label HOME on PHONE_NUMBER.
func (r *Resolver) splitSuffixLabel(code string) (internal.AttributeDefinition, string, bool) {
	idx := strings.LastIndex(code, "_")
	if idx < 0 {
		return internal.AttributeDefinition{}, "", false
	}
	def, ok := r.store.Attribute(code[:idx])
	return def, code[idx+1:], ok
}
