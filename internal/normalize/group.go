package normalize

import (
	"bytes"
	"strconv"

	json "github.com/goccy/go-json"

	"szattr/internal"
)

// GroupKey identifies one segment group. UsageType is the label known while grouping,
// before any USAGE_TYPE member of the group is seen.
type GroupKey struct {
	Segment   string
	Code      string
	UsageType string
}

func (k GroupKey) String() string {
	return k.Segment + "|" + k.Code + "|" + k.UsageType
}

// Groups accumulates resolved fields of a single record. Both groups and their members
// keep insertion order. A Groups value must not be shared between goroutines.
type Groups struct {
	keys    []GroupKey
	members map[GroupKey][]internal.AttributeInstance
}

func NewGroups() *Groups {
	return &Groups{members: map[GroupKey][]internal.AttributeInstance{}}
}

func (g *Groups) Add(segment string, inst internal.AttributeInstance) {
	key := GroupKey{Segment: segment, Code: inst.GroupCode(), UsageType: inst.UsageType}
	if _, ok := g.members[key]; !ok {
		g.keys = append(g.keys, key)
	}
	g.members[key] = append(g.members[key], inst)
}

// Keys returns the group keys in creation order.
func (g *Groups) Keys() []GroupKey {
	out := make([]GroupKey, len(g.keys))
	copy(out, g.keys)
	return out
}

func (g *Groups) Members(key GroupKey) []internal.AttributeInstance {
	return g.members[key]
}

func (g *Groups) Len() int { return len(g.keys) }

// Reset empties the accumulator so it can be reused for the next record.
func (g *Groups) Reset() {
	g.keys = g.keys[:0]
	clear(g.members)
}

func (g *Groups) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range g.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(key.String())
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		blob, err := json.Marshal(g.members[key])
		if err != nil {
			return nil, err
		}
		buf.Write(blob)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Group resolves every non-empty field of rec into a fresh accumulator.
func (r *Resolver) Group(rec Record) *Groups {
	g := NewGroups()
	r.GroupInto(g, rec)
	return g
}

// GroupInto resets g and fills it from rec.
func (r *Resolver) GroupInto(g *Groups, rec Record) {
	g.Reset()
	for _, f := range rec.Fields {
		if isEmpty(f.Value) {
			continue
		}
		children, ok := f.Value.([]any)
		if !ok {
			g.Add(internal.SegmentRoot, r.Resolve(f.Name, f.Value))
			continue
		}
		for i, c := range children {
			child, ok := c.(Record)
			if !ok {
				continue
			}
			segment := f.Name + "-" + strconv.Itoa(i+1)
			for _, cf := range child.Fields {
				if isEmpty(cf.Value) {
					continue
				}
				g.Add(segment, r.Resolve(cf.Name, cf.Value))
			}
		}
	}
}
