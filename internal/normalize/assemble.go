package normalize

import (
	"sort"
	"strings"

	"szattr/internal"
)

// Assemble emits one NormalizedAttribute per group, in group creation order.
func Assemble(g *Groups) []internal.NormalizedAttribute {
	out := make([]internal.NormalizedAttribute, 0, g.Len())
	for _, key := range g.keys {
		out = append(out, assembleGroup(key, g.members[key]))
	}
	return out
}

func assembleGroup(key GroupKey, members []internal.AttributeInstance) internal.NormalizedAttribute {
	sorted := make([]internal.AttributeInstance, len(members))
	copy(sorted, members)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].AttrID < sorted[j].AttrID })

	attr := internal.NormalizedAttribute{
		Segment:   key.Segment,
		AttrID:    internal.DefaultAttrID,
		Attribute: key.Code,
		UsageType: key.UsageType,
		Values:    map[string]any{},
	}
	values := make([]string, 0, len(sorted))
	for _, m := range sorted {
		attr.AttrID = min(attr.AttrID, m.AttrID)
		switch m.Element() {
		case internal.ElementUsageType:
			attr.UsageType = internal.FormatValue(m.Value)
		case internal.ElementUsedFrom:
			attr.UsedFrom = m.Value
		case internal.ElementUsedThru:
			attr.UsedThru = m.Value
		default:
			values = append(values, internal.FormatValue(m.Value))
			attr.Values[m.AttrCode] = m.Value
		}
	}
	if n := len(sorted); n > 0 {
		attr.FeatureType = sorted[n-1].FeatureType
	}
	attr.Value = strings.Join(values, " ")
	return attr
}
