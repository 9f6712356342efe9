package internal

import (
	"fmt"
	"strconv"
)

// DefaultAttrID ranks attributes that have no schema definition after every known one.
const DefaultAttrID = 9999

const (
	SegmentRoot = "ROOT"

	ClassPayload = "PAYLOAD"

	ElementUsageType = "USAGE_TYPE"
	ElementUsedFrom  = "USED_FROM_DT"
	ElementUsedThru  = "USED_THRU_DT"

	FeatureRecordType = "RECORD_TYPE"
)

type AttributeDefinition struct {
	AttrID      int     `json:"ATTR_ID"`
	AttrCode    string  `json:"ATTR_CODE"`
	AttrClass   string  `json:"ATTR_CLASS"`
	FeatureType *string `json:"FTYPE_CODE"`
	ElementCode *string `json:"FELEM_CODE"`
}

type FeatureDefinition struct {
	FeatureID   int    `json:"FTYPE_ID"`
	FeatureCode string `json:"FTYPE_CODE"`
}

// AttributeInstance is one resolved field occurrence of a record.
type AttributeInstance struct {
	AttributeDefinition
	UsageType string `json:"USAGE_TYPE,omitempty"`
	Value     any    `json:"ATTR_VALUE"`
}

// GroupCode is the code a resolved field is grouped under.
func (a AttributeInstance) GroupCode() string {
	if a.FeatureType != nil && *a.FeatureType != "" {
		return *a.FeatureType
	}
	return a.AttrCode
}

func (a AttributeInstance) Element() string {
	if a.ElementCode == nil {
		return ""
	}
	return *a.ElementCode
}

type NormalizedAttribute struct {
	Segment     string         `json:"SEGMENT"`
	AttrID      int            `json:"ATTR_ID"`
	Attribute   string         `json:"ATTRIBUTE"`
	FeatureType *string        `json:"FTYPE_CODE"`
	Value       string         `json:"ATTR_VALUE"`
	UsageType   string         `json:"USAGE_TYPE"`
	UsedFrom    any            `json:"USED_FROM_DT"`
	UsedThru    any            `json:"USED_THRU_DT"`
	Values      map[string]any `json:"ATTR_JSON"`
}

// StringValue returns the raw value stored under code as a string, or "".
func (n NormalizedAttribute) StringValue(code string) string {
	v, ok := n.Values[code]
	if !ok || v == nil {
		return ""
	}
	return FormatValue(v)
}

// FormatValue renders a raw record value the way it is joined into ATTR_VALUE.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

type RunCounts map[string]int
