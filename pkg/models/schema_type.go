package models

import (
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-health/pkg/apperrors"
)

// SchemaType identifies one of the safety event schema variants.
type SchemaType string

const (
	SchemaEITech         SchemaType = "ei_tech"
	SchemaSRS            SchemaType = "srs"
	SchemaNITCT          SchemaType = "ni_tct"
	SchemaNITCTAugmented SchemaType = "ni_tct_augmented"
)

const (
	semanticKeyPrefix  = "unsafe_events_"
	defaultTablePrefix = "unsafe_events_"
)

// SchemaTypes lists every supported schema type in display order.
var SchemaTypes = []SchemaType{SchemaEITech, SchemaSRS, SchemaNITCT, SchemaNITCTAugmented}

// SystemColumns are never assessed.
var SystemColumns = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
}

var criticalFields = map[SchemaType][]string{
	SchemaEITech:         {"event_id", "reporter_name", "reported_date", "branch", "region", "unsafe_event_type"},
	SchemaSRS:            {"event_id", "reporter_name", "reported_date", "branch", "region", "unsafe_event_type"},
	SchemaNITCT:          {"reporting_id", "reporter_name", "created_on", "branch_name", "region", "type_of_unsafe_event"},
	SchemaNITCTAugmented: {"reporting_id", "reporter_name", "created_on", "branch_name", "region", "type_of_unsafe_event"},
}

// ParseSchemaType validates s against the fixed enumeration.
func ParseSchemaType(s string) (SchemaType, error) {
	st := SchemaType(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := criticalFields[st]; !ok {
		return "", fmt.Errorf("%w: %q", apperrors.ErrUnknownSchemaType, s)
	}
	return st, nil
}

// Valid reports whether st is a known schema type.
func (st SchemaType) Valid() bool {
	_, ok := criticalFields[st]
	return ok
}

// DefaultTable returns the conventional table name for st.
func (st SchemaType) DefaultTable() string {
	return defaultTablePrefix + string(st)
}

// SemanticKey returns the key used in the semantic metadata file.
func (st SchemaType) SemanticKey() string {
	return semanticKeyPrefix + string(st)
}

// CriticalFields returns a copy of the critical column list for st.
func (st SchemaType) CriticalFields() []string {
	return append([]string(nil), criticalFields[st]...)
}

// IsCritical reports whether column is a critical field of st.
func (st SchemaType) IsCritical(column string) bool {
	for _, f := range criticalFields[st] {
		if f == column {
			return true
		}
	}
	return false
}
