package models

// ColumnSemantics is the human-authored description of a column.
// The zero value is the empty descriptor used for unknown columns.
type ColumnSemantics struct {
	Description  string   `yaml:"description" json:"description"`
	DataType     string   `yaml:"data_type" json:"data_type,omitempty"`
	UniqueValues []string `yaml:"unique_values" json:"unique_values,omitempty"`
	UniqueCount  int      `yaml:"unique_count" json:"unique_count,omitempty"`
	Min          *float64 `yaml:"min" json:"min,omitempty"`
	Max          *float64 `yaml:"max" json:"max,omitempty"`
	Note         string   `yaml:"note" json:"note,omitempty"`
}

// SchemaSemantics maps column name to its description.
type SchemaSemantics map[string]ColumnSemantics
