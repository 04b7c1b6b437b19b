package core

import "strings"

// Provenance records where a column's type information came from.
// Synthetic provenances stand in for a real type when none is known.
type Provenance string

// Provenance constants.
const (
	// ProvenanceDeclared means Type holds a declared SQL type (DDL or catalog).
	ProvenanceDeclared Provenance = ""
	// ProvenanceStart marks a column projected by a CTE.
	ProvenanceStart Provenance = "Start"
	// ProvenanceCalculated marks a column computed from an expression.
	ProvenanceCalculated Provenance = "Calculated"
	// ProvenanceMapped marks a column copied 1:1 from a source column.
	ProvenanceMapped Provenance = "Mapped"
	// ProvenanceSource marks a stub column observed in a query.
	ProvenanceSource Provenance = "Source"
	// ProvenanceStub marks the placeholder column of a stub with unknown schema.
	ProvenanceStub Provenance = "Stub"
	// ProvenanceUnparsed marks the placeholder column of a body without SELECT.
	ProvenanceUnparsed Provenance = "SQL"
)

// IsSynthetic reports whether the provenance replaces a real type.
func (p Provenance) IsSynthetic() bool {
	return p != ProvenanceDeclared
}

// Role is the rendering role of a table-like entity.
type Role string

// Role constants.
const (
	RoleTable Role = "table"
	RoleView  Role = "view"
	RoleCTE   Role = "cte"
)

// Placeholder column names used by stubs and unparsed bodies.
const (
	AllColumnsPlaceholder    = "All Columns (*)"
	OtherColumnsPlaceholder  = "... (others)"
	UnknownSchemaPlaceholder = "Unknown Schema"
	UnknownColumnsName       = "Unknown Cols"
	WildcardMarker           = "*"
)

// Column is a column of a table, view, CTE or stub.
type Column struct {
	Name          string     `json:"name" yaml:"name"`
	Type          string     `json:"type" yaml:"type"`
	Provenance    Provenance `json:"provenance,omitempty" yaml:"provenance,omitempty"`
	IsPrimaryKey  bool       `json:"isPk" yaml:"isPk"`
	IsForeignKey  bool       `json:"isFk" yaml:"isFk"`
	IsGroupingKey bool       `json:"isGrouping,omitempty" yaml:"isGrouping,omitempty"`
	IsSortKey     bool       `json:"isSortKey,omitempty" yaml:"isSortKey,omitempty"`
}

// SyntheticColumn returns a column whose type is its provenance label.
func SyntheticColumn(name string, p Provenance) Column {
	return Column{Name: name, Type: string(p), Provenance: p}
}

// ForeignKeyRef is a reference from a table to another table.
// A structural reference has empty Column and ReferencedColumn.
type ForeignKeyRef struct {
	Column           string `json:"col" yaml:"col"`
	ReferencedTable  string `json:"refTable" yaml:"refTable"`
	ReferencedColumn string `json:"refCol" yaml:"refCol"`
}

// IsStructural reports whether the reference carries no column detail.
func (f ForeignKeyRef) IsStructural() bool {
	return f.Column == "" && f.ReferencedColumn == ""
}

// LineageEntry is one column-level data-flow edge into the owning table.
type LineageEntry struct {
	SourceTable  string `json:"sourceTable" yaml:"sourceTable"`
	SourceColumn string `json:"sourceCol" yaml:"sourceCol"`
	TargetColumn string `json:"targetCol" yaml:"targetCol"`
	// Formula is the expression text when the target is calculated.
	Formula string `json:"formula,omitempty" yaml:"formula,omitempty"`
}

// HasFormula reports whether the target column is computed.
func (l LineageEntry) HasFormula() bool {
	return l.Formula != ""
}

// Table is a table, view, CTE or synthesized stub.
type Table struct {
	Name        string          `json:"name" yaml:"name"`
	Columns     []Column        `json:"columns" yaml:"columns"`
	ForeignKeys []ForeignKeyRef `json:"fks" yaml:"fks"`
	Lineage     []LineageEntry  `json:"lineage,omitempty" yaml:"lineage,omitempty"`
	IsView      bool            `json:"isView,omitempty" yaml:"isView,omitempty"`
	IsCte       bool            `json:"isCte,omitempty" yaml:"isCte,omitempty"`
	IsStub      bool            `json:"isStub,omitempty" yaml:"isStub,omitempty"`
}

// Role returns the rendering role of the table.
func (t *Table) Role() Role {
	switch {
	case t.IsCte:
		return RoleCTE
	case t.IsView:
		return RoleView
	default:
		return RoleTable
	}
}

// IsDerived reports whether the table is defined by a query (view or CTE).
func (t *Table) IsDerived() bool {
	return t.IsView || t.IsCte
}

// Column returns the first column with the given name, matched case-insensitively.
func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if strings.EqualFold(t.Columns[i].Name, name) {
			return &t.Columns[i]
		}
	}
	return nil
}

// ReferencedTables returns the distinct referenced table names in order.
func (t *Table) ReferencedTables() []string {
	seen := make(map[string]struct{}, len(t.ForeignKeys))
	var out []string
	for _, fk := range t.ForeignKeys {
		if _, ok := seen[fk.ReferencedTable]; ok {
			continue
		}
		seen[fk.ReferencedTable] = struct{}{}
		out = append(out, fk.ReferencedTable)
	}
	return out
}

// MarkSortKeys flags columns whose names appear in keys (case-insensitive).
func (t *Table) MarkSortKeys(keys []string) {
	for _, k := range keys {
		for i := range t.Columns {
			if strings.EqualFold(t.Columns[i].Name, k) {
				t.Columns[i].IsSortKey = true
			}
		}
	}
}
