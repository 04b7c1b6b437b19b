package graph

import "github.com/leapstack-labs/schemagraph/pkg/core"

// Edge tones.
const (
	toneLineage    = "#3b82f6"
	toneCteToCte   = "#8b5cf6"
	toneCteToView  = "#10b981"
	toneFormula    = "#f59e0b"
	toneUses       = "#cbd5e1"
	toneStructural = "#94a3b8"
)

// FormulaLabel marks lineage edges into calculated columns.
const FormulaLabel = "ƒx"

// UsesLabel marks coarse view-reads-table edges.
const UsesLabel = "uses"

func nodeStyle(t *core.Table) core.NodeStyle {
	switch {
	case t.IsCte:
		return core.NodeStyle{Border: "2px dashed #8b5cf6", Background: "#f5f3ff"}
	case t.IsView:
		return core.NodeStyle{Border: "2px solid #007acc", Background: "#eef9ff"}
	case t.IsStub:
		return core.NodeStyle{Border: "2px dashed #999", Background: "#fdfbf7", Opacity: 0.9}
	}
	return core.NodeStyle{}
}

// lineageTone picks the stroke of a lineage edge. Later rules win.
func lineageTone(source, target *core.Table, formula bool) string {
	tone := toneLineage
	sourceCte := source != nil && source.IsCte
	if sourceCte && target.IsCte {
		tone = toneCteToCte
	}
	if sourceCte && target.IsView && !target.IsCte {
		tone = toneCteToView
	}
	if formula {
		tone = toneFormula
	}
	return tone
}
