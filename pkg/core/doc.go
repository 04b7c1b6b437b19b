// Package core defines the shared language of the schemagraph system.
//
// This package contains:
//   - Parsed schema entities (Table, Column, ForeignKeyRef, LineageEntry)
//   - The closed Provenance enumeration used for synthetic column types
//   - The renderer-facing graph projection (Node, Edge, Diagram)
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
