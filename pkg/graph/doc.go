// Package graph closes a parsed schema over its references and projects it
// onto renderer nodes and edges.
//
// Synthesize adds a stub table for every name that is referenced but never
// defined, so every edge endpoint exists. Build then classifies each
// relationship as lineage, uses or structural.
package graph
