// Package parser turns SQL text into tables, views, CTEs and column lineage
// without a grammar. Each statement is matched with small token scanners, so
// unfamiliar dialect syntax costs precision, never the whole parse.
//
// Parse allocates all of its state per call and is safe for concurrent use.
package parser
