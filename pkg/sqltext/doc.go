// Package sqltext provides the dialect-tolerant text primitives used by the
// schemagraph parser: comment stripping, statement splitting, balance-aware
// comma splitting, identifier cleaning, keyword sets, and a small tokenizer.
//
// Nothing in this package fails on malformed input. Unbalanced parentheses and
// unterminated quotes degrade to "the rest of the string", and every scanner is
// bounded by the length of its input.
package sqltext
