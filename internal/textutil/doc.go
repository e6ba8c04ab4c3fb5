// Package textutil provides small text helpers shared by the pipeline: word
// tokenization and counting, the meaningful-content heuristic applied to OCR
// output, and filesystem-safe tokens for chapter identifiers.
package textutil
