// Package aggregates implements the question bank's persistence engine.
//
// The engine composes the table-level repos from internal/data/repos, owns the transaction
// boundary of every operation and converts all failures into coded question errors.
package aggregates
