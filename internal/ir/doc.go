// Package ir defines the data model shared across sheetflow: step kinds and
// their parameters, timeline items, compiled step records, patterns, apply
// jobs, cells, and structural operations.
//
// # Steps
//
// A step is a tagged union. Step.Params holds exactly one of the sealed
// parameter structs (ApplyFormula, InsertRow, ...), and Params.Kind() is the
// discriminant. Code that dispatches on a step does a single type switch over
// Params, so adding a kind surfaces every switch that must learn about it.
//
// # Compiled records
//
// Compiled patterns carry parameters as IRObject values rather than Go
// structs. IRObject has exactly one canonical JSON encoding (RFC 8785, see
// canonical.go), which gives compiled patterns byte-stable serialization and
// a content hash (see hash.go). Floats are not representable.
package ir
