// Package domain defines the core business entities for deepone.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - SearchResult: A single hit returned by an external search source
//   - AggregatedSource: Evidence deduplicated across sources and sub-questions
//   - CitationRecord: A canonical reference entry
//   - VectorItem: An embedded chunk held by the local vector index
//   - Event: A progress notification emitted by the research pipeline
//   - RunRecord: The persisted summary of one research run
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
