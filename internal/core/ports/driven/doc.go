// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for a research run:
//
//   - SearchSource: One external web search provider
//   - TextGenerator: Plans sub-questions and writes the report
//   - ReportStore: Report artifact persistence
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - EmbeddingService and VectorStore: Local retrieval. Without them runs use web evidence only.
//   - RunStore: Run history. Without it runs are not recorded.
//   - Exporter: Secondary report formats. Missing formats are reported, never fatal.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
