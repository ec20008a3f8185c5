// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The research pipeline plans sub-questions, resolves each one against
// the search sources in fallback order, optionally adds local evidence
// from the vector index, and writes a cited report.
package services
