// Package file provides filesystem-backed stores for the vector index
// document and report artifacts. Every write replaces the target file
// atomically, so a crash never leaves a half-written index or report.
package file
