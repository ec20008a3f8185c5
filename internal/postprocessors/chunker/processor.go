// Package chunker splits text into line-aligned chunks for the vector index.
package chunker

import (
	"strings"
	"unicode/utf8"
)

// DefaultChunkSize is the default maximum number of characters per chunk.
const DefaultChunkSize = 1200

// Processor accumulates whole lines into chunks of bounded size.
// Lines are never split, so a single line longer than the limit becomes
// its own oversized chunk.
type Processor struct {
	chunkSize int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{chunkSize: DefaultChunkSize}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// ChunkSize returns the configured limit.
func (p *Processor) ChunkSize() int {
	return p.chunkSize
}

// Split breaks text into chunks. Each line counts its length plus one for
// the newline; a chunk is flushed before a line that would overflow it.
// Empty text produces no chunks.
func (p *Processor) Split(text string) []string {
	if text == "" {
		return nil
	}

	var (
		chunks []string
		buf    []string
		size   int
	)
	for _, line := range strings.Split(text, "\n") {
		l := utf8.RuneCountInString(line) + 1
		if size+l > p.chunkSize && len(buf) > 0 {
			chunks = append(chunks, strings.Join(buf, "\n"))
			buf = buf[:0]
			size = 0
		}
		buf = append(buf, line)
		size += l
	}
	if len(buf) > 0 {
		chunks = append(chunks, strings.Join(buf, "\n"))
	}
	return chunks
}
