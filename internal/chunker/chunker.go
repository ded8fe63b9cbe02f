// Package chunker implements the chunking component (C2): splitting a
// document's text into overlapping, character-bounded windows using a
// cascading separator preference, adapted from the reference
// textsplitter package's SplitTextKeepSeparator primitive.
package chunker

import (
	"fmt"
	"strings"

	"github.com/aqua777/go-docqa/internal/domain"
	"github.com/aqua777/go-docqa/textsplitter"
	"github.com/aqua777/go-docqa/validation"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// cascading separator preference, most to least structural.
var separators = []string{"\n\n", "\n", ". ", "; ", ", ", " ", ""}

// Chunker splits text into overlapping windows with stable ids.
type Chunker struct {
	ChunkSize    int
	ChunkOverlap int
}

// New builds a Chunker with the given (chunk_size, chunk_overlap),
// falling back to 1000 for a non-positive chunk size and to 200 for a
// negative overlap; an overlap of 0 is kept.
func New(chunkSize, chunkOverlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = DefaultChunkOverlap
	}
	if err := validation.ValidateChunkParams(chunkSize, chunkOverlap); err != nil {
		return nil, err
	}
	return &Chunker{ChunkSize: chunkSize, ChunkOverlap: chunkOverlap}, nil
}

// Chunk splits text into a list of domain.Chunk, merging extraMetadata
// into each. Empty or whitespace-only input yields zero chunks.
func (c *Chunker) Chunk(documentID, text string, extraMetadata map[string]any) []domain.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	atoms := splitRecursive(text, c.ChunkSize, separators)
	windows := mergeWithOverlap(atoms, c.ChunkSize, c.ChunkOverlap)

	chunks := make([]domain.Chunk, 0, len(windows))
	for i, w := range windows {
		if strings.TrimSpace(w) == "" {
			continue
		}
		meta := make(map[string]any, len(extraMetadata)+1)
		for k, v := range extraMetadata {
			meta[k] = v
		}
		meta["chunk_size"] = len(w)
		chunks = append(chunks, domain.Chunk{
			ChunkID:    fmt.Sprintf("%s_chunk_%d", documentID, i),
			DocumentID: documentID,
			ChunkIndex: i,
			Text:       w,
			Metadata:   meta,
		})
	}
	return chunks
}

// splitRecursive breaks text into atomic pieces no longer than
// chunkSize, preferring the earliest separator in the cascade that
// achieves it, falling through to raw character splitting as a last
// resort. Pieces keep their leading separator (textsplitter.
// SplitTextKeepSeparator) so concatenating a run of atoms reproduces
// the original text exactly, which mergeWithOverlap relies on.
func splitRecursive(text string, chunkSize int, seps []string) []string {
	if len(text) <= chunkSize {
		return []string{text}
	}
	if len(seps) == 0 {
		return splitByChunkSize(text, chunkSize)
	}

	sep := seps[0]
	var parts []string
	if sep == "" {
		parts = splitByChunkSize(text, chunkSize)
	} else {
		parts = textsplitter.SplitTextKeepSeparator(text, sep)
	}

	var atoms []string
	for _, p := range parts {
		if len(p) > chunkSize {
			atoms = append(atoms, splitRecursive(p, chunkSize, seps[1:])...)
		} else {
			atoms = append(atoms, p)
		}
	}
	return atoms
}

func splitByChunkSize(text string, chunkSize int) []string {
	var out []string
	for len(text) > chunkSize {
		out = append(out, text[:chunkSize])
		text = text[chunkSize:]
	}
	if len(text) > 0 {
		out = append(out, text)
	}
	return out
}

// mergeWithOverlap packs atoms into windows of at most chunkSize bytes,
// retaining trailing atoms from the just-closed window as the seed of
// the next one until their combined length drops to at most
// chunkOverlap, so consecutive windows share boundary content without
// ever growing past chunkSize. Ported from the reference
// RecursiveCharacterTextSplitter's merge_splits loop.
func mergeWithOverlap(atoms []string, chunkSize, chunkOverlap int) []string {
	var windows []string
	var current []string
	total := 0

	for _, a := range atoms {
		n := len(a)
		if total+n > chunkSize && len(current) > 0 {
			windows = append(windows, strings.Join(current, ""))
			for total > chunkOverlap || (total+n > chunkSize && total > 0) {
				total -= len(current[0])
				current = current[1:]
			}
		}
		current = append(current, a)
		total += n
	}
	if len(current) > 0 {
		windows = append(windows, strings.Join(current, ""))
	}
	return windows
}
