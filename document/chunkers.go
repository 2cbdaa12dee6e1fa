package document

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/kart-io/flowagent/flowtypes"
	"github.com/kart-io/flowagent/ingest"
)

// mergeSplits is the teacher's BaseTextSplitter.MergeSplits sliding-window
// merge: pack consecutive splits into chunks up to chunkSize, trimming the
// front of the window back past chunkOverlap before starting the next
// chunk. lengthFn is injected so callers can measure in runes, as the
// teacher does for everything but the token splitter.
func mergeSplits(splits []string, separator string, chunkSize, chunkOverlap int, lengthFn func(string) int) []string {
	separatorLen := lengthFn(separator)

	var docs []string
	var current []string
	total := 0

	join := func(parts []string) string {
		return strings.TrimSpace(strings.Join(parts, separator))
	}

	for _, split := range splits {
		length := lengthFn(split)

		if total+length+(len(current)*separatorLen) > chunkSize {
			if len(current) > 0 {
				if doc := join(current); doc != "" {
					docs = append(docs, doc)
				}
				for total > chunkOverlap || (total+length+(len(current)*separatorLen) > chunkSize && total > 0) {
					if len(current) == 0 {
						break
					}
					total -= lengthFn(current[0]) + separatorLen
					current = current[1:]
				}
			}
		}

		current = append(current, split)
		total += length + separatorLen
	}

	if len(current) > 0 {
		if doc := join(current); doc != "" {
			docs = append(docs, doc)
		}
	}

	return docs
}

// defaultRecursiveSeparators mirrors the teacher's fallback order: widest
// natural boundary first, single characters last.
var defaultRecursiveSeparators = []string{"\n\n", "\n", ". ", "! ", "? ", "; ", ", ", " ", ""}

// splitRecursive is the teacher's RecursiveCharacterTextSplitter.splitTextRecursive:
// try the first separator present in text, recurse into any resulting
// piece still over chunkSize with the remaining, narrower separators.
func splitRecursive(text string, separators []string, chunkSize, chunkOverlap int, lengthFn func(string) int) []string {
	separator := separators[len(separators)-1]
	var rest []string

	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			rest = separators[i+1:]
			break
		}
	}

	var splits []string
	if separator == "" {
		splits = []string{text}
	} else {
		splits = strings.Split(text, separator)
	}

	var final []string
	var good []string
	for _, split := range splits {
		if lengthFn(split) < chunkSize {
			good = append(good, split)
			continue
		}
		if len(good) > 0 {
			final = append(final, mergeSplits(good, separator, chunkSize, chunkOverlap, lengthFn)...)
			good = nil
		}
		if len(rest) == 0 {
			final = append(final, split)
		} else {
			final = append(final, splitRecursive(split, rest, chunkSize, chunkOverlap, lengthFn)...)
		}
	}
	if len(good) > 0 {
		final = append(final, mergeSplits(good, separator, chunkSize, chunkOverlap, lengthFn)...)
	}
	return final
}

// CharacterChunker splits on a single fixed separator (default "\n\n")
// then packs the resulting pieces back up to ChunkSize with ChunkOverlap
// carried between adjacent chunks. Ported from the teacher's
// CharacterTextSplitter.
type CharacterChunker struct {
	id           string
	priority     int
	Separator    string
	ChunkSize    int
	ChunkOverlap int
}

func NewCharacterChunker(id string, priority, chunkSize, chunkOverlap int) *CharacterChunker {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 {
		chunkOverlap = 200
	}
	return &CharacterChunker{id: id, priority: priority, Separator: "\n\n", ChunkSize: chunkSize, ChunkOverlap: chunkOverlap}
}

func (c *CharacterChunker) ID() string    { return c.id }
func (c *CharacterChunker) Priority() int { return c.priority }

// Supports reports true for everything; this chunker is meant to be
// docked last, as the catch-all default.
func (c *CharacterChunker) Supports(_ flowtypes.AgentParsedContent) bool { return true }

func (c *CharacterChunker) Chunk(_ context.Context, parsed flowtypes.AgentParsedContent) ([]ingest.RawChunk, error) {
	sep := c.Separator
	var splits []string
	if sep == "" {
		splits = []string{parsed.Text}
	} else {
		splits = strings.Split(parsed.Text, sep)
	}

	pieces := mergeSplits(splits, sep, c.ChunkSize, c.ChunkOverlap, utf8.RuneCountInString)
	out := make([]ingest.RawChunk, len(pieces))
	for i, p := range pieces {
		out[i] = ingest.RawChunk{Text: p}
	}
	return out, nil
}

// RecursiveChunker tries natural-language boundaries (paragraph, line,
// sentence, clause, word) before falling back to a hard character split.
// Ported from the teacher's RecursiveCharacterTextSplitter.
type RecursiveChunker struct {
	id           string
	priority     int
	Separators   []string
	ChunkSize    int
	ChunkOverlap int
}

func NewRecursiveChunker(id string, priority, chunkSize, chunkOverlap int) *RecursiveChunker {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 {
		chunkOverlap = 200
	}
	return &RecursiveChunker{
		id: id, priority: priority,
		Separators:   append([]string(nil), defaultRecursiveSeparators...),
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
	}
}

func (c *RecursiveChunker) ID() string                                   { return c.id }
func (c *RecursiveChunker) Priority() int                                { return c.priority }
func (c *RecursiveChunker) Supports(_ flowtypes.AgentParsedContent) bool { return true }

func (c *RecursiveChunker) Chunk(_ context.Context, parsed flowtypes.AgentParsedContent) ([]ingest.RawChunk, error) {
	pieces := splitRecursive(parsed.Text, c.Separators, c.ChunkSize, c.ChunkOverlap, utf8.RuneCountInString)
	out := make([]ingest.RawChunk, len(pieces))
	for i, p := range pieces {
		out[i] = ingest.RawChunk{Text: p}
	}
	return out, nil
}
