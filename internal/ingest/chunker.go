// Package ingest splits source documents into embeddable chunks.
package ingest

import (
	"strings"
	"unicode/utf8"
)

// ChunkConfig defines chunking parameters.
type ChunkConfig struct {
	// TargetSize is the ideal chunk size in characters.
	TargetSize int
	// Overlap is the character overlap carried between adjacent chunks.
	Overlap int
}

// DefaultChunkConfig returns the fixed size/overlap policy used at ingestion.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{TargetSize: 800, Overlap: 100}
}

// Piece is one chunk of the source text with its character offset.
type Piece struct {
	Text   string
	Offset int
}

// Split breaks text into pieces of roughly TargetSize characters, cutting at
// word boundaries and overlapping neighbors by Overlap characters.
func Split(text string, cfg ChunkConfig) []Piece {
	if cfg.TargetSize <= 0 {
		cfg = DefaultChunkConfig()
	}
	if cfg.Overlap >= cfg.TargetSize {
		cfg.Overlap = cfg.TargetSize / 4
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if len(trimmed) <= cfg.TargetSize {
		return []Piece{{Text: trimmed, Offset: 0}}
	}

	var pieces []Piece
	start := 0
	for start < len(trimmed) {
		end := start + cfg.TargetSize
		if end >= len(trimmed) {
			end = len(trimmed)
		} else {
			// Back up to the last space so words stay intact; with no
			// space in the window, back up to a rune boundary instead.
			if cut := strings.LastIndex(trimmed[start:end], " "); cut > 0 {
				end = start + cut
			} else {
				end = runeStart(trimmed, end)
				if end <= start {
					// Window smaller than one rune; take the
					// whole rune so the loop advances.
					_, size := utf8.DecodeRuneInString(trimmed[start:])
					end = start + size
				}
			}
		}

		piece := strings.TrimSpace(trimmed[start:end])
		if piece != "" {
			pieces = append(pieces, Piece{Text: piece, Offset: start})
		}

		if end >= len(trimmed) {
			break
		}
		next := runeStart(trimmed, end-cfg.Overlap)
		if next <= start {
			next = end
		}
		start = next
	}

	return pieces
}

// runeStart backs pos up to the start of the rune it points into, so byte
// slicing never splits a multi-byte character.
func runeStart(s string, pos int) int {
	for pos > 0 && pos < len(s) && !utf8.RuneStart(s[pos]) {
		pos--
	}
	return pos
}
