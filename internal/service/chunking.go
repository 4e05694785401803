package service

import (
	"strings"
)

// ChunkConfig controls how document text is split for embedding.
type ChunkConfig struct {
	TargetSize int // Maximum segment size in runes
	Overlap    int // Runes repeated at the start of the next fixed-width window
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		TargetSize: 1000,
		Overlap:    150,
	}
}

// NormalizeText canonicalizes line endings, trims outer whitespace and
// collapses runs of blank lines into a single paragraph break. Chunk coverage
// is defined against this normalized form.
func NormalizeText(text string) string {
	clean := strings.ReplaceAll(text, "\r\n", "\n")
	clean = strings.ReplaceAll(clean, "\r", "\n")
	clean = strings.TrimSpace(clean)
	for strings.Contains(clean, "\n\n\n") {
		clean = strings.ReplaceAll(clean, "\n\n\n", "\n\n")
	}
	return clean
}

// ChunkText splits text into ordered segments. Paragraphs are packed greedily
// into segments no larger than TargetSize; a single paragraph exceeding
// TargetSize falls back to fixed-width windows with Overlap runes repeated at
// the start of each following window. Every rune of the normalized input
// appears in at least one segment and no segment is empty.
func ChunkText(text string, cfg ChunkConfig) []string {
	if cfg.TargetSize <= 0 {
		cfg = DefaultChunkConfig()
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.TargetSize {
		cfg.Overlap = cfg.TargetSize / 5
	}

	normalized := NormalizeText(text)
	if normalized == "" {
		return nil
	}
	if len([]rune(normalized)) <= cfg.TargetSize {
		return []string{normalized}
	}

	paragraphs := strings.Split(normalized, "\n\n")
	segments := make([]string, 0, 8)
	var packed []string
	packedLen := 0

	flush := func() {
		if len(packed) > 0 {
			segments = append(segments, strings.Join(packed, "\n\n"))
			packed = packed[:0]
			packedLen = 0
		}
	}

	for _, para := range paragraphs {
		paraLen := len([]rune(para))

		if paraLen > cfg.TargetSize {
			flush()
			segments = append(segments, windowSegments(para, cfg.TargetSize, cfg.Overlap)...)
			continue
		}

		// +2 accounts for the paragraph separator when joining.
		if packedLen > 0 && packedLen+2+paraLen > cfg.TargetSize {
			flush()
		}
		packed = append(packed, para)
		if packedLen > 0 {
			packedLen += 2
		}
		packedLen += paraLen
	}
	flush()

	return segments
}

// windowSegments cuts an oversized paragraph into fixed-width rune windows.
// Every window after the first repeats the last overlap runes of its
// predecessor so no boundary context is lost.
func windowSegments(text string, size, overlap int) []string {
	runes := []rune(text)
	windows := make([]string, 0, len(runes)/size+1)

	start := 0
	for {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		windows = append(windows, string(runes[start:end]))
		if end >= len(runes) {
			break
		}
		start = end - overlap
	}

	return windows
}
