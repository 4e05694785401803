package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkTextEmpty(t *testing.T) {
	assert.Nil(t, ChunkText("", DefaultChunkConfig()))
	assert.Nil(t, ChunkText("   \n\t  ", DefaultChunkConfig()))
}

func TestChunkTextShortInputSingleSegment(t *testing.T) {
	text := "Prometric integrates with Kaspi Business, Halyk Bank, Sberbank Kazakhstan."
	segments := ChunkText(text, ChunkConfig{TargetSize: 1000, Overlap: 150})
	require.Len(t, segments, 1)
	assert.Equal(t, text, segments[0])
}

func TestChunkTextPacksParagraphs(t *testing.T) {
	para := strings.Repeat("слово ", 20) // ~120 runes
	text := strings.TrimSpace(strings.Repeat(para+"\n\n", 6))

	segments := ChunkText(text, ChunkConfig{TargetSize: 300, Overlap: 50})
	require.Greater(t, len(segments), 1)

	for _, seg := range segments {
		assert.NotEmpty(t, seg)
		assert.LessOrEqual(t, len([]rune(seg)), 300)
	}
}

func TestChunkTextOversizeParagraphFallsBackToWindows(t *testing.T) {
	text := strings.Repeat("a", 250)
	segments := ChunkText(text, ChunkConfig{TargetSize: 100, Overlap: 20})

	require.Len(t, segments, 3)
	assert.Equal(t, 100, len(segments[0]))
	assert.Equal(t, 100, len(segments[1]))
	// Window 2 starts at 80, window 3 at 160; last window covers the tail.
	assert.Equal(t, strings.Repeat("a", 90), segments[2])

	// Overlap runes repeat at the start of each following window.
	assert.Equal(t, segments[0][80:], segments[1][:20])
}

// reconstruct joins segments back together, dropping duplicated overlap
// regions between consecutive window segments and restoring paragraph
// separators elsewhere.
func reconstruct(segments []string, overlap int) string {
	if len(segments) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(segments[0])
	for i := 1; i < len(segments); i++ {
		prev := []rune(segments[i-1])
		cur := []rune(segments[i])
		if overlap > 0 && len(prev) >= overlap && len(cur) >= overlap &&
			string(prev[len(prev)-overlap:]) == string(cur[:overlap]) {
			b.WriteString(string(cur[overlap:]))
		} else {
			b.WriteString("\n\n")
			b.WriteString(segments[i])
		}
	}
	return b.String()
}

func TestChunkTextCoverage(t *testing.T) {
	tests := []struct {
		name string
		text string
		cfg  ChunkConfig
	}{
		{
			name: "paragraph packing",
			text: "First paragraph about banks.\n\nSecond paragraph about payments.\n\nThird paragraph, integrations with Kaspi.",
			cfg:  ChunkConfig{TargetSize: 60, Overlap: 10},
		},
		{
			name: "oversize paragraph",
			text: strings.Repeat("интеграция банков ", 40),
			cfg:  ChunkConfig{TargetSize: 120, Overlap: 30},
		},
		{
			name: "mixed sizes",
			text: "Short intro.\n\n" + strings.Repeat("x", 500) + "\n\nShort outro.",
			cfg:  ChunkConfig{TargetSize: 150, Overlap: 25},
		},
		{
			name: "messy whitespace",
			text: "\n\n  One.\r\n\r\nTwo.\n\n\n\nThree.  \n",
			cfg:  ChunkConfig{TargetSize: 8, Overlap: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segments := ChunkText(tt.text, tt.cfg)
			require.NotEmpty(t, segments)
			for _, seg := range segments {
				assert.NotEmpty(t, seg)
			}
			assert.Equal(t, NormalizeText(tt.text), reconstruct(segments, tt.cfg.Overlap))
		})
	}
}

func TestChunkTextInvalidConfigFallsBack(t *testing.T) {
	segments := ChunkText("some text", ChunkConfig{TargetSize: -1})
	require.Len(t, segments, 1)

	// Overlap >= target size is replaced, not honored.
	segments = ChunkText(strings.Repeat("b", 50), ChunkConfig{TargetSize: 10, Overlap: 10})
	assert.NotEmpty(t, segments)
}
