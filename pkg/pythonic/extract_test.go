package pythonic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func regionTexts(text string, ext Extraction) []string {
	out := make([]string, len(ext.Regions))
	for i, r := range ext.Regions {
		out[i] = text[r.Start:r.End]
	}
	return out
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name            string
		text            string
		expectedRegions []string
		expectedContent string
	}{
		{
			name:            "marked region",
			text:            "Sure. <|python_start|>[a()]<|python_end|> Done.",
			expectedRegions: []string{"[a()]"},
			expectedContent: "Sure.  Done.",
		},
		{
			name:            "marked region without end",
			text:            "<|python_start|>a(x=1)",
			expectedRegions: []string{"a(x=1)"},
			expectedContent: "",
		},
		{
			name:            "start marker ends the previous region",
			text:            "<|python_start|>a()<|python_start|>b()<|python_end|>",
			expectedRegions: []string{"a()", "b()"},
			expectedContent: "",
		},
		{
			name:            "markers hide bare blocks",
			text:            "[x()] <|python_start|>y()<|python_end|>",
			expectedRegions: []string{"y()"},
			expectedContent: "[x()] ",
		},
		{
			name:            "bare blocks",
			text:            "A [a()] B [1, 2] C [b()]",
			expectedRegions: []string{"[a()]", "[b()]"},
			expectedContent: "A  B [1, 2] C ",
		},
		{
			name:            "unclosed block runs to the end",
			text:            "see [a(x=1), b(",
			expectedRegions: []string{"[a(x=1), b("},
			expectedContent: "see ",
		},
		{
			name:            "quoted brackets do not close a block",
			text:            `[a(x="]"), b()] tail`,
			expectedRegions: []string{`[a(x="]"), b()]`},
			expectedContent: " tail",
		},
		{
			name:            "brackets inside a call are arguments",
			text:            `run(cmds=[[step()]])`,
			expectedRegions: []string{`run(cmds=[[step()]])`},
			expectedContent: "",
		},
		{
			name:            "bare call",
			text:            "  func1(arg1=\"val1\")",
			expectedRegions: []string{"  func1(arg1=\"val1\")"},
			expectedContent: "",
		},
		{
			name:            "prose only",
			text:            "Nothing to call here (really).",
			expectedRegions: []string{},
			expectedContent: "Nothing to call here (really).",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext := Extract(tt.text, DefaultMarkers())
			assert.Equal(t, tt.expectedRegions, regionTexts(tt.text, ext))
			assert.Equal(t, tt.expectedContent, ext.Content)
		})
	}
}

func TestExtract_MarkedFlag(t *testing.T) {
	ext := Extract("<|python_start|>a()", DefaultMarkers())
	require.Len(t, ext.Regions, 1)
	assert.True(t, ext.Regions[0].Marked)

	ext = Extract("[a()]", DefaultMarkers())
	require.Len(t, ext.Regions, 1)
	assert.False(t, ext.Regions[0].Marked)
}

func TestExtract_CustomMarkers(t *testing.T) {
	markers := Markers{Start: "<tool>", End: "</tool>"}
	text := "x <tool>[a()]</tool> y"

	ext := Extract(text, markers)
	assert.Equal(t, []string{"[a()]"}, regionTexts(text, ext))
	assert.Equal(t, "x  y", ext.Content)
}

func TestMatchBracket(t *testing.T) {
	end, closed := matchBracket(`[a, [b], 'c]'] rest`, 0)
	assert.True(t, closed)
	assert.Equal(t, 14, end)

	end, closed = matchBracket(`[a, "open`, 0)
	assert.False(t, closed)
	assert.Equal(t, 9, end)
}

func TestPartialSuffix(t *testing.T) {
	assert.Equal(t, 3, partialSuffix("text <|p", "<|python_start|>"))
	assert.Equal(t, 0, partialSuffix("text", "<|python_start|>"))
	assert.Equal(t, 0, partialSuffix("<|python_start|>", "<|python_start|>"))
}
