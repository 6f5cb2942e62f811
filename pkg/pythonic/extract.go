package pythonic

import (
	"regexp"
	"strings"
)

var (
	callPattern     = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*\s*\(`)
	bareCallPattern = regexp.MustCompile(`^\s*[A-Za-z_][A-Za-z0-9_]*\s*\(`)
)

// Region is a span of text that may hold tool calls. Start and End are
// byte offsets; a marked region excludes the markers themselves.
type Region struct {
	Start  int
	End    int
	Marked bool
}

// Extraction is the result of splitting text into regions and the prose
// around them
type Extraction struct {
	Regions []Region
	// Content is the text outside every region, markers removed
	Content string
}

// Extract locates the regions of text that may hold calls.
//
// When the start marker occurs anywhere only marked regions count; each one
// runs to the next end marker, the next start marker, or the end of the
// text. Otherwise every top-level [...] block containing name( is a region,
// an unclosed block running to the end. Failing both, text that starts with
// name( is one region.
func Extract(text string, markers Markers) Extraction {
	if markers.Start != "" && strings.Contains(text, markers.Start) {
		return extractMarked(text, markers)
	}

	ext := extractBrackets(text)
	if len(ext.Regions) == 0 && bareCallPattern.MatchString(text) {
		return Extraction{Regions: []Region{{Start: 0, End: len(text)}}}
	}
	return ext
}

func extractMarked(text string, markers Markers) Extraction {
	var ext Extraction
	var content strings.Builder

	pos := 0
	for {
		idx := strings.Index(text[pos:], markers.Start)
		if idx < 0 {
			content.WriteString(text[pos:])
			break
		}
		content.WriteString(text[pos : pos+idx])

		start := pos + idx + len(markers.Start)
		end, next := markedEnd(text, start, markers)
		ext.Regions = append(ext.Regions, Region{Start: start, End: end, Marked: true})
		pos = next
	}

	ext.Content = content.String()
	return ext
}

// markedEnd finds where a marked region opened at start stops. It returns
// the region end and the offset scanning resumes from, past an end marker
// if one closed the region.
func markedEnd(text string, start int, markers Markers) (end, next int) {
	rest := text[start:]
	endIdx := -1
	if markers.End != "" {
		endIdx = strings.Index(rest, markers.End)
	}
	startIdx := strings.Index(rest, markers.Start)

	switch {
	case endIdx >= 0 && (startIdx < 0 || endIdx < startIdx):
		return start + endIdx, start + endIdx + len(markers.End)
	case startIdx >= 0:
		return start + startIdx, start + startIdx
	default:
		return len(text), len(text)
	}
}

func extractBrackets(text string) Extraction {
	var ext Extraction
	var content strings.Builder

	last, parens := 0, 0
	for pos := 0; pos < len(text); pos++ {
		switch text[pos] {
		case '(':
			parens++
		case ')':
			if parens > 0 {
				parens--
			}
		case '[':
			// a bracket inside parentheses is an argument, not a region
			if parens > 0 {
				continue
			}
			end, _ := matchBracket(text, pos)
			if callPattern.MatchString(text[pos:end]) {
				content.WriteString(text[last:pos])
				ext.Regions = append(ext.Regions, Region{Start: pos, End: end})
				last = end
			}
			pos = end - 1
		}
	}
	content.WriteString(text[last:])

	ext.Content = content.String()
	return ext
}

// matchBracket returns the offset just past the ']' matching the '[' at
// open. Quotes are honoured so brackets inside strings do not count. When
// the block is never closed it returns len(text) and false.
func matchBracket(text string, open int) (int, bool) {
	depth := 0
	for i := open; i < len(text); i++ {
		switch c := text[i]; c {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i + 1, true
			}
		case '"', '\'':
			idx := strings.IndexByte(text[i+1:], c)
			if idx < 0 {
				return len(text), false
			}
			i += idx + 1
		}
	}
	return len(text), false
}

// partialSuffix returns how many trailing bytes of text are a proper prefix
// of marker
func partialSuffix(text, marker string) int {
	for n := min(len(marker)-1, len(text)); n > 0; n-- {
		if strings.HasSuffix(text, marker[:n]) {
			return n
		}
	}
	return 0
}
