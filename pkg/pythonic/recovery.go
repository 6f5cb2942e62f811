package pythonic

import "fmt"

type failureKind int

const (
	// failUnexpected is a token the grammar does not allow here
	failUnexpected failureKind = iota
	// failIncomplete means the input ended inside a construct
	failIncomplete
	// failTooDeep aborts the whole region
	failTooDeep
)

func (k failureKind) String() string {
	switch k {
	case failUnexpected:
		return "unexpected"
	case failIncomplete:
		return "incomplete"
	case failTooDeep:
		return "too deep"
	default:
		return fmt.Sprintf("failureKind(%d)", int(k))
	}
}

// parseError describes why a call could not be parsed. pos is the index of
// the offending token, offset its byte position.
type parseError struct {
	kind   failureKind
	pos    int
	offset int
	msg    string
}

func (e *parseError) Error() string {
	return fmt.Sprintf("%s at offset %d: %s", e.kind, e.offset, e.msg)
}

// resumeFrom is where the region loop continues after an unexpected token.
// It never goes backwards so every failure makes progress.
func resumeFrom(err *parseError, callStart int) int {
	return max(err.pos, callStart+1)
}

// openBrackets counts square brackets left open by toks[from:to]. Those
// belong to the construct that failed, so the region loop must see their
// closers before it can treat a ']' as closing the region-level list.
func openBrackets(toks []Token, from, to int) int {
	open := 0
	for _, tok := range toks[from:to] {
		switch tok.Kind {
		case TokenLBracket:
			open++
		case TokenRBracket:
			if open > 0 {
				open--
			}
		}
	}
	return open
}
