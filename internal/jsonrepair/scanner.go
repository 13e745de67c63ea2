package jsonrepair

// State is the lexical state of the scanner.
type State int

const (
	Normal State = iota
	InString
	Escaped
)

func (s State) String() string {
	switch s {
	case InString:
		return "in_string"
	case Escaped:
		return "escaped"
	default:
		return "normal"
	}
}

// Scanner walks JSON-ish text one byte at a time. It tracks whether the
// cursor is inside a string and keeps an explicit stack of open brackets.
// Bracket characters inside strings are ignored. A closer that does not
// match the top of the stack is ignored as well.
type Scanner struct {
	state State
	stack []byte
	pos   int

	// last significant byte seen outside a string ('"' for a closed string)
	prevSig byte

	// byte offsets of commas separating members of the outermost object
	topCommas []int

	lastStringStart int
	lastStringCtx   byte // innermost container when the last string opened
	lastStringPrev  byte // significant byte before the last string opened
}

// Scan feeds all of src into a fresh scanner.
func Scan(src string) *Scanner {
	s := &Scanner{lastStringStart: -1}
	for i := 0; i < len(src); i++ {
		s.Feed(src[i])
	}
	return s
}

func (s *Scanner) Feed(c byte) {
	switch s.state {
	case Escaped:
		s.state = InString
	case InString:
		switch c {
		case '\\':
			s.state = Escaped
		case '"':
			s.state = Normal
			s.prevSig = '"'
		}
	default:
		switch c {
		case '"':
			s.state = InString
			s.lastStringStart = s.pos
			s.lastStringCtx = s.Top()
			s.lastStringPrev = s.prevSig
		case '{', '[':
			s.stack = append(s.stack, c)
		case '}', ']':
			if n := len(s.stack); n > 0 && s.stack[n-1] == opener(c) {
				s.stack = s.stack[:n-1]
			}
		case ',':
			if len(s.stack) == 1 && s.stack[0] == '{' {
				s.topCommas = append(s.topCommas, s.pos)
			}
		}
		if c != '"' && !isSpace(c) {
			s.prevSig = c
		}
	}
	s.pos++
}

func (s *Scanner) State() State { return s.state }
func (s *Scanner) Depth() int   { return len(s.stack) }

// Top returns the innermost open bracket, or 0 at top level.
func (s *Scanner) Top() byte {
	if len(s.stack) == 0 {
		return 0
	}
	return s.stack[len(s.stack)-1]
}

// Closers returns the brackets needed to close every open container, innermost first.
func (s *Scanner) Closers() string {
	out := make([]byte, 0, len(s.stack))
	for i := len(s.stack) - 1; i >= 0; i-- {
		if s.stack[i] == '{' {
			out = append(out, '}')
		} else {
			out = append(out, ']')
		}
	}
	return string(out)
}

// TopLevelCommas returns offsets of commas between members of the outermost object.
func (s *Scanner) TopLevelCommas() []int { return append([]int(nil), s.topCommas...) }

func opener(c byte) byte {
	if c == '}' {
		return '{'
	}
	return '['
}

func isSpace(c byte) bool { return c == ' ' || c == '\n' || c == '\r' || c == '\t' }
