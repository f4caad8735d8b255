// Package alarm plays a repeating Morse-style distress pattern on a buzzer
// without blocking. The sequencer is polled from the main loop; it never
// sleeps.
package alarm

import (
	"fmt"
	"time"
)

// DefaultUnit is the base Morse unit duration.
const DefaultUnit = 80 * time.Millisecond

// Symbol is one element of an alarm pattern.
type Symbol int

const (
	Dot Symbol = iota
	Dash
	LetterSpace
	WordSpace
)

// Units returns the symbol duration in multiples of the base unit.
func (s Symbol) Units() int {
	switch s {
	case Dot:
		return 2
	case Dash:
		return 4
	case LetterSpace:
		return 1
	case WordSpace:
		return 16
	}
	return 0
}

// Tone reports whether the symbol sounds the buzzer.
func (s Symbol) Tone() bool {
	return s == Dot || s == Dash
}

func (s Symbol) String() string {
	switch s {
	case Dot:
		return "dot"
	case Dash:
		return "dash"
	case LetterSpace:
		return "letter_space"
	case WordSpace:
		return "word_space"
	}
	return fmt.Sprintf("symbol(%d)", int(s))
}

// SOS is the default distress pattern.
var SOS = []Symbol{
	Dot, Dot, Dot, LetterSpace,
	Dash, Dash, Dash, LetterSpace,
	Dot, Dot, Dot, WordSpace,
}

// ParsePattern builds a pattern from text: '.' dot, '-' dash, ' ' letter
// space and '/' word space.
func ParsePattern(text string) ([]Symbol, error) {
	if text == "" {
		return nil, fmt.Errorf("empty pattern")
	}
	out := make([]Symbol, 0, len(text))
	for i, r := range text {
		switch r {
		case '.':
			out = append(out, Dot)
		case '-':
			out = append(out, Dash)
		case ' ':
			out = append(out, LetterSpace)
		case '/':
			out = append(out, WordSpace)
		default:
			return nil, fmt.Errorf("invalid pattern character %q at %d", r, i)
		}
	}
	return out, nil
}
