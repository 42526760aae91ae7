package expression

import (
	"fmt"
	"strconv"
	"unicode"
)

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokLParen
	tokRParen
	tokEOF
)

func (k tokenKind) String() string {
	switch k {
	case tokNumber:
		return "number"
	case tokPlus:
		return "'+'"
	case tokMinus:
		return "'-'"
	case tokStar:
		return "'*'"
	case tokSlash:
		return "'/'"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokEOF:
		return "end of input"
	default:
		return "unknown"
	}
}

type token struct {
	kind  tokenKind
	value float64
	pos   int
}

// tokenize splits s into arithmetic tokens. Anything outside digits, '.',
// the four operators, parentheses and whitespace is rejected.
func tokenize(s string) ([]token, error) {
	runes := []rune(s)
	tokens := make([]token, 0, len(runes)+1)

	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '+':
			tokens = append(tokens, token{kind: tokPlus, pos: i})
			i++
		case r == '-':
			tokens = append(tokens, token{kind: tokMinus, pos: i})
			i++
		case r == '*':
			tokens = append(tokens, token{kind: tokStar, pos: i})
			i++
		case r == '/':
			tokens = append(tokens, token{kind: tokSlash, pos: i})
			i++
		case r == '(':
			tokens = append(tokens, token{kind: tokLParen, pos: i})
			i++
		case r == ')':
			tokens = append(tokens, token{kind: tokRParen, pos: i})
			i++
		case isDigit(r) || r == '.':
			tok, next, err := scanNumber(runes, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
			i = next
		default:
			return nil, &SyntaxError{Pos: i, Msg: fmt.Sprintf("unsupported character %q", r)}
		}
	}

	tokens = append(tokens, token{kind: tokEOF, pos: len(runes)})
	return tokens, nil
}

// scanNumber reads a decimal literal starting at start: digits with at most
// one '.', at least one digit overall.
func scanNumber(runes []rune, start int) (token, int, error) {
	i := start
	digits := 0
	dots := 0
	for i < len(runes) && (isDigit(runes[i]) || runes[i] == '.') {
		if runes[i] == '.' {
			dots++
			if dots > 1 {
				return token{}, 0, &SyntaxError{Pos: i, Msg: "malformed number"}
			}
		} else {
			digits++
		}
		i++
	}
	if digits == 0 {
		return token{}, 0, &SyntaxError{Pos: start, Msg: "malformed number"}
	}

	literal := string(runes[start:i])
	v, err := strconv.ParseFloat(literal, 64)
	if err != nil {
		return token{}, 0, &SyntaxError{Pos: start, Msg: fmt.Sprintf("malformed number %q", literal)}
	}
	return token{kind: tokNumber, value: v, pos: start}, i, nil
}

// isDigit accepts ASCII digits only.
func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
