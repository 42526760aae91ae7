package expression

import "strings"

// Operators is the set of canonical arithmetic operator characters.
const Operators = "+-*/"

var normalizer = strings.NewReplacer(
	"x", "*",
	"X", "*",
	"÷", "/",
	"=", "",
)

// Assemble concatenates recognized text fragments in the given order with no
// separator.
func Assemble(fragments []string) string {
	var b strings.Builder
	for _, f := range fragments {
		b.WriteString(f)
	}
	return b.String()
}

// Normalize rewrites OCR symbols into canonical arithmetic syntax: "x" and "X"
// become "*", "÷" becomes "/", every "=" is dropped, and surrounding
// whitespace is trimmed.
func Normalize(s string) string {
	return strings.TrimSpace(normalizer.Replace(s))
}

// HasOperator reports whether s contains at least one of + - * /.
func HasOperator(s string) bool {
	return strings.ContainsAny(s, Operators)
}
