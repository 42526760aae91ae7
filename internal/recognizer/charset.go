package recognizer

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Charset maps CTC class indices to tokens. Class 0 is the blank; class i
// maps to Tokens[i-1]. When UseSpace is set, the class after the last token
// is a space.
type Charset struct {
	Tokens   []string
	UseSpace bool
}

// Classes returns the number of model output classes the charset expects.
func (c *Charset) Classes() int {
	n := len(c.Tokens) + 1
	if c.UseSpace {
		n++
	}
	return n
}

// Token returns the token for a class index, or "" for the blank or an
// unknown index.
func (c *Charset) Token(class int) string {
	if c == nil || class <= 0 {
		return ""
	}
	if class <= len(c.Tokens) {
		return c.Tokens[class-1]
	}
	if c.UseSpace && class == len(c.Tokens)+1 {
		return " "
	}
	return ""
}

// Decode joins the tokens for a collapsed class sequence.
func (c *Charset) Decode(classes []int) string {
	var b strings.Builder
	for _, cls := range classes {
		b.WriteString(c.Token(cls))
	}
	return b.String()
}

// ReadCharset reads one token per line. Surrounding whitespace and a
// leading UTF-8 BOM are stripped; empty lines are skipped.
func ReadCharset(r io.Reader) (*Charset, error) {
	scanner := bufio.NewScanner(r)
	tokens := make([]string, 0, 512)
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			line = strings.TrimPrefix(line, "\uFEFF")
			first = false
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		tokens = append(tokens, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed reading dictionary: %w", err)
	}
	if len(tokens) == 0 {
		return nil, errors.New("dictionary is empty")
	}
	return &Charset{Tokens: tokens, UseSpace: true}, nil
}

// LoadCharset reads a dictionary file.
func LoadCharset(path string) (*Charset, error) {
	if path == "" {
		return nil, errors.New("dictionary path cannot be empty")
	}
	f, err := os.Open(path) //nolint:gosec // G304: dictionary path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open dictionary: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("Error closing dictionary file", "path", path, "error", err)
		}
	}()

	cs, err := ReadCharset(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cs, nil
}
