package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/adrianmcphee/tetherdb"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// ParsePredicates turns key=value arguments into filter predicates.
// Values that parse as JSON (numbers, booleans, null, lists) keep their type;
// everything else is a string.
func ParsePredicates(args []string) (tetherdb.Predicates, error) {
	p := make(tetherdb.Predicates, len(args))
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("predicate %q must look like key=value", arg)
		}
		p[key] = parseValue(raw)
	}
	return p, nil
}

func parseValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	switch v.(type) {
	case map[string]any:
		return raw
	}
	return v
}

// printDocuments writes one JSON object per line
func printDocuments(w io.Writer, docs ...tetherdb.Document) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, doc := range docs {
		if err := enc.Encode(doc); err != nil {
			return err
		}
	}
	return nil
}
