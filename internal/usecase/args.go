package usecase

import (
	"errors"
	"strings"
	"unicode"
)

var errUnbalancedQuotes = errors.New("usecase: unbalanced quotes")

// Mobile clients often replace straight quotes with typographic ones.
var quoteReplacer = strings.NewReplacer("“", `"`, "”", `"`, "„", `"`)

// parseArgs splits s into arguments. Whitespace separates arguments except
// inside a pair of double quotes, which delimits one argument verbatim
// (possibly empty). A quote without its closing partner is an error.
func parseArgs(s string) ([]string, error) {
	s = quoteReplacer.Replace(s)

	var (
		args    []string
		cur     strings.Builder
		inQuote bool
		hasArg  bool
	)
	flush := func() {
		if hasArg {
			args = append(args, cur.String())
		}
		cur.Reset()
		hasArg = false
	}

	for _, r := range s {
		switch {
		case r == '"':
			if inQuote {
				inQuote = false
				flush()
				continue
			}
			flush()
			inQuote = true
			hasArg = true
		case inQuote:
			cur.WriteRune(r)
		case unicode.IsSpace(r):
			flush()
		default:
			cur.WriteRune(r)
			hasArg = true
		}
	}
	if inQuote {
		return nil, errUnbalancedQuotes
	}
	flush()
	return args, nil
}

// optionalArg returns args[i] or "" when absent.
func optionalArg(args []string, i int) string {
	if i < len(args) {
		return strings.TrimSpace(args[i])
	}
	return ""
}
