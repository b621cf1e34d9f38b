package repro

import "strings"

// splitSQL splits a script on top-level semicolons. Quoted text, quoted
// identifiers and comments never end a statement; quotes are escaped by
// doubling them.
func splitSQL(input string) []string {
	var (
		out   []string
		start int
		quote byte
	)
	flush := func(end int) {
		if stmt := strings.TrimSpace(input[start:end]); stmt != "" && !onlyComments(stmt) {
			out = append(out, stmt)
		}
	}
	for i := 0; i < len(input); i++ {
		ch := input[i]
		if quote != 0 {
			if ch == quote {
				if i+1 < len(input) && input[i+1] == quote {
					i++
					continue
				}
				quote = 0
			}
			continue
		}
		switch {
		case ch == '\'' || ch == '"' || ch == '`':
			quote = ch
		case ch == '-' && strings.HasPrefix(input[i:], "--"):
			if nl := strings.IndexByte(input[i:], '\n'); nl >= 0 {
				i += nl
			} else {
				i = len(input)
			}
		case ch == '/' && strings.HasPrefix(input[i:], "/*"):
			if end := strings.Index(input[i+2:], "*/"); end >= 0 {
				i += end + 3
			} else {
				i = len(input)
			}
		case ch == ';':
			flush(i)
			start = i + 1
		}
	}
	flush(len(input))
	return out
}

func onlyComments(stmt string) bool {
	for _, line := range strings.Split(stmt, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "--") {
			return false
		}
	}
	return true
}
