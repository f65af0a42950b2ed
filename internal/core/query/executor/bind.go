package executor

import (
	"database/sql"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/hazaarlabs/dbi/internal/core/query/domain"
)

// positional rewrites the named placeholders of a bound statement into the bindvar style
// of the driver (see sqlx.BindType) and returns the arguments in placeholder order.
//
// Only ":name" tokens outside string literals, quoted identifiers and comments whose name
// is a key of query.Args are rewritten. Every other byte is copied unchanged, so "::"
// casts and colons inside literals reach the server as written.
func positional(query domain.SQL, bindType int) (string, []any) {
	s := query.Query
	backslash := query.Dialect == domain.MySQL

	var (
		sb      strings.Builder
		args    = make([]any, 0, len(query.Args))
		ordinal = make(map[string]int, len(query.Args))
	)
	sb.Grow(len(s))

	for i := 0; i < len(s); {
		ch := s[i]
		switch {
		case ch == '\'' || ch == '"':
			escapes := backslash || (ch == '\'' && escapeString(s, i))
			end := quotedEnd(s, i, escapes)
			sb.WriteString(s[i:end])
			i = end

		case ch == '`':
			end := quotedEnd(s, i, false)
			sb.WriteString(s[i:end])
			i = end

		case ch == '-' && strings.HasPrefix(s[i:], "--"):
			end := len(s)
			if n := strings.IndexByte(s[i:], '\n'); n >= 0 {
				end = i + n
			}
			sb.WriteString(s[i:end])
			i = end

		case ch == '/' && strings.HasPrefix(s[i:], "/*"):
			end := len(s)
			if n := strings.Index(s[i+2:], "*/"); n >= 0 {
				end = i + 2 + n + 2
			}
			sb.WriteString(s[i:end])
			i = end

		case ch == '$' && query.Dialect == domain.PostgreSQL && dollarTag(s[i:]) != "":
			tag := dollarTag(s[i:])
			end := len(s)
			if n := strings.Index(s[i+len(tag):], tag); n >= 0 {
				end = i + len(tag) + n + len(tag)
			}
			sb.WriteString(s[i:end])
			i = end

		case ch == ':' && strings.HasPrefix(s[i:], "::"):
			sb.WriteString("::")
			i += 2

		case ch == ':':
			j := i + 1
			for j < len(s) && identByte(s[j]) {
				j++
			}
			name := s[i+1 : j]
			value, ok := query.Args[name]
			if name == "" || !ok {
				sb.WriteByte(ch)
				i++
				continue
			}

			switch bindType {
			case sqlx.DOLLAR:
				n, seen := ordinal[name]
				if !seen {
					args = append(args, value)
					n = len(args)
					ordinal[name] = n
				}
				sb.WriteString("$" + strconv.Itoa(n))
			case sqlx.AT:
				args = append(args, value)
				sb.WriteString("@p" + strconv.Itoa(len(args)))
			case sqlx.NAMED:
				if _, seen := ordinal[name]; !seen {
					args = append(args, sql.Named(name, value))
					ordinal[name] = len(args)
				}
				sb.WriteString(":" + name)
			default:
				args = append(args, value)
				sb.WriteByte('?')
			}
			i = j

		default:
			sb.WriteByte(ch)
			i++
		}
	}
	return sb.String(), args
}

// quotedEnd returns the index just past the quoted run that starts at s[start]. A doubled
// quote character stays inside the run. Unterminated runs extend to the end of s.
func quotedEnd(s string, start int, escapes bool) int {
	q := s[start]
	for j := start + 1; j < len(s); j++ {
		switch {
		case escapes && s[j] == '\\':
			j++
		case s[j] == q:
			if j+1 < len(s) && s[j+1] == q {
				j++
				continue
			}
			return j + 1
		}
	}
	return len(s)
}

// escapeString reports whether the literal at s[i] is a PostgreSQL E'...' string.
func escapeString(s string, i int) bool {
	if i == 0 || (s[i-1] != 'E' && s[i-1] != 'e') {
		return false
	}
	return i == 1 || !identByte(s[i-2])
}

// dollarTag returns the opening $tag$ of a dollar-quoted string at the start of s.
func dollarTag(s string) string {
	for j := 1; j < len(s); j++ {
		switch {
		case s[j] == '$':
			return s[:j+1]
		case !identByte(s[j]), j == 1 && s[j] >= '0' && s[j] <= '9':
			return ""
		}
	}
	return ""
}

func identByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
