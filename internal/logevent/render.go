package logevent

import (
	"strings"
	"unicode"
)

// Render substitutes message template holes with property values.
//
// Holes have the form {Name}, {@Name}, {$Name}, {Name:format} or
// {Name,alignment}. Format and alignment are accepted but not applied.
// "{{" and "}}" render as literal braces. A hole naming a property that is
// not present, or text that does not parse as a hole, is emitted verbatim.
func Render(template string, props []Property) string {
	if !strings.ContainsAny(template, "{}") {
		return template
	}

	var sb strings.Builder
	sb.Grow(len(template))

	for i := 0; i < len(template); {
		c := template[i]
		switch {
		case c == '{' && i+1 < len(template) && template[i+1] == '{':
			sb.WriteByte('{')
			i += 2
		case c == '}' && i+1 < len(template) && template[i+1] == '}':
			sb.WriteByte('}')
			i += 2
		case c == '{':
			end := strings.IndexByte(template[i+1:], '}')
			if end < 0 {
				sb.WriteString(template[i:])
				return sb.String()
			}
			raw := template[i : i+end+2]
			name, ok := holeName(template[i+1 : i+1+end])
			if !ok {
				sb.WriteString(raw)
			} else if v, found := lookup(props, name); found {
				sb.WriteString(Format(v))
			} else {
				sb.WriteString(raw)
			}
			i += end + 2
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return sb.String()
}

// holeName extracts the property name from the inside of a hole.
func holeName(inner string) (string, bool) {
	if inner == "" {
		return "", false
	}
	if inner[0] == '@' || inner[0] == '$' {
		inner = inner[1:]
	}
	if cut := strings.IndexAny(inner, ":,"); cut >= 0 {
		inner = inner[:cut]
	}
	if inner == "" {
		return "", false
	}
	for _, r := range inner {
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return "", false
		}
	}
	return inner, true
}

// EscapeTemplate doubles braces so that text renders literally when used as
// a message template.
func EscapeTemplate(s string) string {
	if !strings.ContainsAny(s, "{}") {
		return s
	}
	s = strings.ReplaceAll(s, "{", "{{")
	return strings.ReplaceAll(s, "}", "}}")
}
