package format

import (
	"io"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// WriteEDN writes an EDN rendering of v. Map keys become kebab-case keywords
// (startDate -> :start-date, total_float -> :total-float).
func WriteEDN(w io.Writer, v any, pretty bool) error {
	x, err := generic(v)
	if err != nil {
		return err
	}
	p := ednPrinter{pretty: pretty}
	p.value(x, 0)
	p.sb.WriteByte('\n')
	_, err = io.WriteString(w, p.sb.String())
	return err
}

type ednPrinter struct {
	sb     strings.Builder
	pretty bool
}

func (p *ednPrinter) value(v any, level int) {
	switch t := v.(type) {
	case nil:
		p.sb.WriteString("nil")
	case bool:
		p.sb.WriteString(strconv.FormatBool(t))
	case string:
		p.sb.WriteString(strconv.Quote(t))
	case int64:
		p.sb.WriteString(strconv.FormatInt(t, 10))
	case float64:
		p.sb.WriteString(strconv.FormatFloat(t, 'f', -1, 64))
	case []any:
		p.seq('[', ']', len(t), level, func(i int) { p.value(t[i], level+1) })
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		p.seq('{', '}', len(keys), level, func(i int) {
			p.sb.WriteString(Keyword(keys[i]))
			p.sb.WriteByte(' ')
			p.value(t[keys[i]], level+1)
		})
	default:
		p.sb.WriteString("nil")
	}
}

func (p *ednPrinter) seq(open, close byte, n, level int, item func(i int)) {
	p.sb.WriteByte(open)
	for i := 0; i < n; i++ {
		switch {
		case p.pretty:
			p.sb.WriteByte('\n')
			p.sb.WriteString(strings.Repeat("  ", level+1))
		case i > 0:
			p.sb.WriteByte(' ')
		}
		item(i)
	}
	if p.pretty && n > 0 {
		p.sb.WriteByte('\n')
		p.sb.WriteString(strings.Repeat("  ", level))
	}
	p.sb.WriteByte(close)
}

// Keyword converts a json field name to an EDN keyword.
func Keyword(name string) string {
	var b strings.Builder
	b.WriteByte(':')
	prevLower := false
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r == '_' || r == ' ':
			b.WriteByte('-')
			prevLower = false
		case unicode.IsUpper(r):
			if prevLower {
				b.WriteByte('-')
			}
			b.WriteRune(unicode.ToLower(r))
			prevLower = false
		default:
			b.WriteRune(r)
			prevLower = unicode.IsLower(r) || unicode.IsDigit(r)
		}
	}
	return b.String()
}
