package codec

import (
	"fmt"
	"strings"

	"github.com/openobserve/corelake/internal/errs"
	"github.com/openobserve/corelake/internal/model"
)

// ParseLabels parses a Prometheus/Loki-style label string of the form
// `{k="v",k2="v2"}` into a map, honoring backslash-escaped quotes and
// backslashes inside values. A malformed string (unterminated braces,
// unterminated quotes, stray characters between pairs) fails the whole
// decode with a BadRequest per the codec's decode contract.
func ParseLabels(s string) (map[string]string, error) {
	if len(s) > model.MaxLabelStringLen {
		return nil, errs.New(errs.BadRequest, "malformed_labels: label string exceeds %d bytes", model.MaxLabelStringLen)
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return map[string]string{}, nil
	}
	if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
		return nil, errs.New(errs.BadRequest, "malformed_labels: missing braces")
	}
	body := s[1 : len(s)-1]

	labels := make(map[string]string)
	i := 0
	n := len(body)
	for i < n {
		for i < n && (body[i] == ' ' || body[i] == ',') {
			i++
		}
		if i >= n {
			break
		}

		keyStart := i
		for i < n && body[i] != '=' {
			i++
		}
		if i >= n {
			return nil, errs.New(errs.BadRequest, "malformed_labels: missing '=' after key")
		}
		key := strings.TrimSpace(body[keyStart:i])
		if key == "" {
			return nil, errs.New(errs.BadRequest, "malformed_labels: empty label name")
		}
		i++ // skip '='

		if i >= n || body[i] != '"' {
			return nil, errs.New(errs.BadRequest, "malformed_labels: value for %q must be quoted", key)
		}
		i++ // skip opening quote

		var value strings.Builder
		closed := false
		for i < n {
			c := body[i]
			if c == '\\' && i+1 < n {
				switch body[i+1] {
				case '"':
					value.WriteByte('"')
				case '\\':
					value.WriteByte('\\')
				case 'n':
					value.WriteByte('\n')
				case 't':
					value.WriteByte('\t')
				default:
					value.WriteByte(body[i+1])
				}
				i += 2
				continue
			}
			if c == '"' {
				closed = true
				i++
				break
			}
			value.WriteByte(c)
			i++
		}
		if !closed {
			return nil, errs.New(errs.BadRequest, "malformed_labels: unterminated value for %q", key)
		}
		for i < n && body[i] == ' ' {
			i++
		}
		if i < n && body[i] != ',' {
			return nil, errs.New(errs.BadRequest, "malformed_labels: unexpected %q after value for %q", body[i], key)
		}

		if _, dup := labels[key]; dup {
			return nil, errs.New(errs.BadRequest, "malformed_labels: duplicate label %q", key)
		}
		labels[key] = value.String()
	}

	return labels, nil
}

// FormatLabels is the inverse of ParseLabels, used by tests and by any
// component that needs to re-derive a stream's label string (e.g. logging).
func FormatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return "{}"
	}
	var sb strings.Builder
	sb.WriteByte('{')
	first := true
	for k, v := range labels {
		if !first {
			sb.WriteByte(',')
		}
		first = false
		fmt.Fprintf(&sb, "%s=%q", k, v)
	}
	sb.WriteByte('}')
	return sb.String()
}
