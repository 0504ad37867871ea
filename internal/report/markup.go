package report

import "strings"

const boldMarker = "**"

// Span is a run of description text with one emphasis.
type Span struct {
	Text string
	Bold bool
}

// ParseLine splits one description line into plain and bold spans. "**" toggles
// bold; a span opened but never closed is kept as plain text with its marker.
// Adjacent spans of the same emphasis are merged and empty spans dropped.
func ParseLine(line string) []Span {
	parts := strings.Split(line, boldMarker)
	// An even number of parts means an odd number of markers: the last one is unterminated.
	unterminated := len(parts)%2 == 0

	var spans []Span
	push := func(text string, bold bool) {
		if text == "" {
			return
		}
		if n := len(spans); n > 0 && spans[n-1].Bold == bold {
			spans[n-1].Text += text
			return
		}
		spans = append(spans, Span{Text: text, Bold: bold})
	}

	for i, part := range parts {
		bold := i%2 == 1
		if bold && unterminated && i == len(parts)-1 {
			push(boldMarker+part, false)
			continue
		}
		push(part, bold)
	}
	return spans
}

// Bold formats a "**label:** value" description line.
func Bold(label, value string) string {
	return boldMarker + label + ":" + boldMarker + " " + value
}
