// Package logs tails service log files, fans entries out to live
// subscribers, and serves historical queries from the durable store
// with a raw-file fallback.
package logs

import (
	"regexp"
	"strings"
	"time"
)

// timestampLayouts are tried in order against the leading tokens of a line.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
}

var timestampPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}`),
	regexp.MustCompile(`\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}`),
	regexp.MustCompile(`\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2}`),
}

// ParseLine derives a log level and timestamp from a raw line. Level
// comes from case-insensitive keyword markers, defaulting to info.
// Timestamp recognition tries the fixed layouts against the line's
// leading tokens, then scans for an embedded date-time pattern, and
// falls back to the given time when nothing matches.
func ParseLine(line string, fallback time.Time) (string, time.Time) {
	return detectLevel(line), detectTimestamp(line, fallback)
}

func detectLevel(line string) string {
	upper := strings.ToUpper(line)
	switch {
	case strings.Contains(upper, "ERROR"), strings.Contains(upper, "ERR"):
		return "error"
	case strings.Contains(upper, "WARN"):
		return "warn"
	case strings.Contains(upper, "DEBUG"):
		return "debug"
	case strings.Contains(upper, "INFO"):
		return "info"
	default:
		return "info"
	}
}

func detectTimestamp(line string, fallback time.Time) time.Time {
	fields := strings.Fields(line)
	if len(fields) > 0 {
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, fields[0]); err == nil {
				return t.UTC()
			}
		}
		if len(fields) > 1 {
			if t, err := time.Parse("2006-01-02 15:04:05", fields[0]+" "+fields[1]); err == nil {
				return t.UTC()
			}
		}
	}

	for _, pattern := range timestampPatterns {
		match := pattern.FindString(line)
		if match == "" {
			continue
		}
		normalized := strings.NewReplacer("/", "-", "T", " ").Replace(match)
		if t, err := time.Parse("2006-01-02 15:04:05", normalized); err == nil {
			return t.UTC()
		}
	}

	return fallback
}
