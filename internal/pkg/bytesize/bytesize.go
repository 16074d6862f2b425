// Package bytesize measures base64 image payloads and renders byte counts.
package bytesize

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// ZeroLabel is the rendering of an empty size.
const ZeroLabel = "0 Bytes"

var (
	dataURIPrefix = regexp.MustCompile(`^data:image/\w+;base64,`)
	units         = []string{"Bytes", "KB", "MB", "GB"}
)

// StripPrefix removes a leading data URI header, if any.
func StripPrefix(encoded string) string {
	return dataURIPrefix.ReplaceAllString(encoded, "")
}

// SizeOf returns the decoded byte length of a base64 string.
func SizeOf(encoded string) int64 {
	clean := StripPrefix(encoded)
	if clean == "" {
		return 0
	}
	n := int64(len(clean))
	return (n*3 + 3) / 4
}

// WithinLimit reports whether the decoded size of encoded is at most max bytes.
func WithinLimit(encoded string, max int64) bool {
	return SizeOf(encoded) <= max
}

// Format renders n with the largest 1024-based unit whose mantissa stays
// below 1024, rounded to two decimals.
func Format(n int64) string {
	if n == 0 {
		return ZeroLabel
	}
	if n < 0 {
		return "-" + Format(-n)
	}

	value := float64(n)
	i := 0
	for value >= 1024 && i < len(units)-1 {
		value /= 1024
		i++
	}
	value = math.Round(value*100) / 100
	if value >= 1024 && i < len(units)-1 {
		value = math.Round(value/1024*100) / 100
		i++
	}
	return strconv.FormatFloat(value, 'f', -1, 64) + " " + units[i]
}

// Parse reads a human size such as "5MiB" or "2GB". An empty string is zero.
func Parse(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	v, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, err
	}
	if v > math.MaxInt64 {
		return math.MaxInt64, nil
	}
	return int64(v), nil
}
