package helpers

import (
	"strings"
)

// UsageBar draws a fixed-width ASCII gauge for a percentage.
func UsageBar(percentage float64, width int) string {
	if width <= 0 {
		return ""
	}
	filled := int(percentage / 100 * float64(width))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}
