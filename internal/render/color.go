package render

import (
	"fmt"

	"github.com/coregx/queryplan/internal/protocol"
)

// darkThreshold is half of the channel range.
const darkThreshold = 255 / 2.0

// Luminance approximates perceived brightness without gamma correction.
// The conversions keep each product rounded so no platform fuses them.
func Luminance(c protocol.Color) float64 {
	r := float64(0.2126 * float64(c.R))
	g := float64(0.7152 * float64(c.G))
	b := float64(0.0722 * float64(c.B))
	return r + g + b
}

// IsDark reports whether text on c should be light.
func IsDark(c protocol.Color) bool {
	return Luminance(c) < darkThreshold
}

// TextColor returns the contrasting CSS text color for background c.
func TextColor(c protocol.Color) string {
	if IsDark(c) {
		return "white"
	}
	return "black"
}

// CSSColor formats c as a space-separated CSS rgb() value.
func CSSColor(c protocol.Color) string {
	return fmt.Sprintf("rgb(%d %d %d)", c.R, c.G, c.B)
}
