// Package colorstat summarizes the color content of a decoded image for
// inclusion in backend metadata.
package colorstat

import (
	"fmt"
	"image"
	"sort"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// ColorShare is one quantized color and its share of the image's pixels.
type ColorShare struct {
	Hex      string  `json:"hex"`      // "#RRGGBB"
	Hue      float64 `json:"hue"`      // 0-360
	Sat      float64 `json:"sat"`      // 0-1
	Lum      float64 `json:"lum"`      // 0-1
	Fraction float64 `json:"fraction"` // 0-1 share of sampled pixels
}

// Summary holds the dominant colors of an image, most frequent first.
type Summary struct {
	Dominant []ColorShare `json:"dominant"`
}

// Summarize extracts the maxColors most common colors. Similar colors are
// grouped by quantizing each 8-bit component to steps of 16, which keeps the
// bucket count bounded on photographic input.
func Summarize(img image.Image, maxColors int) *Summary {
	if maxColors <= 0 {
		maxColors = 5
	}
	bounds := img.Bounds()
	counts := make(map[uint32]int)
	total := 0

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			r8 := uint32(r>>8) / 16 * 16
			g8 := uint32(g>>8) / 16 * 16
			b8 := uint32(b>>8) / 16 * 16
			counts[r8<<16|g8<<8|b8]++
			total++
		}
	}
	if total == 0 {
		return &Summary{}
	}

	shares := make([]ColorShare, 0, len(counts))
	for key, n := range counts {
		r8 := uint8(key >> 16)
		g8 := uint8(key >> 8)
		b8 := uint8(key)
		c := colorful.Color{R: float64(r8) / 255, G: float64(g8) / 255, B: float64(b8) / 255}
		h, s, l := c.Hsl()
		shares = append(shares, ColorShare{
			Hex:      fmt.Sprintf("#%02X%02X%02X", r8, g8, b8),
			Hue:      h,
			Sat:      s,
			Lum:      l,
			Fraction: float64(n) / float64(total),
		})
	}
	sort.Slice(shares, func(i, j int) bool { return shares[i].Fraction > shares[j].Fraction })
	if len(shares) > maxColors {
		shares = shares[:maxColors]
	}
	return &Summary{Dominant: shares}
}
