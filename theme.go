package main

import (
	"fmt"
	"html/template"
	"image/color"
	"strconv"
	"strings"

	"github.com/oszuidwest/zwfm-devicecheck/internal/config"
)

var (
	white = color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
	black = color.RGBA{A: 0xFF}
	// Meter fill near full scale, where the input starts to clip.
	hot = color.RGBA{R: 0xCF, G: 0x22, B: 0x2E, A: 0xFF}
)

// pageTheme derives the CSS custom properties of the check page from the
// configured brand colors: header and button shades plus the level meter
// gradient, which runs from the brand color to red near full scale.
func pageTheme(light, dark string) template.CSS {
	l := parseHexColor(light, config.DefaultColorLight)
	d := parseHexColor(dark, config.DefaultColorDark)

	var b strings.Builder
	fmt.Fprintf(&b, ":root{--brand:%s;--brand-hover:%s;--meter-track:%s;--meter:linear-gradient(90deg,%s 0%%,%s 80%%,%s 100%%)}",
		hexColor(l), hexColor(mix(l, black, 0.1)), hexColor(mix(l, white, 0.85)),
		hexColor(l), hexColor(l), hexColor(hot))
	fmt.Fprintf(&b, "@media(prefers-color-scheme:dark){:root{--brand:%s;--brand-hover:%s;--meter-track:%s;--meter:linear-gradient(90deg,%s 0%%,%s 80%%,%s 100%%)}}",
		hexColor(d), hexColor(mix(d, black, 0.1)), hexColor(mix(d, black, 0.7)),
		hexColor(d), hexColor(d), hexColor(hot))
	return template.CSS(b.String()) //nolint:gosec // Built only from validated #RRGGBB values
}

// parseHexColor parses #RRGGBB, falling back to fallback when s is malformed.
func parseHexColor(s, fallback string) color.RGBA {
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "#"), 16, 32)
	if err != nil || len(s) != 7 || s[0] != '#' {
		if s == fallback {
			return black
		}
		return parseHexColor(fallback, fallback)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xFF} //nolint:gosec // 24-bit value
}

// mix moves c toward target by t in [0,1].
func mix(c, target color.RGBA, t float64) color.RGBA {
	blend := func(a, b uint8) uint8 {
		return uint8(float64(a) + (float64(b)-float64(a))*t + 0.5)
	}
	return color.RGBA{R: blend(c.R, target.R), G: blend(c.G, target.G), B: blend(c.B, target.B), A: 0xFF}
}

func hexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}
