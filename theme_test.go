package main

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseHexColor(t *testing.T) {
	assert.Equal(t, color.RGBA{R: 0xE6, B: 0x7E, A: 0xFF}, parseHexColor("#E6007E", "#000000"))
	assert.Equal(t, color.RGBA{R: 0x11, G: 0x22, B: 0x33, A: 0xFF}, parseHexColor("nope", "#112233"))
	assert.Equal(t, color.RGBA{R: 0x11, G: 0x22, B: 0x33, A: 0xFF}, parseHexColor("#12345", "#112233"))
}

func TestMix(t *testing.T) {
	assert.Equal(t, "#808080", hexColor(mix(black, white, 0.5)))
	assert.Equal(t, "#FFFFFF", hexColor(mix(black, white, 1)))
	assert.Equal(t, "#E6007E", hexColor(mix(color.RGBA{R: 0xE6, B: 0x7E, A: 0xFF}, black, 0)))
}

func TestPageTheme(t *testing.T) {
	css := string(pageTheme("#E6007E", "#112233"))
	assert.Contains(t, css, "--brand:#E6007E")
	assert.Contains(t, css, "--brand-hover:#CF0071")
	assert.Contains(t, css, "#CF222E 100%")
	assert.Contains(t, css, "prefers-color-scheme:dark){:root{--brand:#112233")
}
