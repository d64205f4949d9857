package avatar

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func sameColor(a, b color.Color) bool {
	r1, g1, b1, a1 := a.RGBA()
	r2, g2, b2, a2 := b.RGBA()
	return r1 == r2 && g1 == g2 && b1 == b2 && a1 == a2
}

func TestLetterFor(t *testing.T) {
	tests := []struct {
		in   string
		want rune
	}{
		{"alice", 'A'},
		{"Bob", 'B'},
		{"émile", 'É'},
		{"42", '4'},
		{"", '?'},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LetterFor(tt.in), "LetterFor(%q)", tt.in)
	}
}

func TestRender_DefaultSizeAndBackground(t *testing.T) {
	data, err := Render('A', Options{})
	require.NoError(t, err)

	img := decode(t, data)
	assert.Equal(t, image.Rect(0, 0, 100, 100), img.Bounds())
	assert.True(t, sameColor(DefaultBackground, img.At(0, 0)), "corner should be background")
	assert.True(t, sameColor(DefaultBackground, img.At(99, 99)), "corner should be background")
}

func TestRender_DrawsLetterNearCentre(t *testing.T) {
	data, err := Render('W', Options{})
	require.NoError(t, err)
	img := decode(t, data)

	found := false
	for y := 35; y < 65 && !found; y++ {
		for x := 35; x < 65; x++ {
			if !sameColor(DefaultBackground, img.At(x, y)) {
				found = true
				break
			}
		}
	}
	assert.True(t, found, "no foreground pixels around the centre")
}

func TestRender_Deterministic(t *testing.T) {
	a, err := Render('Q', Options{})
	require.NoError(t, err)
	b, err := Render('Q', Options{})
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := Render('R', Options{})
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestRender_CustomOptions(t *testing.T) {
	red := color.RGBA{R: 0xff, A: 0xff}
	data, err := Render('Z', Options{Width: 64, Height: 32, Background: red})
	require.NoError(t, err)

	img := decode(t, data)
	assert.Equal(t, image.Rect(0, 0, 64, 32), img.Bounds())
	assert.True(t, sameColor(red, img.At(0, 0)))
}
