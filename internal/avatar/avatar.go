// Package avatar draws the letter avatars shown next to posts: a solid
// square with the first letter of the username in the middle.
package avatar

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Default look of an avatar.
var (
	DefaultBackground = color.RGBA{R: 0x34, G: 0x98, B: 0xdb, A: 0xff} // #3498db
	DefaultForeground = color.White
)

const DefaultSize = 100

// Options controls the rendered image. Zero values fall back to the defaults.
type Options struct {
	Width      int
	Height     int
	Background color.Color
	Foreground color.Color
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = DefaultSize
	}
	if o.Height <= 0 {
		o.Height = DefaultSize
	}
	if o.Background == nil {
		o.Background = DefaultBackground
	}
	if o.Foreground == nil {
		o.Foreground = DefaultForeground
	}
	return o
}

var (
	fontOnce sync.Once
	goFont   *opentype.Font
	fontErr  error
)

// parsedFont parses the embedded Go Regular font once per process.
func parsedFont() (*opentype.Font, error) {
	fontOnce.Do(func() {
		goFont, fontErr = opentype.Parse(goregular.TTF)
	})
	return goFont, fontErr
}

// LetterFor returns the upper-cased first letter of username, or '?' for an
// empty name.
func LetterFor(username string) rune {
	r, _ := utf8.DecodeRuneInString(username)
	if r == utf8.RuneError {
		return '?'
	}
	return unicode.ToUpper(r)
}

// Render draws letter centred on a solid background and returns the PNG
// bytes. The glyph is sized at half the image height. Output depends only
// on the arguments.
func Render(letter rune, opts Options) ([]byte, error) {
	opts = opts.withDefaults()

	f, err := parsedFont()
	if err != nil {
		return nil, fmt.Errorf("avatar: parsing font: %w", err)
	}

	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    float64(opts.Height) / 2,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("avatar: creating font face: %w", err)
	}
	defer face.Close()

	img := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(opts.Background), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(opts.Foreground),
		Face: face,
	}

	text := string(letter)
	bounds, _ := d.BoundString(text)
	if bounds.Empty() && !unicode.IsSpace(letter) {
		return nil, errors.New("avatar: font has no glyph for letter")
	}

	// Centre the ink box, not the advance box, so the letter looks centred
	// whatever its side bearings.
	inkW := bounds.Max.X - bounds.Min.X
	inkH := bounds.Max.Y - bounds.Min.Y
	d.Dot = fixed.Point26_6{
		X: fixed.I(opts.Width)/2 - inkW/2 - bounds.Min.X,
		Y: fixed.I(opts.Height)/2 - inkH/2 - bounds.Min.Y,
	}
	d.DrawString(text)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("avatar: encoding png: %w", err)
	}
	return buf.Bytes(), nil
}
