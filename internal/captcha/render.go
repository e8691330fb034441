package captcha

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"math/big"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	imageWidth  = 160
	imageHeight = 48
)

// renderPNG draws the code onto a small PNG with per-glyph vertical
// jitter and random noise pixels, and returns it base64-encoded for
// embedding in a JSON response as a data URI payload.
func renderPNG(code string) (string, error) {
	img := image.NewRGBA(image.Rect(0, 0, imageWidth, imageHeight))

	background := color.RGBA{R: 240, G: 240, B: 245, A: 255}
	for x := 0; x < imageWidth; x++ {
		for y := 0; y < imageHeight; y++ {
			img.Set(x, y, background)
		}
	}

	if err := drawNoise(img, 120); err != nil {
		return "", err
	}

	face := basicfont.Face7x13
	ink := color.RGBA{R: 40, G: 40, B: 60, A: 255}
	step := (imageWidth - 20) / len(code)

	for i, glyph := range code {
		jitter, err := randomInt(12)
		if err != nil {
			return "", err
		}

		drawer := &font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(ink),
			Face: face,
			Dot: fixed.P(
				10+i*step,
				(imageHeight/2)+jitter-4,
			),
		}
		drawer.DrawString(string(glyph))
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func drawNoise(img *image.RGBA, dots int) error {
	for i := 0; i < dots; i++ {
		x, err := randomInt(imageWidth)
		if err != nil {
			return err
		}
		y, err := randomInt(imageHeight)
		if err != nil {
			return err
		}
		shade, err := randomInt(160)
		if err != nil {
			return err
		}
		gray := uint8(60 + shade)
		img.Set(x, y, color.RGBA{R: gray, G: gray, B: gray, A: 255})
	}
	return nil
}

func randomInt(max int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()), nil
}
