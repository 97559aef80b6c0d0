// Package icon turns base64-encoded widget icons into normalized CHW tensors
// for an image encoder.
package icon

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"unicode"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Size is the square edge every icon is resized to.
const Size = 224

// Channels is the number of colour planes emitted (RGB).
const Channels = 3

var (
	// ErrEmpty is returned for an empty icon string.
	ErrEmpty = errors.New("icon data is empty")
	// ErrBase64 is returned when the payload is not valid base64.
	ErrBase64 = errors.New("icon data is not valid base64")
	// ErrImage is returned when the decoded bytes are not a supported image.
	ErrImage = errors.New("icon data is not a supported image")
)

// Tensor is a preprocessed icon: Pixels are planar RGB in [0, 1] with shape
// [1, 3, Size, Size].
type Tensor struct {
	Pixels []float32
	Shape  []int64
	Format string
}

// Decode parses a base64 (optionally data-URL) icon and preprocesses it.
func Decode(encoded string) (Tensor, error) {
	raw, err := DecodeBase64(encoded)
	if err != nil {
		return Tensor{}, err
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return Tensor{}, fmt.Errorf("%w: %w", ErrImage, err)
	}

	pixels, err := Preprocess(img)
	if err != nil {
		return Tensor{}, err
	}

	return Tensor{
		Pixels: pixels,
		Shape:  []int64{1, Channels, Size, Size},
		Format: format,
	}, nil
}

// DecodeBase64 strips a "data:...," prefix and all whitespace, restores
// missing '=' padding and decodes the payload.
func DecodeBase64(encoded string) ([]byte, error) {
	payload := encoded
	if strings.HasPrefix(payload, "data:") {
		if i := strings.IndexByte(payload, ','); i >= 0 {
			payload = payload[i+1:]
		}
	}

	payload = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}

		return r
	}, payload)

	if payload == "" {
		return nil, ErrEmpty
	}

	if rem := len(payload) % 4; rem != 0 {
		payload += strings.Repeat("=", 4-rem)
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		raw, err = base64.URLEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBase64, err)
		}
	}

	return raw, nil
}

// Preprocess bilinearly resizes img to Size×Size and returns planar RGB
// values scaled to [0, 1].
func Preprocess(img image.Image) ([]float32, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrImage)
	}

	b := img.Bounds()
	if b.Dx() < 1 || b.Dy() < 1 {
		return nil, fmt.Errorf("%w: invalid dimensions %dx%d", ErrImage, b.Dx(), b.Dy())
	}

	resized := image.NewRGBA(image.Rect(0, 0, Size, Size))
	draw.BiLinear.Scale(resized, resized.Bounds(), img, b, draw.Src, nil)

	const plane = Size * Size

	pixels := make([]float32, Channels*plane)

	for y := range Size {
		for x := range Size {
			off := resized.PixOffset(x, y)
			i := y*Size + x
			pixels[i] = float32(resized.Pix[off]) / 255
			pixels[plane+i] = float32(resized.Pix[off+1]) / 255
			pixels[2*plane+i] = float32(resized.Pix[off+2]) / 255
		}
	}

	return pixels, nil
}
