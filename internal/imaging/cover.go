// Package imaging prepares catalog cover images for storage.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"net/http"

	"golang.org/x/image/draw"

	"github.com/mvidmar/knjiznica/internal/model"
)

// MaxEdge caps a stored cover's longer edge in pixels.
const MaxEdge = 640

// MaxUploadBytes caps the raw upload size.
const MaxUploadBytes = 8 << 20

const jpegQuality = 80

// Cover is a processed image ready for storage.
type Cover struct {
	Data []byte
	MIME string
}

// PrepareCover sniffs the payload, accepts JPEG or PNG input, shrinks the
// image so its longer edge fits MaxEdge and re-encodes it as JPEG.
func PrepareCover(data []byte) (*Cover, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image payload", model.ErrValidation)
	}
	if len(data) > MaxUploadBytes {
		return nil, fmt.Errorf("%w: image exceeds %d bytes", model.ErrValidation, MaxUploadBytes)
	}

	// The client's declared content type is ignored; the bytes decide.
	switch mime := http.DetectContentType(data); mime {
	case "image/jpeg", "image/png":
	default:
		return nil, fmt.Errorf("%w: unsupported image format %s", model.ErrValidation, mime)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decoding image: %v", model.ErrValidation, err)
	}

	img = shrink(img, MaxEdge)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encoding cover: %w", err)
	}
	return &Cover{Data: buf.Bytes(), MIME: "image/jpeg"}, nil
}

// shrink scales img down so neither edge exceeds maxEdge, preserving the
// aspect ratio. Images already within bounds pass through untouched.
func shrink(img image.Image, maxEdge int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxEdge && h <= maxEdge {
		return img
	}

	scale := float64(maxEdge) / float64(w)
	if h > w {
		scale = float64(maxEdge) / float64(h)
	}
	dw, dh := int(float64(w)*scale), int(float64(h)*scale)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

func init() {
	image.RegisterFormat("png", "\x89PNG", png.Decode, png.DecodeConfig)
}
