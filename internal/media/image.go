// Package media validates uploaded recipe images and stores them as blobs.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder

	"github.com/bbrks/go-blurhash"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

// ErrNotImage is returned when an upload cannot be decoded as an image.
var ErrNotImage = errors.New("upload a valid image: the file is either not an image or a corrupted image")

// blurHashSize bounds the thumbnail used for the placeholder hash.
const blurHashSize = 64

// MaxPixels caps width*height of an upload. Decoders allocate the whole
// frame up front, so a small file can declare a huge canvas.
const MaxPixels = 40_000_000

// Decoded describes an upload that decoded successfully.
type Decoded struct {
	Format      string // gif, jpeg, png or webp
	ContentType string
	Width       int
	Height      int
	BlurHash    string
}

var contentTypes = map[string]string{
	"gif":  "image/gif",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"webp": "image/webp",
}

// Inspect decodes data and computes its BlurHash. Anything the registered
// decoders reject, and anything larger than MaxPixels, yields ErrNotImage.
func Inspect(data []byte) (Decoded, error) {
	if len(data) == 0 {
		return Decoded{}, ErrNotImage
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || cfg.Width <= 0 || cfg.Height <= 0 {
		return Decoded{}, ErrNotImage
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return Decoded{}, ErrNotImage
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Decoded{}, ErrNotImage
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return Decoded{}, ErrNotImage
	}

	// 4 horizontal, 3 vertical components
	hash, err := blurhash.Encode(4, 3, thumbnail(img))
	if err != nil {
		return Decoded{}, fmt.Errorf("encode blurhash: %w", err)
	}
	ct := contentTypes[format]
	if ct == "" {
		ct = "application/octet-stream"
	}
	return Decoded{Format: format, ContentType: ct, Width: b.Dx(), Height: b.Dy(), BlurHash: hash}, nil
}

// thumbnail scales img down with nearest-neighbour sampling so the hash
// stays cheap for large uploads.
func thumbnail(img image.Image) image.Image {
	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	if srcW <= blurHashSize && srcH <= blurHashSize {
		return img
	}

	dstW, dstH := blurHashSize, blurHashSize
	if srcW > srcH {
		dstH = max(1, srcH*blurHashSize/srcW)
	} else {
		dstW = max(1, srcW*blurHashSize/srcH)
	}

	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	xRatio := float64(srcW) / float64(dstW)
	yRatio := float64(srcH) / float64(dstH)
	for y := 0; y < dstH; y++ {
		for x := 0; x < dstW; x++ {
			dst.Set(x, y, img.At(bounds.Min.X+int(float64(x)*xRatio), bounds.Min.Y+int(float64(y)*yRatio)))
		}
	}
	return dst
}
