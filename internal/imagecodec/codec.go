// Package imagecodec turns the base64 payload received at the boundary into
// a fully materialized image that both analysis channels can read.
package imagecodec

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

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	apperrors "go-food-analyzer/internal/errors"
)

// DecodedImage is immutable once returned by Decode. Bytes holds the original
// encoded file; Image holds the decoded raster.
type DecodedImage struct {
	Bytes  []byte
	Image  image.Image
	Format string
}

// Size returns the raster dimensions.
func (d *DecodedImage) Size() (int, int) {
	if d == nil || d.Image == nil {
		return 0, 0
	}
	b := d.Image.Bounds()
	return b.Dx(), b.Dy()
}

// Base64 re-encodes the original bytes for outbound transport.
func (d *DecodedImage) Base64() string {
	return base64.StdEncoding.EncodeToString(d.Bytes)
}

// Decoder is the contract the orchestrator depends on.
type Decoder interface {
	Decode(payload string) (*DecodedImage, error)
}

type codec struct{}

// New returns the default decoder.
func New() Decoder {
	return codec{}
}

var errEmptyPayload = errors.New("empty image payload")

// Decode parses a base64 (optionally data-URL) payload and validates that it
// is a supported raster image.
func (codec) Decode(payload string) (*DecodedImage, error) {
	raw, err := decodeBase64(payload)
	if err != nil {
		return nil, apperrors.NewInvalidImageError("image payload is not valid base64", err)
	}
	if len(raw) == 0 {
		return nil, apperrors.NewInvalidImageError("image payload is empty", errEmptyPayload)
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, apperrors.NewInvalidImageError("image payload is not a decodable image", err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, apperrors.NewInvalidImageError("image has no pixels", fmt.Errorf("bounds %v", b))
	}

	return &DecodedImage{Bytes: raw, Image: img, Format: format}, nil
}

func decodeBase64(payload string) ([]byte, error) {
	s := strings.TrimSpace(payload)
	if strings.HasPrefix(s, "data:") {
		comma := strings.IndexByte(s, ',')
		if comma < 0 || !strings.HasSuffix(s[:comma], ";base64") {
			return nil, errors.New("malformed data URL")
		}
		s = s[comma+1:]
	}
	if s == "" {
		return nil, errEmptyPayload
	}
	// Clients wrapping lines at 76 columns are common.
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, s)

	if raw, err := base64.StdEncoding.DecodeString(s); err == nil {
		return raw, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}
