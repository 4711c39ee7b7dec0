// Package tesseract provides the gosseract-backed OCR engine. It is kept apart
// from package ocr because it links against libtesseract through cgo.
package tesseract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"go-food-analyzer/internal/imagecodec"
)

// DefaultLanguages matches the label languages the service is tuned for.
var DefaultLanguages = []string{"kor", "eng"}

// Engine runs Tesseract through a fresh gosseract client per call; clients
// are not safe for concurrent use and the pool runs calls in parallel.
type Engine struct {
	languages     []string
	clientFactory func() *gosseract.Client
}

// New constructs an engine with the given language hints.
func New(languages []string) *Engine {
	if len(languages) == 0 {
		languages = DefaultLanguages
	}
	return &Engine{languages: languages, clientFactory: gosseract.NewClient}
}

// Recognize returns the trimmed text found in the image.
func (e *Engine) Recognize(img *imagecodec.DecodedImage) (string, error) {
	if img == nil || len(img.Bytes) == 0 {
		return "", errors.New("no image data")
	}

	c := e.clientFactory()
	defer c.Close()

	if err := c.SetLanguage(e.languages...); err != nil {
		return "", fmt.Errorf("set languages: %w", err)
	}
	if err := c.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		return "", fmt.Errorf("set page segmentation mode: %w", err)
	}
	if err := c.SetImageFromBytes(img.Bytes); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}

	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// Languages returns the configured language hints.
func (e *Engine) Languages() []string {
	return append([]string(nil), e.languages...)
}
