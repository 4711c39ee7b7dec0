// Package prompts holds the static mapping from analysis variant to prompt
// template. The table is built once at startup and never mutated.
package prompts

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	apperrors "go-food-analyzer/internal/errors"
	"go-food-analyzer/pkg/models"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// Catalog resolves prompt templates by variant.
type Catalog interface {
	PromptFor(variant models.Variant) (string, error)
}

// StaticCatalog is a read-only variant → template table.
type StaticCatalog struct {
	templates map[models.Variant]string
}

// Default returns the catalog compiled into the binary.
func Default() (*StaticCatalog, error) {
	return Parse(defaultPrompts)
}

// LoadFile builds a catalog from a YAML file on disk.
func LoadFile(path string) (*StaticCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompt file: %w", err)
	}
	return Parse(data)
}

// Parse builds a catalog from YAML of the form `variant: template`. Every
// known variant must be present with a non-empty template; unknown keys are
// rejected so typos surface at startup.
func Parse(data []byte) (*StaticCatalog, error) {
	raw := make(map[string]string)
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse prompt catalog: %w", err)
	}

	templates := make(map[models.Variant]string, len(models.Variants))
	for key, text := range raw {
		variant := models.Variant(strings.ToLower(strings.TrimSpace(key)))
		if !variant.Valid() {
			return nil, fmt.Errorf("prompt catalog: unknown variant %q", key)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return nil, fmt.Errorf("prompt catalog: empty template for %q", key)
		}
		templates[variant] = text
	}
	for _, v := range models.Variants {
		if _, ok := templates[v]; !ok {
			return nil, fmt.Errorf("prompt catalog: missing template for %q", v)
		}
	}

	return &StaticCatalog{templates: templates}, nil
}

// PromptFor returns the template for the variant.
func (c *StaticCatalog) PromptFor(variant models.Variant) (string, error) {
	text, ok := c.templates[variant]
	if !ok {
		return "", apperrors.NewUnknownVariantError(fmt.Sprintf("unknown variant %q", variant), "")
	}
	return text, nil
}

// Variants lists the variants the catalog serves, in display order.
func (c *StaticCatalog) Variants() []models.Variant {
	out := make([]models.Variant, 0, len(c.templates))
	for _, v := range models.Variants {
		if _, ok := c.templates[v]; ok {
			out = append(out, v)
		}
	}
	return out
}
