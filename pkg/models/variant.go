package models

import (
	"fmt"
	"strings"

	"github.com/arbovm/levenshtein"

	apperrors "go-food-analyzer/internal/errors"
)

// Variant selects which prompt drives the vision model.
type Variant string

const (
	VariantClassify Variant = "classify"
	VariantPackaged Variant = "packaged"
	VariantPrepared Variant = "prepared"
)

// Variants is the closed set of accepted variants, in display order.
var Variants = []Variant{VariantClassify, VariantPackaged, VariantPrepared}

// maxSuggestionDistance bounds how far a typo may be from a real variant
// before we stop suggesting it.
const maxSuggestionDistance = 3

// ParseVariant maps a wire value onto the closed variant set.
func ParseVariant(raw string) (Variant, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	for _, v := range Variants {
		if string(v) == normalized {
			return v, nil
		}
	}

	details := fmt.Sprintf("accepted values: %s", joinVariants())
	if suggestion, ok := closestVariant(normalized); ok {
		details = fmt.Sprintf("did you mean %q? %s", suggestion, details)
	}
	return "", apperrors.NewUnknownVariantError(fmt.Sprintf("unknown variant %q", raw), details)
}

// Valid reports whether v belongs to the closed set.
func (v Variant) Valid() bool {
	for _, known := range Variants {
		if v == known {
			return true
		}
	}
	return false
}

func (v Variant) String() string { return string(v) }

func closestVariant(s string) (Variant, bool) {
	if s == "" {
		return "", false
	}
	best, bestDist := Variant(""), maxSuggestionDistance+1
	for _, v := range Variants {
		if d := levenshtein.Distance(s, string(v)); d < bestDist {
			best, bestDist = v, d
		}
	}
	return best, bestDist <= maxSuggestionDistance
}

func joinVariants() string {
	names := make([]string, len(Variants))
	for i, v := range Variants {
		names[i] = string(v)
	}
	return strings.Join(names, ", ")
}
