package fusion

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "go-food-analyzer/internal/errors"
	"go-food-analyzer/pkg/models"
)

func envelope(t *testing.T, text string) string {
	t.Helper()
	body := map[string]any{
		"candidates": []any{
			map[string]any{
				"content": map[string]any{
					"parts": []any{map[string]any{"text": text}},
					"role":  "model",
				},
				"finishReason": "STOP",
			},
		},
	}
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	return string(raw)
}

func TestFuse_AddsOCRTextPreservingOrder(t *testing.T) {
	result, err := Fuse(
		models.Success(`{"food":"apple","calories":95}`),
		models.Success("100g"),
	)

	require.NoError(t, err)
	assert.Equal(t, `{"food":"apple","calories":95,"ocrText":"100g"}`, string(result.Document))
	assert.False(t, result.OCRDegraded)
}

func TestFuse_UnwrapsProviderEnvelope(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"plain", `{"food":"apple","calories":95}`},
		{"fenced", "```json\n{\"food\":\"apple\",\"calories\":95}\n```"},
		{"bare fence", "```\n{\"food\":\"apple\",\"calories\":95}\n```"},
		{"padded", "  \n{\"food\":\"apple\",\"calories\":95}\n  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Fuse(models.Success(envelope(t, tt.text)), models.Success("100g"))
			require.NoError(t, err)
			assert.Equal(t, `{"food":"apple","calories":95,"ocrText":"100g"}`, string(result.Document))
		})
	}
}

func TestFuse_OverwritesExistingOCRFieldInPlace(t *testing.T) {
	result, err := Fuse(
		models.Success(`{"ocrText":"stale","food":"rice","nested":{"b":1,"a":[1,2]}}`),
		models.Success("label text"),
	)

	require.NoError(t, err)
	assert.Equal(t, `{"ocrText":"label text","food":"rice","nested":{"b":1,"a":[1,2]}}`, string(result.Document))
}

func TestFuse_PreservesRawNumbers(t *testing.T) {
	result, err := Fuse(models.Success(`{"calories":1.50,"big":12345678901234567890}`), models.Success(""))

	require.NoError(t, err)
	assert.Equal(t, `{"calories":1.50,"big":12345678901234567890,"ocrText":""}`, string(result.Document))
}

func TestFuse_EmptyObject(t *testing.T) {
	result, err := Fuse(models.Success(`{}`), models.Success("x"))

	require.NoError(t, err)
	assert.Equal(t, `{"ocrText":"x"}`, string(result.Document))
}

func TestFuse_EscapesOCRText(t *testing.T) {
	result, err := Fuse(models.Success(`{"food":"kimchi"}`), models.Success("칼로리 \"120\"\nkcal"))

	require.NoError(t, err)
	var decoded map[string]string
	require.NoError(t, json.Unmarshal(result.Document, &decoded))
	assert.Equal(t, "칼로리 \"120\"\nkcal", decoded[OCRField])
}

func TestFuse_OCRFailureDegrades(t *testing.T) {
	ocrFailure := models.Failure[string](apperrors.NewChannelError(apperrors.KindOCREngineError, apperrors.StageOCRChannel, "boom"))

	result, err := Fuse(models.Success(`{"food":"apple","calories":95}`), ocrFailure)

	require.NoError(t, err)
	assert.True(t, result.OCRDegraded)
	assert.Equal(t, `{"food":"apple","calories":95,"ocrText":""}`, string(result.Document))
}

func TestFuse_AIFailureIsFatal(t *testing.T) {
	kinds := []apperrors.Kind{
		apperrors.KindTimeout,
		apperrors.KindUpstreamError,
		apperrors.KindTransportError,
	}

	for _, kind := range kinds {
		t.Run(string(kind), func(t *testing.T) {
			aiFailure := models.Failure[string](apperrors.NewChannelError(kind, apperrors.StageAIChannel, "detail"))

			result, err := Fuse(aiFailure, models.Success("100g"))

			assert.Nil(t, result)
			require.Error(t, err)
			assert.True(t, apperrors.IsKind(err, kind))
		})
	}
}

func TestFuse_MalformedUpstreamJSON(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "I think this is an apple"},
		{"truncated", `{"food":"apple"`},
		{"array", `[1,2,3]`},
		{"string", `"apple"`},
		{"empty", ``},
		{"no candidates", `{"candidates":[]}`},
		{"no parts", `{"candidates":[{"content":{"parts":[]}}]}`},
		{"prose in envelope", `{"candidates":[{"content":{"parts":[{"text":"Looks like an apple."}]}}]}`},
		{"array in envelope", `{"candidates":[{"content":{"parts":[{"text":"[1]"}]}}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Fuse(models.Success(tt.body), models.Success("100g"))

			assert.Nil(t, result)
			require.Error(t, err)
			appErr, ok := apperrors.As(err)
			require.True(t, ok)
			assert.Equal(t, apperrors.KindMalformedUpstreamJSON, appErr.Kind)
			assert.Equal(t, apperrors.StageFusion, appErr.Stage)
		})
	}
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence(`{"a":1}`))
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json{\"a\":1}```"))
}
