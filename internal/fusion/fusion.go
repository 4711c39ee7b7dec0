// Package fusion merges the AI channel's JSON document with the OCR text.
package fusion

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	apperrors "go-food-analyzer/internal/errors"
	"go-food-analyzer/pkg/models"
)

// OCRField is the key holding the extracted text in the fused document.
const OCRField = "ocrText"

// EmptyMarker replaces the OCR text when the OCR channel failed.
const EmptyMarker = ""

// Fuse combines both channel outcomes. An AI failure is returned as is; an OCR
// failure only degrades the result.
func Fuse(ai models.ChannelResult[string], ocr models.ChannelResult[string]) (*models.FusedResult, error) {
	if !ai.Ok() {
		return nil, ai.Err()
	}

	doc, err := extractDocument([]byte(ai.Value()))
	if err != nil {
		return nil, err
	}

	text, degraded := EmptyMarker, !ocr.Ok()
	if !degraded {
		text = ocr.Value()
	}

	fused, err := setField(doc, OCRField, text)
	if err != nil {
		return nil, err
	}
	return &models.FusedResult{Document: fused, OCRDegraded: degraded}, nil
}

// generateContentResponse is the subset of the Gemini envelope needed to
// reach the model's text output.
type generateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// extractDocument returns the JSON object the model produced. Provider
// envelopes are unwrapped; a body that is already the document is used as is.
func extractDocument(body []byte) (json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if !json.Valid(body) {
		return nil, malformed("response body is not valid JSON", nil)
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, malformed("response body is not a JSON object", err)
	}
	if _, ok := probe["candidates"]; !ok {
		return body, nil
	}

	var envelope generateContentResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, malformed("unexpected response envelope", err)
	}
	if len(envelope.Candidates) == 0 || len(envelope.Candidates[0].Content.Parts) == 0 {
		return nil, malformed("response envelope has no candidate text", nil)
	}

	text := stripCodeFence(envelope.Candidates[0].Content.Parts[0].Text)
	inner := []byte(text)
	if !json.Valid(inner) {
		return nil, malformed("model text is not valid JSON", nil)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(inner, &obj); err != nil {
		return nil, malformed("model text is not a JSON object", err)
	}
	return inner, nil
}

// stripCodeFence removes a surrounding ```json ... ``` block if present.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// setField writes key=value into a JSON object, keeping the order and raw
// encoding of every other member. An existing key is overwritten in place.
func setField(obj json.RawMessage, key, value string) (json.RawMessage, error) {
	encodedValue, err := json.Marshal(value)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode OCR text", err)
	}

	dec := json.NewDecoder(bytes.NewReader(obj))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil, malformed("document is not a JSON object", err)
	}

	var out bytes.Buffer
	out.WriteByte('{')
	written, replaced := 0, false
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, malformed("failed to read document key", err)
		}
		name, ok := tok.(string)
		if !ok {
			return nil, malformed(fmt.Sprintf("unexpected token %v", tok), nil)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, malformed("failed to read document value", err)
		}
		if name == key {
			if replaced {
				continue
			}
			raw, replaced = encodedValue, true
		}
		if written > 0 {
			out.WriteByte(',')
		}
		writeMember(&out, name, raw)
		written++
	}
	if _, err := dec.Token(); err != nil {
		return nil, malformed("unterminated document", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, malformed("trailing data after document", err)
	}

	if !replaced {
		if written > 0 {
			out.WriteByte(',')
		}
		writeMember(&out, key, encodedValue)
	}
	out.WriteByte('}')
	return out.Bytes(), nil
}

func writeMember(out *bytes.Buffer, name string, raw json.RawMessage) {
	encodedName, _ := json.Marshal(name)
	out.Write(encodedName)
	out.WriteByte(':')
	out.Write(raw)
}

func malformed(message string, cause error) *apperrors.AppError {
	return apperrors.NewMalformedUpstreamJSONError(message, cause)
}
