package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "go-food-analyzer/internal/errors"
	"go-food-analyzer/internal/imagecodec"
)

func testImage(t *testing.T) *imagecodec.DecodedImage {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{255, 0, 0, 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return &imagecodec.DecodedImage{Bytes: buf.Bytes(), Image: img, Format: "png"}
}

func newTestClient(t *testing.T, serverURL string, timeout time.Duration) *Client {
	t.Helper()
	client, err := NewClient(Options{
		APIKey:  "secret-key",
		BaseURL: serverURL,
		Model:   "test-model",
		Timeout: timeout,
	})
	require.NoError(t, err)
	return client
}

func TestAnalyze_SendsMultimodalRequestAndReturnsBodyVerbatim(t *testing.T) {
	const upstreamBody = `{"food":"apple", "calories":95}`
	img := testImage(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1beta/models/test-model:generateContent", r.URL.Path)
		assert.Equal(t, "secret-key", r.URL.Query().Get("key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req generateContentRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) ||
			!assert.Len(t, req.Contents, 1) ||
			!assert.Len(t, req.Contents[0].Parts, 2) ||
			!assert.NotNil(t, req.Contents[0].Parts[1].InlineData) ||
			!assert.NotNil(t, req.GenerationConfig) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, "describe the food", req.Contents[0].Parts[0].Text)
		assert.Equal(t, DefaultMimeType, req.Contents[0].Parts[1].InlineData.MimeType)
		assert.Equal(t, img.Base64(), req.Contents[0].Parts[1].InlineData.Data)
		assert.InDelta(t, DefaultTemperature, *req.GenerationConfig.Temperature, 1e-9)

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, upstreamBody)
	}))
	defer server.Close()

	result := newTestClient(t, server.URL, time.Second).Analyze(context.Background(), img, "describe the food")

	require.True(t, result.Ok(), "unexpected failure: %v", result.Err())
	assert.Equal(t, upstreamBody, result.Value())
}

func TestAnalyze_MalformedBodyIsStillSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "definitely not json")
	}))
	defer server.Close()

	result := newTestClient(t, server.URL, time.Second).Analyze(context.Background(), testImage(t), "p")

	require.True(t, result.Ok())
	assert.Equal(t, "definitely not json", result.Value())
}

func TestAnalyze_Non2xxIsUpstreamError(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "Bad request", status: http.StatusBadRequest, body: `{"error":{"message":"API key not valid"}}`},
		{name: "Rate limited", status: http.StatusTooManyRequests, body: "slow down"},
		{name: "Server error", status: http.StatusInternalServerError, body: "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer server.Close()

			result := newTestClient(t, server.URL, time.Second).Analyze(context.Background(), testImage(t), "p")

			require.False(t, result.Ok())
			assert.Equal(t, apperrors.KindUpstreamError, result.Kind())
			assert.Contains(t, result.Err().Details, tt.body)
			assert.Contains(t, result.Err().Details, "status")
			assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "expected a single attempt")
		})
	}
}

func TestAnalyze_TimeoutIsReported(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	start := time.Now()
	result := newTestClient(t, server.URL, 50*time.Millisecond).Analyze(context.Background(), testImage(t), "p")

	require.False(t, result.Ok())
	assert.Equal(t, apperrors.KindTimeout, result.Kind())
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, http.StatusGatewayTimeout, result.Err().StatusCode)
}

func TestAnalyze_TransportErrorRedactsKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	serverURL := server.URL
	server.Close()

	result := newTestClient(t, serverURL, time.Second).Analyze(context.Background(), testImage(t), "p")

	require.False(t, result.Ok())
	assert.Equal(t, apperrors.KindTransportError, result.Kind())
	assert.NotContains(t, result.Err().Details, "secret-key")
}

func TestAnalyze_MissingImage(t *testing.T) {
	client := newTestClient(t, "http://127.0.0.1:1", time.Second)

	result := client.Analyze(context.Background(), &imagecodec.DecodedImage{}, "p")

	require.False(t, result.Ok())
	assert.Equal(t, apperrors.KindTransportError, result.Kind())
}

func TestNewClient_Defaults(t *testing.T) {
	client, err := NewClient(Options{})
	require.NoError(t, err)

	assert.Equal(t, DefaultBaseURL+"/v1beta/models/"+DefaultModel+":generateContent", client.endpoint)
	assert.Equal(t, DefaultTimeout, client.timeout)
	assert.Equal(t, DefaultMimeType, client.mimeType)
	assert.False(t, strings.Contains(client.requestURL(), "key="), "no key configured")
}

func TestNewClient_InvalidBaseURL(t *testing.T) {
	_, err := NewClient(Options{BaseURL: "::not a url"})
	assert.Error(t, err)
}
