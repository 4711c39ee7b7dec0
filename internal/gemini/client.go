// Package gemini implements the AI analysis channel: a single multimodal
// generateContent call per request, bounded by a hard timeout.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "go-food-analyzer/internal/errors"
	"go-food-analyzer/internal/imagecodec"
	"go-food-analyzer/internal/logger"
	"go-food-analyzer/pkg/models"

	"github.com/sirupsen/logrus"
)

const (
	DefaultBaseURL     = "https://generativelanguage.googleapis.com"
	DefaultModel       = "gemini-1.5-flash-latest"
	DefaultMimeType    = "image/jpeg"
	DefaultTimeout     = 30 * time.Second
	DefaultTemperature = 0.1

	// maxErrorBodyBytes caps how much of a failed upstream body is kept in
	// the error detail.
	maxErrorBodyBytes = 2048
)

// Options controls how the client is configured.
type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	MimeType    string
	Timeout     time.Duration
	Temperature *float64
	HTTPClient  *http.Client
}

// Channel is the AI analysis contract used by the orchestrator.
type Channel interface {
	Analyze(ctx context.Context, img *imagecodec.DecodedImage, prompt string) models.ChannelResult[string]
}

// Client issues generateContent calls and returns the raw response body.
type Client struct {
	apiKey      string
	endpoint    string
	mimeType    string
	timeout     time.Duration
	temperature *float64
	httpClient  *http.Client
}

// NewClient constructs a client with defaults for anything left unset.
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid gemini base URL %q: %w", opts.BaseURL, err)
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}
	mimeType := strings.TrimSpace(opts.MimeType)
	if mimeType == "" {
		mimeType = DefaultMimeType
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	temperature := opts.Temperature
	if temperature == nil {
		t := DefaultTemperature
		temperature = &t
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = newHTTPClient()
	}

	return &Client{
		apiKey:      strings.TrimSpace(opts.APIKey),
		endpoint:    fmt.Sprintf("%s/v1beta/models/%s:generateContent", baseURL, url.PathEscape(model)),
		mimeType:    mimeType,
		timeout:     timeout,
		temperature: temperature,
		httpClient:  httpClient,
	}, nil
}

// newHTTPClient builds a pooled transport for a single upstream host. The
// per-call deadline comes from the request context, not the client.
func newHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport}
}

// Analyze sends the prompt and image in one request. Exactly one attempt is
// made; the body of a 2xx answer is returned verbatim.
func (c *Client) Analyze(ctx context.Context, img *imagecodec.DecodedImage, prompt string) models.ChannelResult[string] {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result := c.do(ctx, img, prompt)

	entry := logger.FromContext(ctx).WithFields(logrus.Fields{
		"channel":     "ai",
		"duration_ms": time.Since(start).Milliseconds(),
	})
	if result.Ok() {
		entry.WithField("body_bytes", len(result.Value())).Debug("Vision model call completed")
	} else {
		entry.WithError(result.Err()).Warn("Vision model call failed")
	}
	return result
}

func (c *Client) do(ctx context.Context, img *imagecodec.DecodedImage, prompt string) models.ChannelResult[string] {
	if img == nil || len(img.Bytes) == 0 {
		return failure(apperrors.KindTransportError, "no image to send")
	}

	body, err := json.Marshal(c.buildRequest(img, prompt))
	if err != nil {
		return failure(apperrors.KindTransportError, fmt.Sprintf("encode request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.requestURL(), bytes.NewReader(body))
	if err != nil {
		return failure(apperrors.KindTransportError, fmt.Sprintf("build request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return classifyTransportError(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return failure(apperrors.KindUpstreamError,
			fmt.Sprintf("status %d: %s", resp.StatusCode, truncate(string(respBody), maxErrorBodyBytes)))
	}

	return models.Success(string(respBody))
}

func (c *Client) buildRequest(img *imagecodec.DecodedImage, prompt string) generateContentRequest {
	return generateContentRequest{
		Contents: []content{{
			Parts: []part{
				{Text: prompt},
				{InlineData: &inlineData{MimeType: c.mimeType, Data: img.Base64()}},
			},
		}},
		GenerationConfig: &generationConfig{Temperature: c.temperature},
	}
}

func (c *Client) requestURL() string {
	if c.apiKey == "" {
		return c.endpoint
	}
	return c.endpoint + "?key=" + url.QueryEscape(c.apiKey)
}

func classifyTransportError(ctx context.Context, err error) models.ChannelResult[string] {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return failure(apperrors.KindTimeout, "vision model did not answer in time")
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return failure(apperrors.KindTimeout, netErr.Error())
	}
	return failure(apperrors.KindTransportError, redactKey(err.Error()))
}

func failure(kind apperrors.Kind, detail string) models.ChannelResult[string] {
	return models.Failure[string](apperrors.NewChannelError(kind, apperrors.StageAIChannel, detail))
}

// redactKey strips the API key that net/http echoes back inside *url.Error.
func redactKey(msg string) string {
	i := strings.Index(msg, "key=")
	if i < 0 {
		return msg
	}
	end := strings.IndexAny(msg[i:], "\"& ")
	if end < 0 {
		return msg[:i] + "key=REDACTED"
	}
	return msg[:i] + "key=REDACTED" + msg[i+end:]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...(truncated)"
}
