// Package imagesearch indexes a folder of images through an external
// embedding service and ranks them against text queries.
package imagesearch

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	errs "tweetcrawl/pkg/errors"
	"tweetcrawl/pkg/logger"
	"tweetcrawl/pkg/retry"
)

// Embedder maps images and text into a shared vector space
type Embedder interface {
	EmbedImage(ctx context.Context, path string) ([]float32, error)
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

type imageRequest struct {
	Model string `json:"model"`
	Image string `json:"image"`
}

type textRequest struct {
	Model string `json:"model"`
	Text  string `json:"text"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// HTTPEmbedder calls an embedding service exposing POST /embed/image and
// POST /embed/text
type HTTPEmbedder struct {
	baseURL    string
	model      string
	httpClient *http.Client
	retry      *retry.Config
	logger     logger.Logger
}

// NewHTTPEmbedder creates a client for the service at baseURL
func NewHTTPEmbedder(baseURL, model string, timeout time.Duration, log logger.Logger) *HTTPEmbedder {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &HTTPEmbedder{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		retry:      retry.DefaultConfig(),
		logger:     log.WithField("embedder", baseURL),
	}
}

// Model names the model requested from the service
func (c *HTTPEmbedder) Model() string {
	return c.model
}

// EmbedImage uploads the image at path and returns its embedding
func (c *HTTPEmbedder) EmbedImage(ctx context.Context, path string) ([]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", path, err)
	}
	req := imageRequest{Model: c.model, Image: base64.StdEncoding.EncodeToString(data)}
	return c.embed(ctx, "/embed/image", req)
}

// EmbedText returns the embedding of a query string
func (c *HTTPEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return c.embed(ctx, "/embed/text", textRequest{Model: c.model, Text: text})
}

func (c *HTTPEmbedder) embed(ctx context.Context, endpoint string, payload interface{}) ([]float32, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	cfg := *c.retry
	cfg.Context = ctx
	cfg.Logger = c.logger

	return retry.DoWithResult(func() ([]float32, error) {
		return c.post(ctx, endpoint, body)
	}, &cfg)
}

// post makes one request. Transport failures and 5xx responses come back as
// timeout errors so the retry policy picks them up.
func (c *HTTPEmbedder) post(ctx context.Context, endpoint string, body []byte) ([]float32, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errs.Timeout("embedding service unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, errs.Timeout(fmt.Sprintf("embedding service returned %d", resp.StatusCode), nil)
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embed %s: status %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("embedding service returned an empty vector")
	}
	return result.Embedding, nil
}
