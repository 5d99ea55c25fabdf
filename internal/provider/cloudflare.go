// Package provider wraps the upstream AI image generation call. The core
// treats it as one bounded request/response: no retries, failures are
// surfaced to the caller.
package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// MaxPromptLength bounds the prompt forwarded upstream.
	MaxPromptLength = 1000

	defaultBaseURL = "https://api.cloudflare.com/client/v4"
	maxImageBytes  = 20 << 20
	maxErrorBytes  = 4 << 10
)

var (
	// ErrNotConfigured is returned when account, token or model is missing.
	ErrNotConfigured = errors.New("image provider not configured")
	// ErrProvider marks an upstream failure.
	ErrProvider = errors.New("image provider error")
)

// Generator turns a prompt into image bytes.
type Generator interface {
	Generate(ctx context.Context, prompt string) ([]byte, error)
}

// Cloudflare calls Workers AI: POST {BaseURL}/accounts/{id}/ai/run/{model}.
type Cloudflare struct {
	AccountID string
	APIToken  string
	Model     string
	BaseURL   string
	Client    *http.Client
	Log       *slog.Logger
}

// NewCloudflare returns a Cloudflare generator whose HTTP client gives up
// after timeout.
func NewCloudflare(accountID, apiToken, model string, timeout time.Duration) *Cloudflare {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Cloudflare{
		AccountID: accountID,
		APIToken:  apiToken,
		Model:     model,
		BaseURL:   defaultBaseURL,
		Client:    &http.Client{Timeout: timeout},
		Log:       slog.Default(),
	}
}

// Configured reports whether every credential is present.
func (c *Cloudflare) Configured() bool {
	return c.AccountID != "" && c.APIToken != "" && c.Model != ""
}

// Generate forwards prompt and returns the image bytes. Models answer
// either with the raw image or with JSON {"result":{"image":"<base64>"}}.
func (c *Cloudflare) Generate(ctx context.Context, prompt string) ([]byte, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if len(prompt) > MaxPromptLength {
		return nil, fmt.Errorf("%w: prompt too long", ErrProvider)
	}

	body, err := json.Marshal(map[string]string{"prompt": prompt})
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/accounts/%s/ai/run/%s",
		strings.TrimSuffix(c.BaseURL, "/"), url.PathEscape(c.AccountID), c.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrProvider, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
		c.Log.Error("cloudflare ai error", "status", resp.StatusCode, "body", string(detail))
		return nil, fmt.Errorf("%w: upstream status %d", ErrProvider, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrProvider, err)
	}
	if mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mt == "application/json" {
		return decodeJSONImage(data)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrProvider)
	}
	return data, nil
}

func decodeJSONImage(data []byte) ([]byte, error) {
	var env struct {
		Success *bool `json:"success"`
		Result  struct {
			Image string `json:"image"`
		} `json:"result"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrProvider, err)
	}
	if (env.Success != nil && !*env.Success) || env.Result.Image == "" {
		return nil, fmt.Errorf("%w: no image in response", ErrProvider)
	}
	img, err := base64.StdEncoding.DecodeString(env.Result.Image)
	if err != nil {
		return nil, fmt.Errorf("%w: decode image: %v", ErrProvider, err)
	}
	return img, nil
}
