// Package googletranslate is a small client for the Google Cloud Translation
// v2 REST API (translate and detect).
package googletranslate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const defaultBaseURL = "https://translation.googleapis.com/language/translate/v2"

type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// HTTPStatusError captures non-2xx upstream responses.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("googletranslate: unexpected status %d: %s", e.StatusCode, e.Body)
}

type translateResponse struct {
	Data struct {
		Translations []struct {
			TranslatedText         string `json:"translatedText"`
			DetectedSourceLanguage string `json:"detectedSourceLanguage"`
		} `json:"translations"`
	} `json:"data"`
}

type detectResponse struct {
	Data struct {
		Detections [][]struct {
			Language   string  `json:"language"`
			Confidence float64 `json:"confidence"`
		} `json:"detections"`
	} `json:"data"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	getter     Getter
	keyName    string

	keyMu  sync.Mutex
	apiKey string
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient returns a Client that reads its API key from keyName on first use.
func NewClient(getter Getter, keyName string, opts ...Option) (*Client, error) {
	if getter == nil {
		return nil, errors.New("googletranslate: paramstore getter must not be nil")
	}
	keyName = strings.TrimSpace(keyName)
	if keyName == "" {
		return nil, errors.New("googletranslate: key parameter name must not be empty")
	}
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		getter:     getter,
		keyName:    keyName,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	return c, nil
}

func (c *Client) resolveAPIKey(ctx context.Context) (string, error) {
	c.keyMu.Lock()
	defer c.keyMu.Unlock()
	if c.apiKey != "" {
		return c.apiKey, nil
	}
	raw, err := c.getter.GetParameter(ctx, c.keyName)
	if err != nil {
		return "", fmt.Errorf("googletranslate: fetch api key: %w", err)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("googletranslate: api key is empty")
	}
	c.apiKey = raw
	return raw, nil
}

// Translate translates text from source to target. An empty source lets the
// backend auto-detect.
func (c *Client) Translate(ctx context.Context, text, target, source string) (string, error) {
	if target == "" {
		return "", errors.New("googletranslate: target language must not be empty")
	}
	form := url.Values{}
	form.Set("q", text)
	form.Set("target", target)
	form.Set("format", "text")
	if source != "" {
		form.Set("source", source)
	}

	var payload translateResponse
	if err := c.post(ctx, c.baseURL, form, &payload); err != nil {
		return "", err
	}
	if len(payload.Data.Translations) == 0 {
		return "", errors.New("googletranslate: no translations in response")
	}
	return payload.Data.Translations[0].TranslatedText, nil
}

// Detect returns the most confident language code for text.
func (c *Client) Detect(ctx context.Context, text string) (string, error) {
	form := url.Values{}
	form.Set("q", text)

	var payload detectResponse
	if err := c.post(ctx, c.baseURL+"/detect", form, &payload); err != nil {
		return "", err
	}
	best, bestConf := "", -1.0
	for _, group := range payload.Data.Detections {
		for _, d := range group {
			if d.Confidence > bestConf {
				best, bestConf = d.Language, d.Confidence
			}
		}
	}
	if best == "" {
		return "", errors.New("googletranslate: no detections in response")
	}
	return best, nil
}

func (c *Client) post(ctx context.Context, endpoint string, form url.Values, out any) error {
	key, err := c.resolveAPIKey(ctx)
	if err != nil {
		return err
	}
	form.Set("key", key)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("googletranslate: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("googletranslate: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &HTTPStatusError{StatusCode: res.StatusCode, Body: string(buf)}
	}
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(out); err != nil {
		return fmt.Errorf("googletranslate: decode response: %w", err)
	}
	return nil
}
