// Package openweather is a small client for the OpenWeatherMap 2.5 REST API
// (current conditions, 3-hourly forecast, UV index).
package openweather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const defaultBaseURL = "https://api.openweathermap.org/data/2.5"

type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// HTTPStatusError captures non-2xx upstream responses.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("openweather: unexpected status %d: %s", e.StatusCode, e.Body)
}

type Summary struct {
	Description string `json:"description"`
}

// Current is the /weather payload in metric units.
type Current struct {
	Name  string `json:"name"`
	Coord struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
	Sys struct {
		Country string `json:"country"`
		Sunrise int64  `json:"sunrise"`
		Sunset  int64  `json:"sunset"`
	} `json:"sys"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  float64 `json:"humidity"`
		Pressure  float64 `json:"pressure"`
	} `json:"main"`
	Weather []Summary `json:"weather"`
	Wind    struct {
		Speed float64 `json:"speed"`
		Deg   float64 `json:"deg"`
	} `json:"wind"`
	// Visibility is in metres.
	Visibility float64 `json:"visibility"`
	// Timezone is the location's UTC offset in seconds.
	Timezone int `json:"timezone"`
}

type ForecastEntry struct {
	Dt   int64 `json:"dt"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Weather []Summary `json:"weather"`
	Wind    struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Rain struct {
		ThreeHours float64 `json:"3h"`
	} `json:"rain"`
}

// Forecast is the /forecast payload: entries at 3-hour steps.
type Forecast struct {
	List []ForecastEntry `json:"list"`
	City struct {
		Name     string `json:"name"`
		Country  string `json:"country"`
		Timezone int    `json:"timezone"`
	} `json:"city"`
}

type uvResponse struct {
	Value float64 `json:"value"`
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
		return nil, errors.New("openweather: paramstore getter must not be nil")
	}
	keyName = strings.TrimSpace(keyName)
	if keyName == "" {
		return nil, errors.New("openweather: key parameter name must not be empty")
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
		return "", fmt.Errorf("openweather: fetch api key: %w", err)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("openweather: api key is empty")
	}
	c.apiKey = raw
	return raw, nil
}

func (c *Client) Current(ctx context.Context, location string) (*Current, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, errors.New("openweather: location must not be empty")
	}
	params := url.Values{}
	params.Set("q", location)
	params.Set("units", "metric")

	var out Current
	if err := c.get(ctx, "/weather", params, &out); err != nil {
		return nil, err
	}
	if len(out.Weather) == 0 {
		return nil, errors.New("openweather: no conditions in response")
	}
	return &out, nil
}

// Forecast returns up to count 3-hourly entries.
func (c *Client) Forecast(ctx context.Context, location string, count int) (*Forecast, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, errors.New("openweather: location must not be empty")
	}
	params := url.Values{}
	params.Set("q", location)
	params.Set("units", "metric")
	if count > 0 {
		params.Set("cnt", strconv.Itoa(count))
	}

	var out Forecast
	if err := c.get(ctx, "/forecast", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UVIndex(ctx context.Context, lat, lon float64) (float64, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))

	var out uvResponse
	if err := c.get(ctx, "/uvi", params, &out); err != nil {
		return 0, err
	}
	return out.Value, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	key, err := c.resolveAPIKey(ctx)
	if err != nil {
		return err
	}
	params.Set("appid", key)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("openweather: create request: %w", err)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("openweather: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &HTTPStatusError{StatusCode: res.StatusCode, Body: string(buf)}
	}
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(out); err != nil {
		return fmt.Errorf("openweather: decode response: %w", err)
	}
	return nil
}
