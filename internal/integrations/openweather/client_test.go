package openweather

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeGetter struct {
	val   string
	err   error
	calls int
}

func (f *fakeGetter) GetParameter(_ context.Context, _ string) (string, error) {
	f.calls++
	return f.val, f.err
}

func newTestClient(t *testing.T, srv *httptest.Server, g *fakeGetter) *Client {
	t.Helper()
	c, err := NewClient(g, "/agri-advisor/weather-api-key", WithBaseURL(srv.URL))
	require.NoError(t, err)
	return c
}

const currentBody = `{
  "name": "Thrissur",
  "coord": {"lat": 10.52, "lon": 76.21},
  "sys": {"country": "IN", "sunrise": 1719794400, "sunset": 1719840600},
  "main": {"temp": 29.46, "feels_like": 33.1, "humidity": 78, "pressure": 1008},
  "weather": [{"description": "light rain"}],
  "wind": {"speed": 4.6, "deg": 250},
  "visibility": 8000,
  "timezone": 19800
}`

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(nil, "k")
	require.Error(t, err)

	_, err = NewClient(&fakeGetter{}, " ")
	require.Error(t, err)

	c, err := NewClient(&fakeGetter{}, "k", WithBaseURL(""))
	require.NoError(t, err)
	require.Equal(t, defaultBaseURL, c.baseURL)
}

func TestCurrent_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/weather", r.URL.Path)
		require.Equal(t, "Thrissur", r.URL.Query().Get("q"))
		require.Equal(t, "metric", r.URL.Query().Get("units"))
		require.Equal(t, "secret", r.URL.Query().Get("appid"))
		_, _ = w.Write([]byte(currentBody))
	}))
	defer srv.Close()

	g := &fakeGetter{val: "secret"}
	c := newTestClient(t, srv, g)
	out, err := c.Current(context.Background(), " Thrissur ")
	require.NoError(t, err)
	require.Equal(t, "Thrissur", out.Name)
	require.Equal(t, "IN", out.Sys.Country)
	require.InDelta(t, 29.46, out.Main.Temp, 0.001)
	require.Equal(t, "light rain", out.Weather[0].Description)
	require.Equal(t, 19800, out.Timezone)

	_, err = c.Current(context.Background(), "Thrissur")
	require.NoError(t, err)
	require.Equal(t, 1, g.calls, "api key is cached after the first success")
}

func TestCurrent_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("q") {
		case "Atlantis":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"cod":"404","message":"city not found"}`))
		case "Empty":
			_, _ = w.Write([]byte(`{"name":"Empty","weather":[]}`))
		default:
			_, _ = w.Write([]byte(`not-json`))
		}
	}))
	defer srv.Close()
	c := newTestClient(t, srv, &fakeGetter{val: "secret"})

	_, err := c.Current(context.Background(), "Atlantis")
	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusNotFound, statusErr.StatusCode)

	_, err = c.Current(context.Background(), "Empty")
	require.ErrorContains(t, err, "no conditions")

	_, err = c.Current(context.Background(), "Garbled")
	require.ErrorContains(t, err, "decode response")

	_, err = c.Current(context.Background(), "")
	require.Error(t, err)
}

func TestCurrent_KeyFailureIsRetried(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(currentBody))
	}))
	defer srv.Close()

	g := &fakeGetter{err: errors.New("ssm unavailable")}
	c := newTestClient(t, srv, g)
	_, err := c.Current(context.Background(), "Thrissur")
	require.ErrorContains(t, err, "ssm unavailable")

	g.err, g.val = nil, "secret"
	_, err = c.Current(context.Background(), "Thrissur")
	require.NoError(t, err)
	require.Equal(t, 2, g.calls)
}

func TestForecast_SendsCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/forecast", r.URL.Path)
		require.Equal(t, "40", r.URL.Query().Get("cnt"))
		_, _ = w.Write([]byte(`{"list":[{"dt":1719813600,"main":{"temp":27.5,"humidity":88},"weather":[{"description":"moderate rain"}],"wind":{"speed":5.1},"rain":{"3h":4.2}}],"city":{"name":"Thrissur","country":"IN","timezone":19800}}`))
	}))
	defer srv.Close()
	c := newTestClient(t, srv, &fakeGetter{val: "secret"})

	out, err := c.Forecast(context.Background(), "Thrissur", 40)
	require.NoError(t, err)
	require.Len(t, out.List, 1)
	require.InDelta(t, 4.2, out.List[0].Rain.ThreeHours, 0.001)
	require.Equal(t, 19800, out.City.Timezone)
}

func TestUVIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/uvi", r.URL.Path)
		require.Equal(t, "10.52", r.URL.Query().Get("lat"))
		require.Equal(t, "76.21", r.URL.Query().Get("lon"))
		_, _ = w.Write([]byte(`{"value": 11.37}`))
	}))
	defer srv.Close()
	c := newTestClient(t, srv, &fakeGetter{val: "secret"})

	uv, err := c.UVIndex(context.Background(), 10.52, 76.21)
	require.NoError(t, err)
	require.InDelta(t, 11.37, uv, 0.001)
}
