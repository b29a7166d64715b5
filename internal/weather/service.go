// Package weather turns raw OpenWeatherMap payloads into a farmer-facing
// report: current conditions, a daily forecast with farming advice, and
// threshold alerts. Reports are cached per location.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"agri-advisor/internal/integrations/openweather"
	"agri-advisor/internal/integrations/rediscache"
	"agri-advisor/internal/logger"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultCacheTTL = 30 * time.Minute
	forecastDays    = 5
	entriesPerDay   = 8
)

// ErrUnavailable is returned when current conditions cannot be fetched.
var ErrUnavailable = errors.New("weather: data unavailable")

type Backend interface {
	Current(ctx context.Context, location string) (*openweather.Current, error)
	Forecast(ctx context.Context, location string, count int) (*openweather.Forecast, error)
	UVIndex(ctx context.Context, lat, lon float64) (float64, error)
}

// Cache stores encoded reports. A miss is found=false with nil error.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

type Conditions struct {
	Location      string    `json:"location"`
	Country       string    `json:"country"`
	Temperature   float64   `json:"temperature"`
	FeelsLike     float64   `json:"feels_like"`
	Humidity      float64   `json:"humidity"`
	Pressure      float64   `json:"pressure"`
	Description   string    `json:"description"`
	WindSpeed     float64   `json:"wind_speed"`
	WindDirection float64   `json:"wind_direction"`
	VisibilityKm  float64   `json:"visibility"`
	UVIndex       float64   `json:"uv_index"`
	Sunrise       string    `json:"sunrise"`
	Sunset        string    `json:"sunset"`
	Timestamp     time.Time `json:"timestamp"`
}

type Day struct {
	Date          string  `json:"date"`
	DayName       string  `json:"day_name"`
	MinTemp       float64 `json:"min_temp"`
	MaxTemp       float64 `json:"max_temp"`
	AvgHumidity   float64 `json:"avg_humidity"`
	Description   string  `json:"description"`
	WindSpeed     float64 `json:"wind_speed"`
	Rainfall      float64 `json:"rainfall"`
	FarmingAdvice string  `json:"farming_advice"`
}

type Report struct {
	Location string     `json:"location"`
	Current  Conditions `json:"current"`
	Forecast []Day      `json:"forecast"`
}

type Alert struct {
	Type          string `json:"type"`
	Severity      string `json:"severity"`
	Message       string `json:"message"`
	FarmingAdvice string `json:"farming_advice"`
}

type Service struct {
	backend  Backend
	cache    Cache
	cacheTTL time.Duration
	timeout  time.Duration
	now      func() time.Time
}

type Option func(*Service)

func WithCache(cache Cache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = cache
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func New(backend Backend, opts ...Option) (*Service, error) {
	if backend == nil {
		return nil, errors.New("weather: backend must not be nil")
	}
	s := &Service{
		backend:  backend,
		cacheTTL: defaultCacheTTL,
		timeout:  defaultTimeout,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Report returns current conditions and a daily forecast for location.
// Current conditions are required; the forecast and UV index are best-effort.
func (s *Service) Report(ctx context.Context, location string) (Report, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return Report{}, errors.New("weather: location must not be empty")
	}
	log := logger.FromContext(ctx).With(zap.String("location", location))

	key := rediscache.GenerateKey(rediscache.WeatherKey, strings.ToLower(location))
	if s.cache != nil {
		if cached, ok := s.readCache(ctx, key, log); ok {
			return cached, nil
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cur, err := s.backend.Current(callCtx, location)
	if err != nil {
		log.Warn("current weather fetch failed", zap.Error(err))
		return Report{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	uv, err := s.backend.UVIndex(callCtx, cur.Coord.Lat, cur.Coord.Lon)
	if err != nil {
		log.Warn("uv index fetch failed", zap.Error(err))
		uv = 0
	}

	report := Report{
		Location: location,
		Current:  s.conditions(cur, uv),
		Forecast: []Day{},
	}
	fc, err := s.backend.Forecast(callCtx, location, forecastDays*entriesPerDay)
	if err != nil {
		log.Warn("forecast fetch failed", zap.Error(err))
	} else {
		report.Forecast = dailyForecast(fc, forecastDays)
	}

	if s.cache != nil {
		s.writeCache(ctx, key, report, log)
	}
	return report, nil
}

// Alerts derives threshold alerts from the current conditions at location.
func (s *Service) Alerts(ctx context.Context, location string) ([]Alert, error) {
	report, err := s.Report(ctx, location)
	if err != nil {
		return nil, err
	}
	return Alerts(report.Current), nil
}

func (s *Service) readCache(ctx context.Context, key string, log *zap.Logger) (Report, bool) {
	raw, found, err := s.cache.Get(ctx, key)
	if err != nil {
		log.Warn("weather cache read failed", zap.Error(err))
		return Report{}, false
	}
	if !found {
		return Report{}, false
	}
	var r Report
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		log.Warn("weather cache entry is corrupt", zap.Error(err))
		return Report{}, false
	}
	return r, true
}

func (s *Service) writeCache(ctx context.Context, key string, r Report, log *zap.Logger) {
	raw, err := json.Marshal(r)
	if err != nil {
		log.Warn("weather cache encode failed", zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, key, string(raw), s.cacheTTL); err != nil {
		log.Warn("weather cache write failed", zap.Error(err))
	}
}

func (s *Service) conditions(cur *openweather.Current, uv float64) Conditions {
	zone := time.FixedZone("", cur.Timezone)
	return Conditions{
		Location:      cur.Name,
		Country:       cur.Sys.Country,
		Temperature:   round1(cur.Main.Temp),
		FeelsLike:     round1(cur.Main.FeelsLike),
		Humidity:      cur.Main.Humidity,
		Pressure:      cur.Main.Pressure,
		Description:   titleCase(cur.Weather[0].Description),
		WindSpeed:     cur.Wind.Speed,
		WindDirection: cur.Wind.Deg,
		VisibilityKm:  cur.Visibility / 1000,
		UVIndex:       uv,
		Sunrise:       time.Unix(cur.Sys.Sunrise, 0).In(zone).Format("15:04"),
		Sunset:        time.Unix(cur.Sys.Sunset, 0).In(zone).Format("15:04"),
		Timestamp:     s.now().UTC(),
	}
}

type dayAcc struct {
	date     time.Time
	temps    []float64
	humidity []float64
	wind     []float64
	rain     float64
	descs    []string
}

// dailyForecast groups 3-hourly entries by local calendar day, keeping at
// most days groups in chronological order.
func dailyForecast(fc *openweather.Forecast, days int) []Day {
	zone := time.FixedZone("", fc.City.Timezone)
	var order []string
	groups := make(map[string]*dayAcc)
	for _, e := range fc.List {
		t := time.Unix(e.Dt, 0).In(zone)
		key := t.Format(time.DateOnly)
		g, ok := groups[key]
		if !ok {
			if len(order) == days {
				break
			}
			g = &dayAcc{date: t}
			groups[key] = g
			order = append(order, key)
		}
		g.temps = append(g.temps, e.Main.Temp)
		g.humidity = append(g.humidity, e.Main.Humidity)
		g.wind = append(g.wind, e.Wind.Speed)
		g.rain += e.Rain.ThreeHours
		if len(e.Weather) > 0 {
			g.descs = append(g.descs, e.Weather[0].Description)
		}
	}

	out := make([]Day, 0, len(order))
	for _, key := range order {
		g := groups[key]
		minT, maxT := minMax(g.temps)
		d := Day{
			Date:        key,
			DayName:     g.date.Weekday().String(),
			MinTemp:     round1(minT),
			MaxTemp:     round1(maxT),
			AvgHumidity: round1(mean(g.humidity)),
			Description: titleCase(mostCommon(g.descs)),
			WindSpeed:   round1(mean(g.wind)),
			Rainfall:    round1(g.rain),
		}
		d.FarmingAdvice = FarmingAdvice(d)
		out = append(out, d)
	}
	return out
}

// FarmingAdvice maps a day's extremes to field guidance.
func FarmingAdvice(d Day) string {
	var tips []string
	if d.MaxTemp > 35 {
		tips = append(tips, "Provide shade and increase irrigation frequency")
	} else if d.MaxTemp < 15 {
		tips = append(tips, "Protect crops from cold, consider row covers")
	}
	if d.Rainfall > 20 {
		tips = append(tips, "Ensure proper drainage, delay fertilizer application")
	} else if d.Rainfall < 1 {
		tips = append(tips, "Increase irrigation, mulch to retain moisture")
	}
	if d.MinTemp < 10 {
		tips = append(tips, "Protect sensitive crops from frost damage")
	}
	if len(tips) == 0 {
		return "Favorable conditions for most farming activities"
	}
	return strings.Join(tips, "; ")
}

// Alerts reports heat, humidity and wind conditions that need action.
func Alerts(c Conditions) []Alert {
	alerts := []Alert{}
	if c.Temperature > 35 {
		alerts = append(alerts, Alert{
			Type:          "heat_wave",
			Severity:      "high",
			Message:       "High temperature alert. Ensure adequate irrigation and shade for crops.",
			FarmingAdvice: "Increase watering frequency, provide shade, harvest early morning",
		})
	}
	if c.Humidity > 85 {
		alerts = append(alerts, Alert{
			Type:          "high_humidity",
			Severity:      "medium",
			Message:       "High humidity may increase disease risk.",
			FarmingAdvice: "Monitor for fungal diseases, ensure proper ventilation",
		})
	}
	if c.WindSpeed > 15 {
		alerts = append(alerts, Alert{
			Type:          "strong_wind",
			Severity:      "medium",
			Message:       "Strong winds may damage crops.",
			FarmingAdvice: "Secure plant supports, avoid spraying pesticides",
		})
	}
	return alerts
}

var titler = cases.Title(language.English)

func titleCase(s string) string {
	return titler.String(s)
}

// mostCommon returns the most frequent value; ties go to whichever reached
// the count first.
func mostCommon(values []string) string {
	counts := make(map[string]int, len(values))
	best, bestN := "", 0
	for _, v := range values {
		counts[v]++
		if counts[v] > bestN {
			best, bestN = v, counts[v]
		}
	}
	return best
}

func minMax(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
