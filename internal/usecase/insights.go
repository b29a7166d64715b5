package usecase

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"agri-advisor/internal/domain"
	"agri-advisor/internal/logger"
	"agri-advisor/internal/policy"
	"agri-advisor/internal/weather"
)

type WeatherProvider interface {
	Report(ctx context.Context, location string) (weather.Report, error)
	Alerts(ctx context.Context, location string) ([]weather.Alert, error)
}

type PolicyCatalog interface {
	Schemes(lang domain.Language, category string) []policy.Scheme
	SeedCosts(location, cropType string) []policy.SeedCost
}

// InsightService answers the non-conversational lookups: local weather and
// the scheme catalog.
type InsightService struct {
	users      UserLookup
	weather    WeatherProvider
	catalog    PolicyCatalog
	translator Translator
}

func NewInsightService(users UserLookup, provider WeatherProvider, catalog PolicyCatalog, translator Translator) (*InsightService, error) {
	if users == nil {
		return nil, errors.New("usecase: user lookup must not be nil")
	}
	if provider == nil {
		return nil, errors.New("usecase: weather provider must not be nil")
	}
	if catalog == nil {
		return nil, errors.New("usecase: policy catalog must not be nil")
	}
	if translator == nil {
		return nil, errors.New("usecase: translator must not be nil")
	}
	return &InsightService{users: users, weather: provider, catalog: catalog, translator: translator}, nil
}

// Weather reports conditions at location, defaulting to the user's location.
func (s *InsightService) Weather(ctx context.Context, userID, location string) (weather.Report, error) {
	loc, err := s.location(ctx, userID, location)
	if err != nil {
		return weather.Report{}, err
	}
	report, err := s.weather.Report(ctx, loc)
	if err != nil {
		return weather.Report{}, newError(ErrorUnavailable, "weather_unavailable", err)
	}
	return report, nil
}

// WeatherAlerts reports threshold alerts for the user's location.
func (s *InsightService) WeatherAlerts(ctx context.Context, userID string) ([]weather.Alert, error) {
	loc, err := s.location(ctx, userID, "")
	if err != nil {
		return nil, err
	}
	alerts, err := s.weather.Alerts(ctx, loc)
	if err != nil {
		return nil, newError(ErrorUnavailable, "weather_unavailable", err)
	}
	return alerts, nil
}

// Policies lists schemes in the request language, defaulting to the user's
// preference. Entries the catalog lacks in that language are machine
// translated; a failed translation leaves the entry in English.
func (s *InsightService) Policies(ctx context.Context, userID, rawLang, category string) ([]policy.Scheme, domain.Language, error) {
	user, err := lookupUser(ctx, s.users, userID)
	if err != nil {
		return nil, "", err
	}
	lang, err := requestLanguage(user, rawLang)
	if err != nil {
		return nil, "", err
	}

	schemes := s.catalog.Schemes(lang, category)
	for i := range schemes {
		sc := &schemes[i]
		if sc.Language == lang {
			continue
		}
		title := s.translator.Translate(ctx, sc.Title, lang, sc.Language)
		desc := s.translator.Translate(ctx, sc.Description, lang, sc.Language)
		if title.Degraded || desc.Degraded {
			logger.FromContext(ctx).Warn("scheme translation degraded, serving original text",
				zap.String("scheme_id", sc.ID), zap.String("language", string(lang)))
			continue
		}
		sc.Title, sc.Description, sc.Language = title.Text, desc.Text, lang
	}
	return schemes, lang, nil
}

// SeedCosts lists seed prices near the user, optionally narrowed by crop.
func (s *InsightService) SeedCosts(ctx context.Context, userID, cropType string) ([]policy.SeedCost, error) {
	loc, err := s.location(ctx, userID, "")
	if err != nil {
		return nil, err
	}
	return s.catalog.SeedCosts(loc, cropType), nil
}

func (s *InsightService) location(ctx context.Context, userID, override string) (string, error) {
	user, err := lookupUser(ctx, s.users, userID)
	if err != nil {
		return "", err
	}
	loc := strings.TrimSpace(override)
	if loc == "" {
		loc = strings.TrimSpace(user.Location)
	}
	if loc == "" {
		return "", newError(ErrorInvalidInput, "location_required", nil)
	}
	return loc, nil
}
