package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"agri-advisor/internal/domain"
	"agri-advisor/internal/policy"
	"agri-advisor/internal/weather"
)

type mockWeather struct {
	report    weather.Report
	alerts    []weather.Alert
	err       error
	locations []string
}

func (m *mockWeather) Report(_ context.Context, location string) (weather.Report, error) {
	m.locations = append(m.locations, location)
	if m.err != nil {
		return weather.Report{}, m.err
	}
	r := m.report
	r.Location = location
	return r, nil
}

func (m *mockWeather) Alerts(_ context.Context, location string) ([]weather.Alert, error) {
	m.locations = append(m.locations, location)
	return m.alerts, m.err
}

type insightFixture struct {
	users      *mockUsers
	weather    *mockWeather
	translator *mockTranslator
	svc        *InsightService
}

func newInsightFixture(t *testing.T) *insightFixture {
	t.Helper()
	f := &insightFixture{
		users: &mockUsers{users: map[string]domain.User{
			"1": {ID: "1", Location: "Alappuzha", PreferredLanguage: domain.LanguageEnglish},
			"2": {ID: "2", Location: "Kannur", PreferredLanguage: domain.LanguageMalayalam},
			"3": {ID: "3", Location: " ", PreferredLanguage: domain.LanguageTamil},
		}},
		weather:    &mockWeather{},
		translator: &mockTranslator{},
	}
	svc, err := NewInsightService(f.users, f.weather, policy.NewCatalog(), f.translator)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func TestNewInsightService_ValidatesDependencies(t *testing.T) {
	u, w, c, tr := &mockUsers{}, &mockWeather{}, policy.NewCatalog(), &mockTranslator{}

	_, err := NewInsightService(nil, w, c, tr)
	require.Error(t, err)
	_, err = NewInsightService(u, nil, c, tr)
	require.Error(t, err)
	_, err = NewInsightService(u, w, nil, tr)
	require.Error(t, err)
	_, err = NewInsightService(u, w, c, nil)
	require.Error(t, err)
}

func TestWeather_DefaultsToUserLocation(t *testing.T) {
	f := newInsightFixture(t)

	r, err := f.svc.Weather(context.Background(), "2", "")
	require.NoError(t, err)
	require.Equal(t, "Kannur", r.Location)

	r, err = f.svc.Weather(context.Background(), "2", " Thrissur ")
	require.NoError(t, err)
	require.Equal(t, "Thrissur", r.Location)
	require.Equal(t, []string{"Kannur", "Thrissur"}, f.weather.locations)
}

func TestWeather_Errors(t *testing.T) {
	f := newInsightFixture(t)

	_, err := f.svc.Weather(context.Background(), "99", "")
	requireCode(t, err, ErrorNotFound, "user_not_found")

	_, err = f.svc.Weather(context.Background(), "3", "")
	requireCode(t, err, ErrorInvalidInput, "location_required")
	require.Empty(t, f.weather.locations)

	f.weather.err = weather.ErrUnavailable
	_, err = f.svc.Weather(context.Background(), "1", "")
	requireCode(t, err, ErrorUnavailable, "weather_unavailable")
	require.ErrorIs(t, err, weather.ErrUnavailable)
}

func TestWeatherAlerts(t *testing.T) {
	f := newInsightFixture(t)
	f.weather.alerts = []weather.Alert{{Type: "heat_wave", Severity: "high"}}

	alerts, err := f.svc.WeatherAlerts(context.Background(), "1")
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	require.Equal(t, []string{"Alappuzha"}, f.weather.locations)

	f.weather.err = errors.New("down")
	_, err = f.svc.WeatherAlerts(context.Background(), "1")
	requireCode(t, err, ErrorUnavailable, "weather_unavailable")
}

func TestPolicies_CatalogLanguageNeedsNoTranslation(t *testing.T) {
	f := newInsightFixture(t)

	schemes, lang, err := f.svc.Policies(context.Background(), "1", "", "")
	require.NoError(t, err)
	require.Equal(t, domain.LanguageEnglish, lang)
	require.Len(t, schemes, 4)
	require.Empty(t, f.translator.calls)
}

func TestPolicies_TranslatesMissingEntries(t *testing.T) {
	f := newInsightFixture(t)

	// Malayalam is the user's preference; state schemes are localized in the
	// catalog, central ones go through the translator.
	schemes, lang, err := f.svc.Policies(context.Background(), "2", "", "")
	require.NoError(t, err)
	require.Equal(t, domain.LanguageMalayalam, lang)
	require.Equal(t, "ഓർഗാനിക് കേരള മിഷൻ", schemes[1].Title)
	require.Equal(t, "[ml]PM-KISAN (Pradhan Mantri Kisan Samman Nidhi)", schemes[2].Title)
	for _, s := range schemes {
		require.Equal(t, domain.LanguageMalayalam, s.Language)
	}
	require.Len(t, f.translator.calls, 4)
	require.Equal(t, domain.LanguageEnglish, f.translator.calls[0].source)
	require.Equal(t, domain.LanguageMalayalam, f.translator.calls[0].target)
}

func TestPolicies_DegradedTranslationKeepsEnglish(t *testing.T) {
	f := newInsightFixture(t)
	f.translator.fail = true

	schemes, lang, err := f.svc.Policies(context.Background(), "1", "hi", "insurance")
	require.NoError(t, err)
	require.Equal(t, domain.LanguageHindi, lang)
	require.Len(t, schemes, 1)
	require.Equal(t, "Pradhan Mantri Fasal Bima Yojana (PMFBY)", schemes[0].Title)
	require.Equal(t, domain.LanguageEnglish, schemes[0].Language)
}

func TestPolicies_Errors(t *testing.T) {
	f := newInsightFixture(t)

	_, _, err := f.svc.Policies(context.Background(), "", "", "")
	requireCode(t, err, ErrorNotFound, "user_not_found")

	_, _, err = f.svc.Policies(context.Background(), "1", "fr", "")
	requireCode(t, err, ErrorInvalidInput, "unsupported_language")

	f.users.err = errors.New("db down")
	_, _, err = f.svc.Policies(context.Background(), "1", "", "")
	requireCode(t, err, ErrorInternal, "user_lookup_error")
}

func TestSeedCosts_UsesUserLocation(t *testing.T) {
	f := newInsightFixture(t)

	costs, err := f.svc.SeedCosts(context.Background(), "2", "banana")
	require.NoError(t, err)
	require.Len(t, costs, 1)
	require.Equal(t, "Kannur", costs[0].Location)
	require.Equal(t, "Robusta", costs[0].Variety)

	_, err = f.svc.SeedCosts(context.Background(), "3", "")
	requireCode(t, err, ErrorInvalidInput, "location_required")
}
