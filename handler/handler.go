package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"agri-advisor/internal/auth"
	"agri-advisor/internal/domain"
	"agri-advisor/internal/logger"
	"agri-advisor/internal/policy"
	"agri-advisor/internal/usecase"
	"agri-advisor/internal/weather"
)

const (
	correlationHeader  = "X-Correlation-Id"
	serviceName        = "agri-advisor"
	maxAudioBytes      = 10 << 20
	healthCheckTimeout = 2 * time.Second
	// maxRequestBytes leaves room for multipart framing around the audio.
	maxRequestBytes = maxAudioBytes + 1<<20
)

var errAudioTooLarge = errors.New("handler: audio exceeds size limit")

const (
	codeUnauthorized     = "UNAUTHORIZED"
	codeMethodNotAllowed = "METHOD_NOT_ALLOWED"
)

type ChatUseCase interface {
	Chat(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
	AudioChat(ctx context.Context, in usecase.AudioInput) (usecase.AudioOutput, error)
	ListSessions(ctx context.Context, userID string) ([]domain.SessionSummary, error)
}

type InsightUseCase interface {
	Weather(ctx context.Context, userID, location string) (weather.Report, error)
	WeatherAlerts(ctx context.Context, userID string) ([]weather.Alert, error)
	Policies(ctx context.Context, userID, language, category string) ([]policy.Scheme, domain.Language, error)
	SeedCosts(ctx context.Context, userID, cropType string) ([]policy.SeedCost, error)
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type namedCheck struct {
	name  string
	check HealthCheck
}

// Authenticator resolves a bearer token to a user id.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

type Handler struct {
	chat     ChatUseCase
	insights InsightUseCase
	auth     Authenticator
	checks   []namedCheck
	now      func() time.Time
}

type Option func(*Handler)

// WithInsights enables the weather and policy routes.
func WithInsights(insights InsightUseCase) Option {
	return func(h *Handler) {
		h.insights = insights
	}
}

// WithHealthCheck adds a dependency check reported by /health.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(h *Handler) {
		if check != nil {
			h.checks = append(h.checks, namedCheck{name: name, check: check})
		}
	}
}

func NewHandler(chat ChatUseCase, authenticator Authenticator, opts ...Option) (*Handler, error) {
	if chat == nil {
		return nil, errors.New("handler: chat use case must not be nil")
	}
	if authenticator == nil {
		return nil, errors.New("handler: authenticator must not be nil")
	}
	h := &Handler{chat: chat, auth: authenticator, now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

type chatRequest struct {
	Message   string `json:"message"`
	Language  string `json:"language,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

type chatResponse struct {
	Response  string    `json:"response"`
	SessionID string    `json:"session_id"`
	Language  string    `json:"language"`
	Timestamp time.Time `json:"timestamp"`
}

type audioResponse struct {
	TextMessage   string `json:"text_message"`
	TextResponse  string `json:"text_response"`
	AudioResponse string `json:"audio_response"`
	SessionID     string `json:"session_id"`
	Language      string `json:"language"`
}

type sessionView struct {
	SessionID    string    `json:"session_id"`
	Language     string    `json:"language"`
	MessageCount int       `json:"message_count"`
	LastMessage  string    `json:"last_message"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type sessionsResponse struct {
	Sessions []sessionView `json:"sessions"`
}

type healthResponse struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

type alertsResponse struct {
	Location string          `json:"location,omitempty"`
	Alerts   []weather.Alert `json:"alerts"`
}

type policiesResponse struct {
	Policies []policy.Scheme `json:"policies"`
	Language string          `json:"language"`
	Category string          `json:"category,omitempty"`
}

type seedCostsResponse struct {
	SeedCosts []policy.SeedCost `json:"seed_costs"`
	CropType  string            `json:"crop_type,omitempty"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	start := time.Now()
	correlationID := headerValue(req.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	ctx = logger.WithCorrelationID(ctx, correlationID)

	route := normalizePath(req.Path)
	resp := h.route(ctx, route, req)
	if resp.Headers == nil {
		resp.Headers = map[string]string{}
	}
	resp.Headers[correlationHeader] = correlationID

	logger.FromContext(ctx).Info("request handled",
		zap.String("method", req.HTTPMethod),
		zap.String("path", route),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)
	return resp, nil
}

func (h *Handler) route(ctx context.Context, route string, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	var method string
	switch route {
	case "/health":
		method = http.MethodGet
	case "/chat", "/chat/audio":
		method = http.MethodPost
	case "/chat/sessions":
		method = http.MethodGet
	case "/weather", "/weather/alerts", "/policies", "/policies/seed-costs":
		if h.insights == nil {
			return jsonResponse(http.StatusNotFound, errorResponse{Error: string(usecase.ErrorNotFound), Reason: "route_not_found"})
		}
		method = http.MethodGet
	default:
		return jsonResponse(http.StatusNotFound, errorResponse{Error: string(usecase.ErrorNotFound), Reason: "route_not_found"})
	}
	if !strings.EqualFold(req.HTTPMethod, method) {
		return jsonResponse(http.StatusMethodNotAllowed, errorResponse{Error: codeMethodNotAllowed, Reason: "method_not_allowed"})
	}

	if route == "/health" {
		return h.handleHealth(ctx)
	}

	userID, resp, ok := h.authenticate(ctx, req)
	if !ok {
		return resp
	}

	switch route {
	case "/chat":
		return h.handleChat(ctx, userID, req)
	case "/chat/audio":
		return h.handleAudio(ctx, userID, req)
	case "/chat/sessions":
		return h.handleSessions(ctx, userID)
	case "/weather":
		return h.handleWeather(ctx, userID, req)
	case "/weather/alerts":
		return h.handleWeatherAlerts(ctx, userID)
	case "/policies":
		return h.handlePolicies(ctx, userID, req)
	default:
		return h.handleSeedCosts(ctx, userID, req)
	}
}

// handleHealth runs every registered check; any failure reports 503.
func (h *Handler) handleHealth(ctx context.Context) events.APIGatewayProxyResponse {
	resp := healthResponse{Status: "healthy", Service: serviceName, Timestamp: h.now().UTC()}
	status := http.StatusOK
	if len(h.checks) > 0 {
		resp.Checks = make(map[string]string, len(h.checks))
	}
	for _, c := range h.checks {
		checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		err := c.check(checkCtx)
		cancel()
		if err != nil {
			logger.FromContext(ctx).Warn("health check failed", zap.String("check", c.name), zap.Error(err))
			resp.Checks[c.name] = "unavailable"
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[c.name] = "ok"
	}
	return jsonResponse(status, resp)
}

func (h *Handler) authenticate(ctx context.Context, req events.APIGatewayProxyRequest) (string, events.APIGatewayProxyResponse, bool) {
	token := auth.BearerToken(headerValue(req.Headers, "Authorization"))
	if token == "" {
		return "", jsonResponse(http.StatusUnauthorized, errorResponse{Error: codeUnauthorized, Reason: "missing_token"}), false
	}
	userID, err := h.auth.Authenticate(ctx, token)
	if err != nil {
		logger.FromContext(ctx).Info("token rejected", zap.Error(err))
		return "", jsonResponse(http.StatusUnauthorized, errorResponse{Error: codeUnauthorized, Reason: "invalid_token"}), false
	}
	return userID, events.APIGatewayProxyResponse{}, true
}

func (h *Handler) handleChat(ctx context.Context, userID string, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	body, err := requestBody(req)
	if err != nil {
		return jsonResponse(http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidInput), Reason: "invalid_body"})
	}
	var in chatRequest
	if err := json.Unmarshal(body, &in); err != nil {
		return jsonResponse(http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidInput), Reason: "invalid_json"})
	}

	out, err := h.chat.Chat(ctx, usecase.ChatInput{
		UserID:    userID,
		Message:   in.Message,
		Language:  in.Language,
		SessionID: in.SessionID,
	})
	if err != nil {
		return errorToResponse(ctx, err)
	}
	return jsonResponse(http.StatusOK, chatResponse{
		Response:  out.Response,
		SessionID: out.SessionID,
		Language:  string(out.Language),
		Timestamp: out.Timestamp,
	})
}

func (h *Handler) handleAudio(ctx context.Context, userID string, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	form, err := parseMultipart(req)
	if err != nil {
		logger.FromContext(ctx).Info("multipart parse failed", zap.Error(err))
		return jsonResponse(http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidInput), Reason: "invalid_multipart"})
	}
	defer func() { _ = form.RemoveAll() }()

	audio, filename, err := readFormFile(form, "audio")
	if errors.Is(err, errAudioTooLarge) {
		return jsonResponse(http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidInput), Reason: "audio_too_large"})
	}
	if err != nil {
		return jsonResponse(http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidInput), Reason: "invalid_multipart"})
	}

	out, err := h.chat.AudioChat(ctx, usecase.AudioInput{
		UserID:    userID,
		Audio:     audio,
		Filename:  filename,
		Language:  formValue(form, "language"),
		SessionID: formValue(form, "session_id"),
	})
	if err != nil {
		return errorToResponse(ctx, err)
	}
	return jsonResponse(http.StatusOK, audioResponse{
		TextMessage:   out.TextMessage,
		TextResponse:  out.TextResponse,
		AudioResponse: out.AudioResponse,
		SessionID:     out.SessionID,
		Language:      string(out.Language),
	})
}

func (h *Handler) handleSessions(ctx context.Context, userID string) events.APIGatewayProxyResponse {
	sums, err := h.chat.ListSessions(ctx, userID)
	if err != nil {
		return errorToResponse(ctx, err)
	}
	views := make([]sessionView, 0, len(sums))
	for _, s := range sums {
		views = append(views, sessionView{
			SessionID:    s.ID,
			Language:     string(s.Language),
			MessageCount: s.MessageCount,
			LastMessage:  s.LastMessage,
			CreatedAt:    s.CreatedAt,
			UpdatedAt:    s.UpdatedAt,
		})
	}
	return jsonResponse(http.StatusOK, sessionsResponse{Sessions: views})
}

func (h *Handler) handleWeather(ctx context.Context, userID string, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	report, err := h.insights.Weather(ctx, userID, queryValue(req, "location"))
	if err != nil {
		return errorToResponse(ctx, err)
	}
	return jsonResponse(http.StatusOK, report)
}

func (h *Handler) handleWeatherAlerts(ctx context.Context, userID string) events.APIGatewayProxyResponse {
	alerts, err := h.insights.WeatherAlerts(ctx, userID)
	if err != nil {
		return errorToResponse(ctx, err)
	}
	if alerts == nil {
		alerts = []weather.Alert{}
	}
	return jsonResponse(http.StatusOK, alertsResponse{Alerts: alerts})
}

func (h *Handler) handlePolicies(ctx context.Context, userID string, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	category := queryValue(req, "category")
	schemes, lang, err := h.insights.Policies(ctx, userID, queryValue(req, "language"), category)
	if err != nil {
		return errorToResponse(ctx, err)
	}
	if schemes == nil {
		schemes = []policy.Scheme{}
	}
	return jsonResponse(http.StatusOK, policiesResponse{Policies: schemes, Language: string(lang), Category: category})
}

func (h *Handler) handleSeedCosts(ctx context.Context, userID string, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	cropType := queryValue(req, "crop_type")
	costs, err := h.insights.SeedCosts(ctx, userID, cropType)
	if err != nil {
		return errorToResponse(ctx, err)
	}
	if costs == nil {
		costs = []policy.SeedCost{}
	}
	return jsonResponse(http.StatusOK, seedCostsResponse{SeedCosts: costs, CropType: cropType})
}

func errorToResponse(ctx context.Context, err error) events.APIGatewayProxyResponse {
	log := logger.FromContext(ctx)

	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		log.Error("unexpected error", zap.Error(err))
		return jsonResponse(http.StatusInternalServerError, errorResponse{Error: string(usecase.ErrorInternal), Reason: "internal_error"})
	}

	status := statusForCode(ucErr.Code)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.String("code", string(ucErr.Code)), zap.String("reason", ucErr.Reason), zap.Error(ucErr.Err))
	} else {
		log.Info("request rejected", zap.String("code", string(ucErr.Code)), zap.String("reason", ucErr.Reason))
	}
	return jsonResponse(status, errorResponse{Error: string(ucErr.Code), Reason: ucErr.Reason})
}

func statusForCode(code usecase.ErrorCode) int {
	switch code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest
	case usecase.ErrorNotFound:
		return http.StatusNotFound
	case usecase.ErrorUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func jsonResponse(status int, v any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"INTERNAL_ERROR","reason":"encode_error"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}

// normalizePath strips the optional /api prefix and any trailing slash.
func normalizePath(p string) string {
	p = "/" + strings.Trim(p, "/")
	if p == "/api" {
		return "/"
	}
	if rest, ok := strings.CutPrefix(p, "/api/"); ok {
		p = "/" + rest
	}
	return p
}

func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func queryValue(req events.APIGatewayProxyRequest, name string) string {
	return strings.TrimSpace(req.QueryStringParameters[name])
}

func requestBody(req events.APIGatewayProxyRequest) ([]byte, error) {
	if !req.IsBase64Encoded {
		return []byte(req.Body), nil
	}
	return base64.StdEncoding.DecodeString(req.Body)
}

func parseMultipart(req events.APIGatewayProxyRequest) (*multipart.Form, error) {
	mediaType, params, err := mime.ParseMediaType(headerValue(req.Headers, "Content-Type"))
	if err != nil {
		return nil, err
	}
	if mediaType != "multipart/form-data" || params["boundary"] == "" {
		return nil, errors.New("handler: expected multipart/form-data")
	}
	body, err := requestBody(req)
	if err != nil {
		return nil, err
	}
	return multipart.NewReader(bytes.NewReader(body), params["boundary"]).ReadForm(maxAudioBytes)
}

// readFormFile returns nil data when the field is absent so the use case can
// report the missing audio itself.
func readFormFile(form *multipart.Form, field string) ([]byte, string, error) {
	files := form.File[field]
	if len(files) == 0 {
		return nil, "", nil
	}
	f, err := files[0].Open()
	if err != nil {
		return nil, "", err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxAudioBytes+1))
	if err != nil {
		return nil, "", err
	}
	if len(data) > maxAudioBytes {
		return nil, "", errAudioTooLarge
	}
	return data, files[0].Filename, nil
}

func formValue(form *multipart.Form, field string) string {
	if vals := form.Value[field]; len(vals) > 0 {
		return strings.TrimSpace(vals[0])
	}
	return ""
}
