package handler

import (
	"encoding/base64"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"agri-advisor/internal/logger"
)

// NewRouter exposes Handle over plain HTTP for local runs. Method and route
// errors are left to Handle so both entry points answer identically.
func NewRouter(h *Handler) *mux.Router {
	bridge := http.HandlerFunc(h.serveHTTP)

	router := mux.NewRouter()
	for _, prefix := range []string{"", "/api"} {
		router.Handle(prefix+"/health", bridge)
		router.Handle(prefix+"/chat", bridge)
		router.Handle(prefix+"/chat/audio", bridge)
		router.Handle(prefix+"/chat/sessions", bridge)
		router.Handle(prefix+"/weather", bridge)
		router.Handle(prefix+"/weather/alerts", bridge)
		router.Handle(prefix+"/policies", bridge)
		router.Handle(prefix+"/policies/seed-costs", bridge)
	}
	router.NotFoundHandler = bridge
	router.MethodNotAllowedHandler = bridge
	return router
}

func (h *Handler) serveHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes+1))
	if err != nil {
		http.Error(w, `{"error":"INVALID_INPUT","reason":"invalid_body"}`, http.StatusBadRequest)
		return
	}
	if len(body) > maxRequestBytes {
		http.Error(w, `{"error":"INVALID_INPUT","reason":"request_too_large"}`, http.StatusRequestEntityTooLarge)
		return
	}

	headers := make(map[string]string, len(r.Header))
	for k, v := range r.Header {
		headers[k] = strings.Join(v, ",")
	}
	query := make(map[string]string)
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			query[k] = v[0]
		}
	}

	resp, err := h.Handle(r.Context(), events.APIGatewayProxyRequest{
		HTTPMethod:            r.Method,
		Path:                  r.URL.Path,
		Headers:               headers,
		QueryStringParameters: query,
		Body:                  base64.StdEncoding.EncodeToString(body),
		IsBase64Encoded:       true,
	})
	if err != nil {
		logger.Base().Error("handler failed", zap.Error(err))
		http.Error(w, `{"error":"INTERNAL_ERROR","reason":"internal_error"}`, http.StatusInternalServerError)
		return
	}

	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.WriteString(w, resp.Body); err != nil {
		logger.Base().Warn("write response failed", zap.Error(err))
	}
}
