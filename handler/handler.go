package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"guide-bot/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

// Dispatcher handles one decoded platform update.
type Dispatcher interface {
	Handle(ctx context.Context, u tgbotapi.Update) error
}

// Config describes the webhook endpoint. Secret is compared against the
// value of the SecretHeader request header.
type Config struct {
	Path         string
	SecretHeader string
	Secret       string
}

type Handler struct {
	dispatcher   Dispatcher
	path         string
	secretHeader string
	secret       []byte
}

type okResponse struct {
	OK bool `json:"ok"`
}

type infoResponse struct {
	Service string `json:"service"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewHandler(d Dispatcher, cfg Config) (*Handler, error) {
	if d == nil {
		return nil, errors.New("handler: dispatcher must not be nil")
	}
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("handler: webhook secret must not be empty")
	}
	if strings.TrimSpace(cfg.SecretHeader) == "" {
		return nil, errors.New("handler: secret header must not be empty")
	}
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = "/webhook"
	}
	return &Handler{
		dispatcher:   d,
		path:         path,
		secretHeader: cfg.SecretHeader,
		secret:       []byte(cfg.Secret),
	}, nil
}

// Handle serves one webhook delivery. Once an update is accepted the response
// is always 200, even when handling failed, so the platform does not redeliver.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (resp events.APIGatewayProxyResponse, err error) {
	correlationID := headerValue(req.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	log := slog.With("correlation_id", correlationID)

	if req.HTTPMethod != http.MethodPost || strings.TrimRight(req.Path, "/") != strings.TrimRight(h.path, "/") {
		log.Debug("serving info response", "method", req.HTTPMethod, "path", req.Path)
		return jsonResponse(http.StatusOK, correlationID, infoResponse{
			Service: "guide-bot",
			Message: "webhook endpoint accepts POST " + h.path,
		}), nil
	}

	got := []byte(headerValue(req.Headers, h.secretHeader))
	if subtle.ConstantTimeCompare(got, h.secret) != 1 {
		log.Warn("rejected webhook delivery", "reason", "secret_mismatch")
		return errorJSON(usecase.ErrorUnauthorized, correlationID), nil
	}

	var update tgbotapi.Update
	if err := json.Unmarshal([]byte(req.Body), &update); err != nil {
		log.Warn("failed to decode update", "err", err)
		return errorJSON(usecase.ErrorInvalidInput, correlationID), nil
	}
	log = log.With("update_id", update.UpdateID)

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while handling update", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			resp, err = jsonResponse(http.StatusOK, correlationID, okResponse{OK: true}), nil
		}
	}()

	if err := h.dispatcher.Handle(ctx, update); err != nil {
		var ue *usecase.Error
		if errors.As(err, &ue) {
			log.Error("update handling failed", "code", ue.Code, "reason", ue.Reason, "err", err)
		} else {
			log.Error("update handling failed", "err", err)
		}
	} else {
		log.Debug("update handled")
	}
	return jsonResponse(http.StatusOK, correlationID, okResponse{OK: true}), nil
}

// headerValue looks a header up case-insensitively.
func headerValue(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return strings.TrimSpace(v)
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func statusFor(code usecase.ErrorCode) int {
	switch code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest
	case usecase.ErrorUnauthorized:
		return http.StatusUnauthorized
	case usecase.ErrorNotFound:
		return http.StatusNotFound
	case usecase.ErrorUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorJSON(code usecase.ErrorCode, correlationID string) events.APIGatewayProxyResponse {
	return jsonResponse(statusFor(code), correlationID, errorResponse{Error: string(code)})
}

func jsonResponse(status int, correlationID string, body any) events.APIGatewayProxyResponse {
	raw, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		raw = []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: correlationID,
		},
		Body: string(raw),
	}
}
