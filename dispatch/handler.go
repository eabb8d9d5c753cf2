package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"genai-gateway/dispatch/domain"

	"go.uber.org/zap"
)

// DefaultMaxBody limita o corpo aceito no endpoint de chat.
const DefaultMaxBody = 1 << 20

// Dispatcher é o que o handler precisa do application.Dispatcher.
type Dispatcher interface {
	Dispatch(ctx context.Context, p domain.Payload) (*domain.Result, error)
}

type Handler struct {
	Dispatcher Dispatcher
	// Normalize devolve {"candidates":[...texto unificado...],"raw":...} no lugar do payload cru.
	Normalize bool
	MaxBody   int64
	Logger    *zap.Logger
}

type errorBody struct {
	Error    string                 `json:"error"`
	Details  any                    `json:"details,omitempty"`
	Attempts []domain.AttemptRecord `json:"attempts,omitempty"`
}

type chatRequest struct {
	Contents json.RawMessage `json:"contents"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := h.logger()

	if r.Method != http.MethodPost {
		MethodNotAllowed(w, r)
		return
	}

	maxBody := h.MaxBody
	if maxBody <= 0 {
		maxBody = DefaultMaxBody
	}
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "Request body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid JSON body"})
		return
	}

	var req chatRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid JSON body"})
		return
	}
	if len(req.Contents) == 0 || bytes.Equal(bytes.TrimSpace(req.Contents), []byte("null")) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Missing contents"})
		return
	}

	res, err := h.Dispatcher.Dispatch(r.Context(), domain.Payload{Contents: req.Contents})
	if err != nil {
		h.writeError(w, log, err)
		return
	}

	body := []byte(res.Body)
	if h.Normalize {
		body = Normalize(res.Body)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *Handler) writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	var (
		cfgErr    *domain.ConfigurationError
		termErr   *domain.TerminalError
		exhausted *domain.ExhaustedError
	)
	switch {
	case errors.As(err, &cfgErr):
		log.Error("dispatch misconfigured", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Error:   "Server configuration error",
			Details: cfgErr.Message,
		})
	case errors.As(err, &termErr):
		writeJSON(w, termErr.Status, errorBody{
			Error:   "Upstream API error",
			Details: termErr.Details(),
		})
	case errors.As(err, &exhausted):
		writeJSON(w, http.StatusBadGateway, errorBody{
			Error:    "All API keys failed",
			Attempts: exhausted.Attempts,
		})
	default:
		log.Error("dispatch failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Internal server error"})
	}
}

// MethodNotAllowed responde 405 em JSON; usado também pelo router.
func MethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Allow", http.MethodPost)
	writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "Method not allowed"})
}

func (h *Handler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
