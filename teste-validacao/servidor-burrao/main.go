// Servidor falso da API generativa, para validar o gateway à mão.
//
// A resposta depende do prefixo da chave (?key=):
//
//	quota...   429 RESOURCE_EXHAUSTED
//	bad...     401 UNAUTHENTICATED
//	down...    503 UNAVAILABLE
//	invalid... 400 INVALID_ARGUMENT
//	slow...    dorme SLOW_DELAY (padrão 40s) e responde 200
//	outras     200 ecoando o último turno do usuário
package main

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewDevelopment()
	defer func() { _ = log.Sync() }()

	delay := 40 * time.Second
	if v, err := time.ParseDuration(os.Getenv("SLOW_DELAY")); err == nil {
		delay = v
	}

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	log.Info("servidor falso rodando", zap.String("addr", "http://localhost"+addr))
	if err := http.ListenAndServe(addr, newRouter(log, delay)); err != nil {
		log.Fatal("erro ao subir o servidor", zap.Error(err))
	}
}

func newRouter(log *zap.Logger, slowDelay time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Post("/v1beta/models/{action}", func(w http.ResponseWriter, r *http.Request) {
		model, ok := strings.CutSuffix(chi.URLParam(r, "action"), ":generateContent")
		if !ok {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "unknown method")
			return
		}

		key := r.URL.Query().Get("key")
		log.Info("chamada recebida", zap.String("model", model), zap.Int("key_len", len(key)))

		switch {
		case key == "":
			writeError(w, http.StatusForbidden, "PERMISSION_DENIED", "missing API key")
		case strings.HasPrefix(key, "quota"):
			writeError(w, http.StatusTooManyRequests, "RESOURCE_EXHAUSTED", "quota exceeded")
		case strings.HasPrefix(key, "bad"):
			writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "API key not valid")
		case strings.HasPrefix(key, "down"):
			writeError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "model overloaded")
		case strings.HasPrefix(key, "invalid"):
			writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "request contains an invalid argument")
		default:
			if strings.HasPrefix(key, "slow") {
				select {
				case <-time.After(slowDelay):
				case <-r.Context().Done():
					return
				}
			}
			reply(w, r, model)
		}
	})
	return r
}

func reply(w http.ResponseWriter, r *http.Request, model string) {
	var body json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid JSON payload")
		return
	}

	// último turno com role "user"; no modo legado, o texto do prompt
	text := gjson.GetBytes(body, `contents.#(role=="user")#.parts.0.text|@reverse|0`).String()
	if text == "" {
		text = gjson.GetBytes(body, "prompt.text").String()
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"candidates": []any{map[string]any{
			"content": map[string]any{
				"role":  "model",
				"parts": []any{map[string]string{"text": "[" + model + "] eco: " + text}},
			},
			"finishReason": "STOP",
		}},
	})
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": status, "message": msg, "status": code},
	})
}
