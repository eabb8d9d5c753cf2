package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"genai-gateway/dispatch/domain"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com"

	maxResponseBytes = 10 << 20
)

// GeminiCaller chama generateContent da API generativa, com a chave na query string.
type GeminiCaller struct {
	BaseURL    string
	HTTPClient *http.Client
	Mode       PayloadMode
}

func NewGeminiCaller(baseURL string, client *http.Client, mode PayloadMode) *GeminiCaller {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	if mode == "" {
		mode = ModeContents
	}
	return &GeminiCaller{BaseURL: strings.TrimRight(baseURL, "/"), HTTPClient: client, Mode: mode}
}

func (c *GeminiCaller) endpoint(model string, cred domain.Credential) string {
	q := url.Values{}
	q.Set("key", cred.Secret)
	return fmt.Sprintf("%s/v1beta/models/%s:generateContent?%s", c.BaseURL, url.PathEscape(model), q.Encode())
}

// Call implementa domain.Caller.
//
// Erros de transporte nunca carregam a URL (ela contém a chave).
func (c *GeminiCaller) Call(ctx context.Context, cred domain.Credential, model string, p domain.Payload) (*domain.Response, error) {
	body, err := buildBody(c.Mode, p)
	if err != nil {
		// contents inválido para o modo legado: nenhuma chave resolveria
		return &domain.Response{
			Status: http.StatusBadRequest,
			Body:   mustJSON(map[string]string{"error": err.Error()}),
		}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(model, cred), bytes.NewReader(body))
	if err != nil {
		return nil, &domain.TransportError{Err: errors.New("build request failed")}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Err: redactURLError(err)}
	}
	defer resp.Body.Close() // nolint:errcheck

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &domain.TransportError{Err: fmt.Errorf("read response: %w", redactURLError(err))}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 && !json.Valid(raw) {
		return nil, &domain.ParseError{Err: errors.New("response body is not valid JSON"), Raw: truncateRaw(raw)}
	}

	return &domain.Response{Status: resp.StatusCode, Header: resp.Header, Body: raw}, nil
}

// redactURLError tira a URL (com ?key=) de *url.Error, mantendo a causa.
func redactURLError(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return fmt.Errorf("%s upstream: %w", uerr.Op, uerr.Err)
	}
	return err
}

func truncateRaw(b []byte) string {
	const n = 256
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}

func mustJSON(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}
