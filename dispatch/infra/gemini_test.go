package infra

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"genai-gateway/dispatch/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleContents = `[{"role":"user","parts":[{"text":"Olá"}]},{"role":"model","parts":[{"text":"Oi!"}]},{"role":"user","parts":[{"text":"Tudo bem?"}]}]`

type capturedRequest struct {
	method string
	path   string
	key    string
	ctype  string
	body   []byte
}

func upstream(t *testing.T, status int, respBody string, got *capturedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		*got = capturedRequest{
			method: r.Method,
			path:   r.URL.Path,
			key:    r.URL.Query().Get("key"),
			ctype:  r.Header.Get("Content-Type"),
			body:   b,
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, respBody)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGeminiCaller_SendsContentsWithKeyInQuery(t *testing.T) {
	var got capturedRequest
	srv := upstream(t, http.StatusOK, `{"candidates":[]}`, &got)

	c := NewGeminiCaller(srv.URL+"/", srv.Client(), ModeContents)
	resp, err := c.Call(context.Background(), domain.NewCredential("k1"), "gemini-1.5-flash",
		domain.Payload{Contents: json.RawMessage(sampleContents)})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.Status)
	assert.JSONEq(t, `{"candidates":[]}`, string(resp.Body))

	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/v1beta/models/gemini-1.5-flash:generateContent", got.path)
	assert.Equal(t, "k1", got.key)
	assert.Equal(t, "application/json", got.ctype)
	assert.JSONEq(t, `{"contents":`+sampleContents+`}`, string(got.body))
}

func TestGeminiCaller_PromptMode(t *testing.T) {
	var got capturedRequest
	srv := upstream(t, http.StatusOK, `{}`, &got)

	c := NewGeminiCaller(srv.URL, srv.Client(), ModePrompt)
	_, err := c.Call(context.Background(), domain.NewCredential("k1"), "m",
		domain.Payload{Contents: json.RawMessage(sampleContents)})
	require.NoError(t, err)

	assert.JSONEq(t, `{"prompt":{"text":"USER: Olá\n\nMODEL: Oi!\n\nUSER: Tudo bem?"}}`, string(got.body))
}

func TestGeminiCaller_PromptModeRejectsShapelessContents(t *testing.T) {
	var got capturedRequest
	srv := upstream(t, http.StatusOK, `{}`, &got)

	c := NewGeminiCaller(srv.URL, srv.Client(), ModePrompt)
	resp, err := c.Call(context.Background(), domain.NewCredential("k1"), "m",
		domain.Payload{Contents: json.RawMessage(`"só texto"`)})
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, resp.Status)
	assert.Empty(t, got.method, "nenhuma chamada deveria ter sido feita")
}

func TestGeminiCaller_ErrorStatusIsAResponse(t *testing.T) {
	var got capturedRequest
	srv := upstream(t, http.StatusTooManyRequests, `{"error":{"code":429}}`, &got)

	c := NewGeminiCaller(srv.URL, srv.Client(), ModeContents)
	resp, err := c.Call(context.Background(), domain.NewCredential("k1"), "m",
		domain.Payload{Contents: json.RawMessage(`[]`)})
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.Status)
}

func TestGeminiCaller_MalformedSuccessBodyIsParseError(t *testing.T) {
	var got capturedRequest
	srv := upstream(t, http.StatusOK, `<html>oops`, &got)

	c := NewGeminiCaller(srv.URL, srv.Client(), ModeContents)
	_, err := c.Call(context.Background(), domain.NewCredential("k1"), "m",
		domain.Payload{Contents: json.RawMessage(`[]`)})

	var perr *domain.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "<html>oops", perr.Raw)
}

func TestGeminiCaller_TransportErrorDoesNotLeakKey(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := NewGeminiCaller(base, nil, ModeContents)
	_, err := c.Call(context.Background(), domain.NewCredential("AIzaSecretValue"), "m",
		domain.Payload{Contents: json.RawMessage(`[]`)})

	var terr *domain.TransportError
	require.ErrorAs(t, err, &terr)
	assert.False(t, strings.Contains(err.Error(), "AIzaSecretValue"), err.Error())
}

func TestGeminiCaller_ContextDeadline(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewGeminiCaller(srv.URL, srv.Client(), ModeContents)
	_, err := c.Call(ctx, domain.NewCredential("k1"), "m", domain.Payload{Contents: json.RawMessage(`[]`)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestParsePayloadMode(t *testing.T) {
	m, err := ParsePayloadMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeContents, m)

	m, err = ParsePayloadMode(" Prompt ")
	require.NoError(t, err)
	assert.Equal(t, ModePrompt, m)

	_, err = ParsePayloadMode("xml")
	assert.Error(t, err)
}
