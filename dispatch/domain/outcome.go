package domain

import (
	"fmt"
	"net/http"
)

// Outcome é o resultado de uma tentativa com uma credencial.
type Outcome int

const (
	Success Outcome = iota
	Retryable
	Terminal
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Retryable:
		return "retryable"
	case Terminal:
		return "terminal"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

func (o Outcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

// Classify decide o destino de uma resposta HTTP do upstream.
//
//   - 2xx: sucesso
//   - 401, 403, 429: problema da credencial (auth/cota), tenta a próxima
//   - 5xx: indisponibilidade do upstream, tenta a próxima
//   - demais 4xx: requisição ruim; falharia igual em qualquer credencial
//   - qualquer outro status (1xx/3xx): resposta não confiável, tenta a próxima
func Classify(status int) Outcome {
	switch {
	case status >= 200 && status < 300:
		return Success
	case status == http.StatusUnauthorized,
		status == http.StatusForbidden,
		status == http.StatusTooManyRequests:
		return Retryable
	case status >= 500 && status < 600:
		return Retryable
	case status >= 400 && status < 500:
		return Terminal
	default:
		return Retryable
	}
}

// AttemptRecord descreve uma tentativa de uma requisição lógica.
// Status é 0 quando a falha foi de transporte ou de parse.
type AttemptRecord struct {
	CredentialIndex int     `json:"keyIndex"`
	CredentialID    string  `json:"keyId"`
	Outcome         Outcome `json:"outcome"`
	Status          int     `json:"status,omitempty"`
	Detail          string  `json:"error,omitempty"`
	Err             error   `json:"-"`
}
