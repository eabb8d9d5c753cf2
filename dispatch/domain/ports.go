package domain

import (
	"context"
	"encoding/json"
	"net/http"
)

// Response é a resposta HTTP crua de uma chamada ao upstream.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Caller faz uma chamada ao upstream com uma credencial.
//
// Erro não nil significa falha de transporte ou de parse (*TransportError,
// *ParseError). Respostas HTTP de erro voltam como Response, sem erro.
type Caller interface {
	Call(ctx context.Context, cred Credential, model string, p Payload) (*Response, error)
}

// Cursor é o índice da credencial a tentar primeiro na próxima requisição lógica.
// O valor carregado pode estar fora do pool atual; quem usa revalida.
type Cursor interface {
	Load() int
	Store(int)
}

// AttemptObserver recebe cada tentativa (métricas, logs). Best-effort.
type AttemptObserver interface {
	ObserveAttempt(ctx context.Context, rec AttemptRecord)
}

// Result é o sucesso de uma requisição lógica.
type Result struct {
	Status   int
	Body     json.RawMessage
	Attempts []AttemptRecord
}
