package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

// ConfigurationError: nenhuma credencial configurada. Fatal para a requisição,
// nenhuma chamada de rede é feita.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Message
}

// TransportError é falha de conexão, timeout ou leitura do corpo. Sempre retentável.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "upstream transport error: " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// ParseError é um corpo de sucesso que não é JSON válido. Tratado como transporte.
type ParseError struct {
	Err error
	Raw string
}

func (e *ParseError) Error() string { return "upstream response parse error: " + e.Err.Error() }
func (e *ParseError) Unwrap() error { return e.Err }

// StatusError é uma resposta HTTP de erro do upstream.
type StatusError struct {
	Status int
	Body   []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.Status, truncate(strings.TrimSpace(string(e.Body)), 200))
}

// Details devolve o corpo como JSON quando possível, senão como texto.
func (e *StatusError) Details() any {
	if len(e.Body) > 0 && json.Valid(e.Body) {
		return json.RawMessage(e.Body)
	}
	return strings.TrimSpace(string(e.Body))
}

// TerminalError encerra o rodízio: o upstream rejeitou a requisição em si.
// O handler devolve o mesmo status do upstream.
type TerminalError struct {
	Attempt AttemptRecord
	*StatusError
}

func (e *TerminalError) Error() string {
	return fmt.Sprintf("terminal upstream failure with %s: %s", e.Attempt.CredentialID, e.StatusError.Error())
}

func (e *TerminalError) Unwrap() error { return e.StatusError }

// ExhaustedError: todas as credenciais foram tentadas e nenhuma teve sucesso
// nem falha terminal. Attempts segue a ordem das tentativas.
type ExhaustedError struct {
	Attempts []AttemptRecord
	cause    error
}

func NewExhaustedError(attempts []AttemptRecord) *ExhaustedError {
	var cause error
	for _, a := range attempts {
		cause = multierr.Append(cause, a.Err)
	}
	return &ExhaustedError{Attempts: attempts, cause: cause}
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all %d API keys failed: %v", len(e.Attempts), e.cause)
}

// Unwrap permite errors.Is/As sobre a falha de cada tentativa.
func (e *ExhaustedError) Unwrap() []error { return multierr.Errors(e.cause) }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
