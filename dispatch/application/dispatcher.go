package application

import (
	"context"
	"errors"
	"time"

	"genai-gateway/dispatch/domain"

	"go.uber.org/zap"
)

// DefaultCallTimeout limita cada chamada ao upstream.
const DefaultCallTimeout = 30 * time.Second

// Dispatcher percorre o pool de credenciais a partir do cursor de rodízio.
//
// Tentativas são sempre sequenciais, em ordem modular crescente a partir do
// cursor. O cursor muda uma única vez por requisição lógica, e só na saída por
// sucesso ou falha terminal: passa a apontar para a credencial seguinte à última
// tentada. Na exaustão ele fica como estava.
//
// O cursor é lido no início e gravado no fim, sem lock durante as chamadas:
// requisições concorrentes podem começar da mesma credencial.
type Dispatcher struct {
	Settings    domain.SettingsSource
	Caller      domain.Caller
	Cursor      domain.Cursor
	Observer    domain.AttemptObserver
	CallTimeout time.Duration
	Logger      *zap.Logger
}

func (d *Dispatcher) Dispatch(ctx context.Context, p domain.Payload) (*domain.Result, error) {
	settings := d.Settings.Settings()
	pool := settings.Pool
	n := len(pool)
	if n == 0 {
		return nil, &domain.ConfigurationError{Message: "no API keys configured"}
	}

	log := d.logger()
	start := normalizeIndex(d.Cursor.Load(), n)
	attempts := make([]domain.AttemptRecord, 0, n)

	for attempt := 0; attempt < n; attempt++ {
		idx := (start + attempt) % n
		cred := pool[idx]

		rec := d.try(ctx, idx, cred, settings.Model, p)
		attempts = append(attempts, rec.AttemptRecord)
		d.observe(ctx, rec.AttemptRecord)

		switch rec.Outcome {
		case domain.Success:
			d.Cursor.Store((idx + 1) % n)
			log.Debug("upstream call succeeded",
				zap.String("key_id", cred.ID),
				zap.Int("key_index", idx),
				zap.Int("attempts", len(attempts)))
			return &domain.Result{Status: rec.response.Status, Body: rec.response.Body, Attempts: attempts}, nil

		case domain.Terminal:
			d.Cursor.Store((idx + 1) % n)
			log.Warn("upstream rejected request, not rotating",
				zap.String("key_id", cred.ID),
				zap.Int("status", rec.Status))
			return nil, &domain.TerminalError{
				Attempt:     rec.AttemptRecord,
				StatusError: &domain.StatusError{Status: rec.response.Status, Body: rec.response.Body},
			}

		default:
			log.Warn("upstream attempt failed, trying next key",
				zap.String("key_id", cred.ID),
				zap.Int("key_index", idx),
				zap.Int("status", rec.Status),
				zap.Error(rec.Err))
		}
	}

	log.Error("all API keys failed", zap.Int("pool_size", n))
	return nil, domain.NewExhaustedError(attempts)
}

type tryResult struct {
	domain.AttemptRecord
	response *domain.Response
}

func (d *Dispatcher) try(ctx context.Context, idx int, cred domain.Credential, model string, p domain.Payload) tryResult {
	rec := domain.AttemptRecord{CredentialIndex: idx, CredentialID: cred.ID}

	timeout := d.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := d.Caller.Call(callCtx, cred, model, p)
	if err != nil {
		var perr *domain.ParseError
		if !errors.As(err, &perr) {
			var terr *domain.TransportError
			if !errors.As(err, &terr) {
				err = &domain.TransportError{Err: err}
			}
		}
		rec.Outcome = domain.Retryable
		rec.Err = err
		rec.Detail = err.Error()
		return tryResult{AttemptRecord: rec}
	}

	rec.Status = resp.Status
	rec.Outcome = domain.Classify(resp.Status)
	if rec.Outcome != domain.Success {
		serr := &domain.StatusError{Status: resp.Status, Body: resp.Body}
		rec.Err = serr
		rec.Detail = serr.Error()
	}
	return tryResult{AttemptRecord: rec, response: resp}
}

func (d *Dispatcher) observe(ctx context.Context, rec domain.AttemptRecord) {
	if d.Observer != nil {
		d.Observer.ObserveAttempt(ctx, rec)
	}
}

func (d *Dispatcher) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// normalizeIndex revalida um cursor antigo contra o tamanho atual do pool.
func normalizeIndex(i, n int) int {
	return ((i % n) + n) % n
}
