package ratelimit

import "context"

type ctxKey struct{}

// WithClientKey guarda a chave do cliente já resolvida pelo middleware,
// para que handlers e logs usem a mesma identificação.
func WithClientKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, ctxKey{}, key)
}

// ClientKey retorna a chave gravada por WithClientKey ("" se ausente).
func ClientKey(ctx context.Context) string {
	v, _ := ctx.Value(ctxKey{}).(string)
	return v
}
