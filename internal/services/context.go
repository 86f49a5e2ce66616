package services

import "context"

// ctxKey keys the request-scoped values the loggers and providers read.
type ctxKey int

const (
	keyBookID ctxKey = iota
	keyLayer
	keyProvider
	keyRequestID
)

func valueOf[T comparable](ctx context.Context, key ctxKey) (T, bool) {
	var zero T
	if ctx == nil {
		return zero, false
	}
	v, ok := ctx.Value(key).(T)
	if !ok || v == zero {
		return zero, false
	}
	return v, true
}

func withString(ctx context.Context, key ctxKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

// WithBookID tags ctx with the book being processed.
func WithBookID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, keyBookID, id)
}

// BookIDFromContext returns the tagged book id. Zero counts as absent.
func BookIDFromContext(ctx context.Context) (int64, bool) {
	return valueOf[int64](ctx, keyBookID)
}

// WithLayer tags ctx with the identification layer being run.
func WithLayer(ctx context.Context, layer string) context.Context {
	return withString(ctx, keyLayer, layer)
}

func LayerFromContext(ctx context.Context) (string, bool) {
	return valueOf[string](ctx, keyLayer)
}

// WithProvider tags ctx with the metadata provider being queried.
func WithProvider(ctx context.Context, provider string) context.Context {
	return withString(ctx, keyProvider, provider)
}

func ProviderFromContext(ctx context.Context) (string, bool) {
	return valueOf[string](ctx, keyProvider)
}

// WithRequestID tags ctx with a correlation id, usually an API request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withString(ctx, keyRequestID, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	return valueOf[string](ctx, keyRequestID)
}
