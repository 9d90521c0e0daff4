package obslog

import "context"

// Context keys for logging values.
// Using private types to avoid key collisions.
type contextKey int

const (
	sessionKey contextKey = iota
	backendKey
	operationKey
)

// WithSession adds a session name to the context.
func WithSession(ctx context.Context, session string) context.Context {
	return context.WithValue(ctx, sessionKey, session)
}

// WithBackend adds a repository-backend/platform name to the context
// (e.g. "local", "github", "gitlab").
func WithBackend(ctx context.Context, backend string) context.Context {
	return context.WithValue(ctx, backendKey, backend)
}

// WithOperation adds the name of the in-flight operation to the context
// (e.g. "create", "approve", "merge", "migrate").
func WithOperation(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, operationKey, operation)
}

// SessionFromContext extracts the session name from the context.
func SessionFromContext(ctx context.Context) string {
	return stringValue(ctx, sessionKey)
}

// BackendFromContext extracts the backend name from the context.
func BackendFromContext(ctx context.Context) string {
	return stringValue(ctx, backendKey)
}

// OperationFromContext extracts the operation name from the context.
func OperationFromContext(ctx context.Context) string {
	return stringValue(ctx, operationKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v := ctx.Value(key); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
