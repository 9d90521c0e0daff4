package obslog

import (
	"context"
	"testing"
)

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	ctx = WithSession(ctx, "s1")
	ctx = WithBackend(ctx, "github")
	ctx = WithOperation(ctx, "merge")

	if got := SessionFromContext(ctx); got != "s1" {
		t.Errorf("SessionFromContext() = %q, want s1", got)
	}
	if got := BackendFromContext(ctx); got != "github" {
		t.Errorf("BackendFromContext() = %q, want github", got)
	}
	if got := OperationFromContext(ctx); got != "merge" {
		t.Errorf("OperationFromContext() = %q, want merge", got)
	}
}

func TestContextEmpty(t *testing.T) {
	ctx := context.Background()
	if got := SessionFromContext(ctx); got != "" {
		t.Errorf("SessionFromContext() = %q, want empty", got)
	}
}
