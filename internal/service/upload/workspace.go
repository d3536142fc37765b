package upload

import (
	"context"
	"strings"
)

type workspaceKey struct{}

// WithWorkspace scopes ctx to a workspace. The id is opaque.
func WithWorkspace(ctx context.Context, workspaceID string) context.Context {
	return context.WithValue(ctx, workspaceKey{}, strings.TrimSpace(workspaceID))
}

// WorkspaceFrom returns the workspace ctx is scoped to.
func WorkspaceFrom(ctx context.Context) (string, bool) {
	id, _ := ctx.Value(workspaceKey{}).(string)
	return id, id != ""
}
