package api

import (
	"net/http"
	"strings"

	"github.com/ignite/paybench/internal/pkg/httputil"
	"github.com/ignite/paybench/internal/service/upload"
)

// WorkspaceHeader scopes every import request to one workspace.
const WorkspaceHeader = "X-Workspace-ID"

// RequireWorkspace copies the workspace header into the request context and
// rejects requests without one.
func RequireWorkspace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws := strings.TrimSpace(r.Header.Get(WorkspaceHeader))
		if ws == "" {
			httputil.JSON(w, http.StatusBadRequest, httputil.ErrorResponse{
				Error: WorkspaceHeader + " header is required",
				Code:  "no_workspace",
			})
			return
		}
		next.ServeHTTP(w, r.WithContext(upload.WithWorkspace(r.Context(), ws)))
	})
}
