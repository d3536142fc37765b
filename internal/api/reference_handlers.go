package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ignite/paybench/internal/domain"
	"github.com/ignite/paybench/internal/pkg/httputil"
	"github.com/ignite/paybench/internal/service/ingest"
	"github.com/ignite/paybench/internal/taxonomy"
)

// ReferenceHandlers serve the read-only reference data clients need to
// build mapping screens.
type ReferenceHandlers struct {
	index   *taxonomy.Index
	schemas *ingest.Schemas
}

func NewReferenceHandlers(index *taxonomy.Index, schemas *ingest.Schemas) *ReferenceHandlers {
	return &ReferenceHandlers{index: index, schemas: schemas}
}

func (h *ReferenceHandlers) RegisterRoutes(r chi.Router) {
	r.Get("/taxonomy/{kind}", h.HandleTaxonomy)
	r.Get("/schemas", h.HandleSchemas)
	r.Get("/schemas/{dataType}", h.HandleSchema)
}

//	GET /api/taxonomy/{kind}  (roles, locations, levels)
func (h *ReferenceHandlers) HandleTaxonomy(w http.ResponseWriter, r *http.Request) {
	kind, err := taxonomy.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{
		"kind":     kind,
		"entities": h.index.Entities(kind),
	})
}

//	GET /api/schemas
func (h *ReferenceHandlers) HandleSchemas(w http.ResponseWriter, r *http.Request) {
	out := make([]*ingest.Schema, 0, len(domain.DataTypes))
	for _, dt := range domain.DataTypes {
		sc, err := h.schemas.For(dt)
		if err != nil {
			httputil.InternalError(w, err)
			return
		}
		out = append(out, sc)
	}
	httputil.OK(w, map[string]interface{}{"schemas": out})
}

//	GET /api/schemas/{dataType}
func (h *ReferenceHandlers) HandleSchema(w http.ResponseWriter, r *http.Request) {
	dt := domain.DataType(chi.URLParam(r, "dataType"))
	sc, err := h.schemas.For(dt)
	if err != nil {
		writeError(w, fmt.Errorf("schema %q: %w", dt, err))
		return
	}
	httputil.OK(w, sc)
}
