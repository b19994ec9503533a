package engine

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/driftlab/drift/browser"
)

// Handler exposes the engine over HTTP. Workers that drive a live browser
// elsewhere post page snapshots here and get classifications, locators,
// and extracted comments back.
func (e *Engine) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	r.Get("/api/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, e.Stats(r.Context()))
	})

	r.Post("/api/classify", func(w http.ResponseWriter, r *http.Request) {
		var snap browser.Snapshot
		if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
			writeError(w, 400, err)
			return
		}
		cls, analysis := e.ClassifyPage(r.Context(), &snap)
		writeJSON(w, 200, map[string]any{"classification": cls, "analysis": analysis})
	})

	r.Post("/api/structure/{category}", func(w http.ResponseWriter, r *http.Request) {
		var snap browser.Snapshot
		if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
			writeError(w, 400, err)
			return
		}
		cmp := e.DetectStructuralChange(r.Context(), &snap, chi.URLParam(r, "category"))
		if cmp.Err != nil {
			writeJSON(w, 200, map[string]any{"changed": false, "error": cmp.Err.Error()})
			return
		}
		writeJSON(w, 200, cmp)
	})

	r.Post("/api/extract", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ContentID  string           `json:"content_id"`
			ContentURL string           `json:"content_url"`
			Snapshot   browser.Snapshot `json:"snapshot"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, 400, err)
			return
		}
		writeJSON(w, 200, e.ExtractComments(r.Context(), &req.Snapshot, req.ContentID, req.ContentURL))
	})

	r.Route("/api/locators", func(r chi.Router) {
		r.Get("/{category}", func(w http.ResponseWriter, r *http.Request) {
			entries := e.registry.Entries(r.Context(), chi.URLParam(r, "category"))
			writeJSON(w, 200, entries)
		})

		r.Get("/{category}/{element}/health", func(w http.ResponseWriter, r *http.Request) {
			snap := e.Health(r.Context(), chi.URLParam(r, "element"), chi.URLParam(r, "category"))
			writeJSON(w, 200, snap)
		})

		r.Post("/attempt", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				PageCategory string `json:"page_category"`
				Element      string `json:"element"`
				Success      bool   `json:"success"`
				Locator      string `json:"locator"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, 400, err)
				return
			}
			e.RecordAttempt(r.Context(), req.Element, req.PageCategory, req.Success, req.Locator)
			writeJSON(w, 200, map[string]string{"status": "ok"})
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
