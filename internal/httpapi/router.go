package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter builds the chi router serving every endpoint in spec.md §6's
// HTTP surface table, grounded on the teacher pack's chi-based control-plane
// router (CORS wide open by default, since this module has no auth layer of
// its own to gate it behind).
func NewRouter(d *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Session-Id"},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Post("/chat", d.HandleChat)
	r.Post("/tool-calling-agent", d.HandleToolCallingAgent)
	r.Get("/mcps", d.HandleListMCPs)
	r.Get("/mcp-learning-preview", d.HandleMCPLearningPreview)
	r.Get("/agent-prompts", d.HandleAgentPrompts)
	r.Get("/learn-mcp", d.HandleLearnMCP)

	return r
}
