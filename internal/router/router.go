package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"toolcrib-api/internal/handler"
	"toolcrib-api/internal/middleware"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler           *handler.Handler
	DetectionHandler  *handler.DetectionHandler
	InventoryHandler  *handler.InventoryHandler
	ToolHandler       *handler.ToolHandler
	LocationHandler   *handler.LocationHandler
	AssignmentHandler *handler.AssignmentHandler
	EventHandler      *handler.EventHandler
	AdminHandler      *handler.AdminHandler
	AuthMiddleware    func(http.Handler) http.Handler
	CORSOrigins       []string
	Logger            *zap.Logger
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-API-Key"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Device endpoints stay open; detectors carry no credentials.
	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}
	if cfg.DetectionHandler != nil {
		r.Post("/api/detections/", cfg.DetectionHandler.Receive)
		r.Post("/api/detections", cfg.DetectionHandler.Receive)
		r.Post("/inventory/update/", cfg.DetectionHandler.UpdateInventory)
		r.Post("/inventory/update", cfg.DetectionHandler.UpdateInventory)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Handler != nil {
			r.Get("/health", cfg.Handler.Health)
			r.Get("/ready", cfg.Handler.Ready)
		}

		// Management routes
		r.Group(func(r chi.Router) {
			if cfg.AuthMiddleware != nil {
				r.Use(cfg.AuthMiddleware)
			}

			if cfg.InventoryHandler != nil {
				r.Route("/inventory", func(r chi.Router) {
					r.Get("/", cfg.InventoryHandler.List)
					r.Get("/{tool_id}", cfg.InventoryHandler.Get)
					r.Post("/{tool_id}/adjust", cfg.InventoryHandler.Adjust)
				})
			}

			if cfg.ToolHandler != nil {
				r.Route("/tools", func(r chi.Router) {
					r.Get("/", cfg.ToolHandler.List)
					r.Post("/", cfg.ToolHandler.Create)
					r.Get("/status", cfg.ToolHandler.Statuses)
					r.Route("/{tool_id}", func(r chi.Router) {
						r.Get("/", cfg.ToolHandler.Get)
						r.Delete("/", cfg.ToolHandler.Delete)
						r.Get("/status", cfg.ToolHandler.Status)
						r.Post("/purchases", cfg.ToolHandler.Purchase)
					})
				})
			}

			if cfg.LocationHandler != nil {
				r.Route("/stations", func(r chi.Router) {
					r.Get("/", cfg.LocationHandler.ListStations)
					r.Post("/", cfg.LocationHandler.CreateStation)
					r.Delete("/{id}", cfg.LocationHandler.DeleteStation)
					r.Get("/{id}/units", cfg.LocationHandler.ListUnits)
					r.Post("/{id}/units", cfg.LocationHandler.CreateUnit)
				})
				r.Get("/units/{id}/trays", cfg.LocationHandler.ListTrays)
				r.Post("/units/{id}/trays", cfg.LocationHandler.CreateTray)
			}

			if cfg.AssignmentHandler != nil {
				r.Get("/trays/{tray}/assignments", cfg.AssignmentHandler.ListForTray)
				r.Post("/trays/{tray}/assignments", cfg.AssignmentHandler.Assign)
				r.Get("/assignments", cfg.AssignmentHandler.List)
			}

			if cfg.EventHandler != nil {
				r.Get("/events", cfg.EventHandler.List)
			}

			if cfg.AdminHandler != nil {
				r.Get("/admin/stats", cfg.AdminHandler.GetStats)
			}
		})
	})

	return r
}
