// internal/api/router.go
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"circlepool/internal/api/handler"
)

// NewRouter sets up and returns a new HTTP router.
func NewRouter(
	userHandler *handler.UserHandler,
	circleHandler *handler.CircleHandler,
	expenseHandler *handler.ExpenseHandler,
	analyticsHandler *handler.AnalyticsHandler,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middlewares
	r.Use(middleware.RequestID)                       // Add a request ID to the context
	r.Use(middleware.RealIP)                          // Use the real IP address
	r.Use(middleware.Logger)                          // Log HTTP requests
	r.Use(middleware.Recoverer)                       // Recover from panics and return 500
	r.Use(middleware.Timeout(handler.DefaultTimeout)) // Set a default timeout for requests

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/users", func(r chi.Router) {
		r.Post("/", userHandler.Register)
		r.Get("/{userID}", userHandler.GetUser)
		r.Post("/{userID}/topup", userHandler.TopUp)
	})

	r.Route("/circles", func(r chi.Router) {
		r.Post("/", circleHandler.CreateCircle)
		r.Get("/", circleHandler.ListCircles)
		r.Get("/{circleID}", circleHandler.GetCircle)
		r.Post("/{circleID}/join", circleHandler.JoinCircle)
		r.Post("/{circleID}/contributions", circleHandler.Contribute)
		r.Post("/{circleID}/allocation-limit", circleHandler.SetAllocationLimit)
		r.Post("/{circleID}/allocations", circleHandler.AllocateManual)
	})

	r.Route("/expenses", func(r chi.Router) {
		r.Post("/", expenseHandler.RecordExpense)
		r.Get("/", expenseHandler.ListAll)
		r.Get("/recent", expenseHandler.ListRecent)
	})

	r.Route("/analytics", func(r chi.Router) {
		r.Get("/overview", analyticsHandler.Overview)
		r.Get("/insights", analyticsHandler.Insights)
	})

	return r
}
