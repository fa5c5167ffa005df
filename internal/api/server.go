// Package api exposes the HTTP surface: the unauthenticated appeal
// submission endpoint and the staff read endpoints.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/trustdesk/backend/internal/appeals"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	httpServer *http.Server
	logger     *log.Entry
}

func NewServer(listen string, appealService *appeals.Service, defaultLang string) *Server {
	h := &handlers{
		appeals: appealService,
		lang:    defaultLang,
	}

	return &Server{
		httpServer: &http.Server{
			Addr:              listen,
			Handler:           newRouter(h),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: log.WithField("service", "api"),
	}
}

func newRouter(h *handlers) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Organization-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Unauthenticated: the token is the only credential.
		r.Post("/appeals", h.SubmitAppeal)

		// Staff surface. Staff session auth is an external collaborator;
		// the org id arrives resolved on the request.
		r.Group(func(r chi.Router) {
			r.Use(requireOrg)
			r.Get("/appeals/{appealID}", h.GetAppeal)
			r.Get("/inbox/count", h.InboxCount)
			r.Get("/users/{userRecordID}/activity", h.UserActivity)
			r.Post("/users/{userRecordID}/appeal-token", h.IssueToken)
		})
	})

	return r
}

func (s *Server) Start(ctx context.Context) error {
	go func() {
		s.logger.WithField("listen", s.httpServer.Addr).Info("http server starting")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithError(err).Error("http server failed")
		}
	}()
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
