package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/idea-pipeline/internal/config"
	"github.com/sells-group/idea-pipeline/internal/pipeline"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP trigger server",
	Long:  "Starts an HTTP server exposing the daily generation job for schedulers and manual triggers.",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	env, err := initPipeline(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	zap.L().Info("server: pipeline wired",
		zap.String("store_driver", cfg.Store.Driver),
		zap.Strings("candidates", candidateLabels(env.Candidates)),
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", cfg.Server.SchedulerHeader},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})

	job := jobHandler(env.Driver)
	r.Group(func(r chi.Router) {
		r.Use(jobAuth(cfg.Server))
		r.Get("/jobs/daily-idea", job)
		r.Post("/jobs/daily-idea", job)
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("server: listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		zap.L().Info("server: shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// jobAuth admits scheduler-tagged requests or bearer-token requests. When
// neither credential is configured the endpoint is open, matching deployments
// that front the service with network policy instead.
func jobAuth(sc config.ServerConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sc.SchedulerHeader == "" && sc.Secret == "" {
				next.ServeHTTP(w, r)
				return
			}
			if sc.SchedulerHeader != "" && r.Header.Get(sc.SchedulerHeader) != "" {
				next.ServeHTTP(w, r)
				return
			}
			if sc.Secret != "" {
				auth := r.Header.Get("Authorization")
				if strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == sc.Secret {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
		})
	}
}

func jobHandler(driver *pipeline.Driver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date := time.Now().UTC()
		if raw := r.URL.Query().Get("date"); raw != "" {
			parsed, err := time.Parse("2006-01-02", raw)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid date, want YYYY-MM-DD"})
				return
			}
			date = parsed
		}

		result, err := driver.Run(r.Context(), date)
		if err != nil {
			status, body := jobError(err)
			writeJSON(w, status, body)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"success":  true,
			"id":       result.IdeaID,
			"backend":  result.Backend,
			"notified": result.Notified,
		})
	}
}

// jobError maps pipeline stage failures onto HTTP responses. Upstream
// generation problems are 502s; everything else on our side is a 500.
func jobError(err error) (int, map[string]any) {
	if errors.Is(err, pipeline.ErrAlreadyExists) {
		return http.StatusConflict, map[string]any{"error": "already_generated"}
	}

	var se *pipeline.StageError
	if errors.As(err, &se) {
		switch se.Stage {
		case pipeline.StageGenerate, pipeline.StageRecover:
			return http.StatusBadGateway, map[string]any{"error": "generation_failed", "stage": string(se.Stage)}
		default:
			return http.StatusInternalServerError, map[string]any{"error": "pipeline_failed", "stage": string(se.Stage)}
		}
	}

	return http.StatusInternalServerError, map[string]any{"error": "pipeline_failed"}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Error("server: write response", zap.Error(err))
	}
}
