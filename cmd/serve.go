package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/rx-intel/internal/enrich"
	"github.com/sells-group/rx-intel/internal/intake"
	"github.com/sells-group/rx-intel/internal/store"
)

// maxRequestBody caps intake payloads.
const maxRequestBody = 1 << 20

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the scorecard and deep-dive endpoints and the collection API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		env, err := initEnv(ctx, cfg, true)
		if err != nil {
			return err
		}
		defer env.Close()

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           newRouter(env, cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()

		zap.L().Info("starting server",
			zap.Int("port", cfg.Server.Port),
			zap.Bool("documents", env.Docs != nil),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// api holds the handler dependencies.
type api struct {
	env *appEnv
}

// newRouter builds the HTTP routes. The collection routes are only
// mounted when env has a store.
func newRouter(env *appEnv, origins []string) http.Handler {
	a := &api{env: env}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", a.health)
	r.Post("/scorecard", a.scorecard)
	r.Post("/deep-dive", a.deepDive)

	if env.Store != nil {
		r.Route("/api", func(r chi.Router) {
			r.Get("/pharmacies", a.listPharmacies)
			r.Get("/pharmacies/{npi}", a.getPharmacy)
			r.Get("/states/{state}", a.stateSummary)
		})
	}
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	available := false
	if a.env.Docs != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		available = a.env.Docs.Ping(ctx) == nil
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":                   "ok",
		"pdf_generation_available": available,
	})
}

func (a *api) scorecard(w http.ResponseWriter, r *http.Request) {
	var req intake.ScorecardRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp := a.env.Assembler.Scorecard(r.Context(), req)
	writeJSON(w, statusFor(resp.Success), resp)
}

func (a *api) deepDive(w http.ResponseWriter, r *http.Request) {
	var req intake.DeepDiveRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp := a.env.Assembler.DeepDive(r.Context(), req)
	writeJSON(w, statusFor(resp.Success), resp)
}

func statusFor(success bool) int {
	if success {
		return http.StatusOK
	}
	return http.StatusBadRequest
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return errors.New("invalid request body")
	}
	return nil
}

func (a *api) getPharmacy(w http.ResponseWriter, r *http.Request) {
	npi := chi.URLParam(r, "npi")
	if !enrich.ValidNPI(npi) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%q is not a valid 10-digit NPI", npi))
		return
	}
	sp, err := a.env.Store.GetPharmacy(r.Context(), npi)
	if err != nil {
		zap.L().Error("get pharmacy", zap.String("npi", npi), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if sp == nil {
		writeError(w, http.StatusNotFound, "NPI not found")
		return
	}
	writeJSON(w, http.StatusOK, sp)
}

func (a *api) listPharmacies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.PharmacyFilter{
		AfterNPI:     q.Get("after"),
		VerifiedOnly: q.Get("verified") == "true",
		ByScore:      q.Get("order") == "score",
	}
	if s := q.Get("state"); s != "" {
		st, ok := enrich.NormalizeState(s)
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown state %q", s))
			return
		}
		filter.State = st
	}
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = min(n, store.DefaultListLimit)
	}

	rows, err := a.env.Store.ListPharmacies(r.Context(), filter)
	if err != nil {
		zap.L().Error("list pharmacies", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"total": len(rows), "pharmacies": rows})
}

func (a *api) stateSummary(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "state")
	st, ok := enrich.NormalizeState(raw)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("State %s not found", strings.ToUpper(raw)))
		return
	}
	top := 50
	if t := r.URL.Query().Get("top"); t != "" {
		n, err := strconv.Atoi(t)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "top must be a non-negative integer")
			return
		}
		top = n
	}

	sum, err := a.env.Store.StateSummary(r.Context(), st, top)
	if err != nil {
		zap.L().Error("state summary", zap.String("state", st), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if sum.Total == 0 {
		writeError(w, http.StatusNotFound, fmt.Sprintf("State %s not found", st))
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
