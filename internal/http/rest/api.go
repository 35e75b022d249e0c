package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bwise1/campus_voice/config"
	deps "github.com/bwise1/campus_voice/internal/debs"
	"github.com/bwise1/campus_voice/internal/model"
	"github.com/bwise1/campus_voice/util/values"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"
)

const (
	defaultIdleTimeout    = time.Minute
	defaultReadTimeout    = 5 * time.Second
	defaultShutdownPeriod = 30 * time.Second
)

type Handler func(w http.ResponseWriter, r *http.Request) *ServerResponse

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := h(w, r)
	if resp.Err != nil {
		zerolog.Ctx(r.Context()).Error().
			Err(resp.Err).
			Int("status_code", resp.StatusCode).
			Str("path", r.URL.Path).
			Msg(resp.Message)
	}

	respByte, err := json.Marshal(resp)
	if err != nil {
		writeErrorResponse(w, err, values.Error, "unable to marshal server response")
		return
	}
	writeJSONResponse(w, respByte, resp.StatusCode)
}

type API struct {
	Server *http.Server
	Config *config.Config
	Deps   *deps.Dependencies
	Log    zerolog.Logger
}

func New(cfg *config.Config, d *deps.Dependencies, log zerolog.Logger) *API {
	return &API{Config: cfg, Deps: d, Log: log}
}

func (api *API) Serve() error {
	// no write timeout: live connections are long-lived
	api.Server = &http.Server{
		Addr:        fmt.Sprintf(":%d", api.Config.Port),
		IdleTimeout: defaultIdleTimeout,
		ReadTimeout: defaultReadTimeout,
		Handler:     api.setUpServerHandler(),
	}
	api.Log.Info().Str("addr", api.Server.Addr).Msg("http server listening")
	return api.Server.ListenAndServe()
}

func (api *API) setUpServerHandler() http.Handler {
	mux := chi.NewRouter()
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   api.Config.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", values.HeaderRequestID, values.HeaderRequestSource},
		ExposedHeaders:   []string{values.HeaderRequestID},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	if api.Config.RateLimitRPM > 0 {
		mux.Use(httprate.LimitByIP(api.Config.RateLimitRPM, time.Minute))
	}
	mux.Use(api.RequestTracing)

	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSONResponse(w, []byte(`{"status":"ok"}`), http.StatusOK)
	})

	if api.Deps.Disk != nil {
		fs := http.StripPrefix("/uploads/", http.FileServer(api.Deps.Disk.FileSystem()))
		mux.Handle("/uploads/*", fs)
	}

	mux.Mount("/auth", api.AuthRoutes())
	mux.Mount("/profile", api.ProfileRoutes())
	mux.Mount("/tickets", api.TicketRoutes())
	mux.Mount("/admin", api.AdminRoutes())

	mux.Group(func(r chi.Router) {
		r.Use(api.RequireLogin)
		r.Get("/live", api.Live)
	})

	return mux
}

// Shutdown stops accepting requests and waits for in-flight ones, bounded
// by ctx and the default shutdown period.
func (api *API) Shutdown(ctx context.Context) error {
	if api.Server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, defaultShutdownPeriod)
	defer cancel()
	return api.Server.Shutdown(ctx)
}

func requireStudent() func(http.Handler) http.Handler { return RequireRole(model.RoleStudent) }

func requireAdmin() func(http.Handler) http.Handler { return RequireRole(model.RoleAdmin) }
