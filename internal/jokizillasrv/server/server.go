// Package server composes the Jokizilla HTTP surface: the cross-cutting middleware, the
// operational endpoints and the OData API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/jokizilla/jokizilla/internal/common/httpclient"
	"github.com/jokizilla/jokizilla/internal/common/httpx"
	"github.com/jokizilla/jokizilla/internal/common/logtrace"
	"github.com/jokizilla/jokizilla/internal/common/middleware"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/apis"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/auth"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/config"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/db"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/srvcommon"
)

const readinessTimeout = 2 * time.Second

type JokizillaServer struct {
	Router    *chi.Mux
	cfg       *config.ConfigParam
	api       *apis.API
	validator *auth.Validator
}

// CreateNewServer builds a server for cfg. Tokens issued by the configured authority are
// verified with keys fetched through client; a nil client uses a default one.
func CreateNewServer(cfg *config.ConfigParam, client *httpclient.HTTPClient) (*JokizillaServer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("no configuration")
	}
	s := &JokizillaServer{
		Router: chi.NewRouter(),
		cfg:    cfg,
		api: apis.New(apis.Options{
			RoutePrefix: cfg.API.RoutePrefix,
			BaseURL:     cfg.API.BaseURL,
			MaxTop:      cfg.API.MaxTop,
			PageSize:    cfg.API.PageSize,
		}),
		validator: auth.NewValidator(cfg.Auth, client),
	}
	return s, nil
}

// Close stops background work started by the server, such as signing key refreshes.
func (s *JokizillaServer) Close() {
	s.validator.Close()
}

func (s *JokizillaServer) MountHandlers() {
	s.Router.Use(middleware.RequestLogger)
	s.Router.Use(middleware.PanicHandler)
	s.Router.Use(middleware.Metrics)
	if s.cfg.Server.HandleCORS {
		s.Router.Use(s.HandleCORS)
	}
	s.Router.Use(middleware.APIVersion(s.cfg.API.SupportedVersions))
	s.Router.Use(middleware.SetTimeout(s.cfg.Server.GetRequestTimeout()))
	s.Router.Use(s.limitRequestBody)

	s.mountResourceHandlers(s.Router)
	if logtrace.IsTraceEnabled() {
		walkFunc := func(method string, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
			log.Trace().Str("method", method).Str("route", route).Msg("route")
			return nil
		}
		if err := chi.Walk(s.Router, walkFunc); err != nil {
			log.Error().Err(err).Msg("error walking router")
		}
	}
}

// mountResourceHandlers registers the operational endpoints and the API. Only API routes
// hold a database connection for the duration of the request, and only once the caller's
// token has been accepted.
func (s *JokizillaServer) mountResourceHandlers(r chi.Router) {
	r.Get("/version", s.getVersion)
	r.Get("/ready", s.getReadiness)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/"+s.cfg.API.RoutePrefix, func(r chi.Router) {
		r.Use(auth.Authenticate(s.validator))
		r.Use(db.LoadScopedDBMiddleware)
		s.api.Router(r)
	})
}

type GetVersionRsp struct {
	ServerVersion string `json:"serverVersion"`
	ApiVersion    string `json:"apiVersion"`
	ODataVersion  string `json:"odataVersion"`
}

func (s *JokizillaServer) getVersion(w http.ResponseWriter, r *http.Request) {
	log.Ctx(r.Context()).Debug().Msg("GetVersion")
	rsp := &GetVersionRsp{
		ServerVersion: "Jokizilla Server: " + srvcommon.ServerVersion,
		ApiVersion:    srvcommon.ApiVersion,
		ODataVersion:  srvcommon.ODataVersion,
	}
	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, rsp)
}

func (s *JokizillaServer) getReadiness(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log.Ctx(ctx).Debug().Msg("Readiness check")

	pool := db.Pool()
	if pool == nil {
		httpx.SendJsonRsp(ctx, w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  "database not initialized",
		})
		return
	}
	pingCtx, cancel := context.WithTimeout(ctx, readinessTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("database ping failed during readiness check")
		httpx.SendJsonRsp(ctx, w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  "database connection failed",
		})
		return
	}
	httpx.SendJsonRsp(ctx, w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

func (s *JokizillaServer) HandleCORS(next http.Handler) http.Handler {
	origins := s.cfg.Server.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length", "Accept-Encoding", middleware.APIVersionHeader},
		ExposedHeaders:   []string{"Location", middleware.RequestIDHeader, middleware.APISupportedVersionsHeader},
		AllowCredentials: false,
		MaxAge:           300,
	})(next)
}

func (s *JokizillaServer) limitRequestBody(next http.Handler) http.Handler {
	limit := s.cfg.Server.MaxRequestBodySize
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil && limit > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
		}
		next.ServeHTTP(w, r)
	})
}
