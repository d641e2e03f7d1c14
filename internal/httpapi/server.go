package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/arawak/scenes/internal/auth"
	"github.com/arawak/scenes/internal/config"
	"github.com/arawak/scenes/internal/gallery"
	"github.com/arawak/scenes/internal/media"
	"github.com/arawak/scenes/internal/store"
	"github.com/arawak/scenes/internal/swaggerui"
)

type Server struct {
	cfg     *config.Config
	store   *store.Store
	media   *media.Manager
	gallery *gallery.Service
	auth    *auth.Service
	logger  *slog.Logger
}

var (
	openapiOnce sync.Once
	openapiData []byte
	openapiErr  error
)

func loadOpenAPI() ([]byte, error) {
	openapiOnce.Do(func() {
		path := filepath.Clean("openapi.yaml")
		openapiData, openapiErr = os.ReadFile(path)
	})
	return openapiData, openapiErr
}

func NewRouter(cfg *config.Config, st *store.Store, mediaMgr *media.Manager, gallerySvc *gallery.Service, authSvc *auth.Service, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stdout, nil))
	}
	s := &Server{cfg: cfg, store: st, media: mediaMgr, gallery: gallerySvc, auth: authSvc, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(loggingMiddleware(logger))

	if len(cfg.CORSAllowedOrigins) > 0 {
		c := cors.New(cors.Options{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "Accept"},
			AllowCredentials: true,
		})
		r.Use(c.Handler)
	}

	r.Get("/healthz", s.GetHealthz)
	r.Get("/readyz", s.GetReadyz)
	r.Get(cfg.OpenAPIPath, s.serveOpenAPI)
	r.Mount(cfg.SwaggerUIPath, swaggerui.Handler(cfg.OpenAPIPath))

	r.Group(func(r chi.Router) {
		r.Use(s.principalMiddleware)

		r.Post("/api/auth/token", s.IssueToken)
		r.Get("/api/collections", s.ListCollections)
		r.Get("/api/collections/hierarchy", s.GetHierarchy)
		r.Get("/api/collections/{slug}", s.GetCollection)
		r.Get("/api/assets/{id}", s.GetAsset)
		r.Get("/api/assets/{id}/file", s.StreamAsset)
		r.Get("/api/groups/{id}/assets", s.GetGroupAssets)
		r.Get("/api/groups/{id}/composite", s.GetCompositeMap)
		r.Get("/api/search", s.Search)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.principalMiddleware)
		r.Use(s.requireAdmin)

		r.Post("/api/collections", s.CreateCollection)
		r.Patch("/api/collections/{slug}", s.UpdateCollection)
		r.Delete("/api/collections/{slug}", s.DeleteCollection)
		r.Post("/api/collections/{slug}/clone", s.CloneCollection)
		r.Put("/api/collections/{slug}/display-mode", s.SetCollectionDisplayMode)
		r.Post("/api/collections/{slug}/children", s.AddChild)
		r.Delete("/api/collections/{slug}/children/{childID}", s.RemoveChild)
		r.Patch("/api/relationships/{id}", s.UpdateRelationship)
		r.Post("/api/collections/{slug}/assets", s.AddAssetToCollection)
		r.Delete("/api/collections/{slug}/assets/{assetID}", s.RemoveAssetFromCollection)
		r.Patch("/api/memberships/{id}", s.UpdateMembershipMetadata)
		r.Post("/api/collections/{slug}/groups", s.CreateAssetGroup)
		r.Delete("/api/groups/{id}", s.DeleteAssetGroup)
		r.Put("/api/groups/{id}/display-mode", s.SetGroupDisplayMode)
		r.Post("/api/groups/{id}/assets", s.AddAssetToGroup)
		r.Delete("/api/group-memberships/{membershipID}", s.RemoveAssetFromGroup)
		r.Patch("/api/group-memberships/{membershipID}", s.UpdateGroupSortOrder)
		r.Get("/api/display-modes", s.ListDisplayModes)

		r.Get("/api/assets", s.FindAssets)
		r.Post("/api/assets", s.UploadAsset)
		r.Post("/api/assets/import", s.ImportAsset)
		r.Delete("/api/assets/{id}", s.DeleteAsset)
		r.Get("/api/assets/{id}/integrity", s.VerifyAssetIntegrity)
		r.Post("/api/assets/{id}/checksum", s.UpdateAssetChecksum)

		r.Get("/api/ip-whitelist", s.ListIPWhitelist)
		r.Post("/api/ip-whitelist", s.AddIPWhitelistEntry)
		r.Patch("/api/ip-whitelist/{id}", s.SetIPWhitelistStatus)
		r.Delete("/api/ip-whitelist/{id}", s.RemoveIPWhitelistEntry)
	})

	return r
}

func (s *Server) serveOpenAPI(w http.ResponseWriter, _ *http.Request) {
	data, err := loadOpenAPI()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "unable to load openapi.yaml", nil)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) GetHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) GetReadyz(w http.ResponseWriter, _ *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, "not_ready", "database unreachable", map[string]any{"error": err.Error()})
		return
	}
	if err := s.media.IsWritable(); err != nil {
		writeError(w, http.StatusServiceUnavailable, "not_ready", "storage not writable", map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type apiError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	writeJSON(w, status, apiError{Code: code, Message: message, Details: details})
}

// storeError maps store sentinels onto HTTP statuses; unexpected failures
// become 500s with the detail suppressed from the response body.
func (s *Server) storeError(w http.ResponseWriter, err error, context string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", context+" not found", nil)
	case errors.Is(err, store.ErrReserved):
		writeError(w, http.StatusForbidden, "reserved", "system collections cannot be deleted", nil)
	case errors.Is(err, store.ErrDuplicate):
		writeError(w, http.StatusConflict, "duplicate", "slug already in use", nil)
	case errors.Is(err, store.ErrUnknownMode):
		writeError(w, http.StatusBadRequest, "unknown_mode", "unknown display mode", nil)
	default:
		s.logger.Error("storage failure", "context", context, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "storage failure", nil)
	}
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Info("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start).String())
		})
	}
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}
