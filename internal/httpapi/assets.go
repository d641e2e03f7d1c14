package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/arawak/scenes/internal/auth"
	"github.com/arawak/scenes/internal/media"
)

func (s *Server) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := s.auth.Authenticate(r.Context(), req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid username or password", nil)
		return
	}
	if err != nil {
		s.storeError(w, err, "authentication")
		return
	}
	token, err := s.auth.IssueToken(user)
	if err != nil {
		s.logger.Error("token signing failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "could not issue token", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) GetAsset(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_id", "asset id must be numeric", nil)
		return
	}
	asset, err := s.store.GetAsset(r.Context(), id)
	if err != nil {
		s.storeError(w, err, "asset")
		return
	}
	if !s.assetVisible(w, r, id) {
		return
	}
	collections, err := s.store.AssetCollections(r.Context(), id)
	if err != nil {
		s.storeError(w, err, "asset collections")
		return
	}
	groups, err := s.store.AssetGroups(r.Context(), id)
	if err != nil {
		s.storeError(w, err, "asset groups")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"asset":       asset,
		"collections": collections,
		"groups":      groups,
	})
}

// StreamAsset serves the backing file inline. An asset placed in any
// protected collection requires an authenticated caller.
func (s *Server) StreamAsset(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_id", "asset id must be numeric", nil)
		return
	}
	asset, err := s.store.GetAsset(r.Context(), id)
	if err != nil {
		s.storeError(w, err, "asset")
		return
	}
	if !s.assetVisible(w, r, id) {
		return
	}
	f, err := os.Open(asset.Filepath)
	if err != nil {
		s.logger.Error("asset file missing", "asset_id", id, "filepath", asset.Filepath, "error", err)
		writeError(w, http.StatusNotFound, "file_missing", "asset file is not available", nil)
		return
	}
	defer f.Close()
	stat, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "asset file is not readable", nil)
		return
	}
	w.Header().Set("Content-Type", asset.Filetype)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", asset.Filename))
	http.ServeContent(w, r, asset.Filename, stat.ModTime(), f)
}

// assetVisible writes the 401 itself and reports whether the handler should
// continue. An asset placed in any protected collection is hidden from
// anonymous callers, no matter how many unprotected placements it also has.
func (s *Server) assetVisible(w http.ResponseWriter, r *http.Request, assetID int64) bool {
	if s.isAuthorized(r) {
		return true
	}
	collections, err := s.store.AssetCollections(r.Context(), assetID)
	if err != nil {
		s.storeError(w, err, "asset collections")
		return false
	}
	for _, c := range collections {
		if c.Protected {
			writeError(w, http.StatusUnauthorized, "unauthorized", "asset is placed in a protected collection", nil)
			return false
		}
	}
	return true
}

// FindAssets filters the asset pool by filename (substring unless exact=1),
// filetype or checksum. Without filters it lists nothing on purpose: the pool
// can be large, and the collection views are the browsing surface.
func (s *Server) FindAssets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	switch {
	case q.Get("checksum") != "":
		asset, err := s.store.FindAssetByChecksum(r.Context(), q.Get("checksum"))
		if err != nil {
			s.storeError(w, err, "asset")
			return
		}
		writeJSON(w, http.StatusOK, []any{asset})
	case q.Get("filename") != "":
		exact, _ := strconv.ParseBool(q.Get("exact"))
		assets, err := s.store.FindAssetsByFilename(r.Context(), q.Get("filename"), exact)
		if err != nil {
			s.storeError(w, err, "assets")
			return
		}
		writeJSON(w, http.StatusOK, assets)
	case q.Get("filetype") != "":
		assets, err := s.store.FindAssetsByFiletype(r.Context(), q.Get("filetype"))
		if err != nil {
			s.storeError(w, err, "assets")
			return
		}
		writeJSON(w, http.StatusOK, assets)
	default:
		writeError(w, http.StatusBadRequest, "missing_filter",
			"one of filename, filetype or checksum is required", nil)
	}
}

func (s *Server) UploadAsset(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "bad_upload", "request is not valid multipart form data", nil)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_upload", "multipart field \"file\" is required", nil)
		return
	}
	defer file.Close()

	filename := header.Filename
	if filename == "" {
		writeError(w, http.StatusBadRequest, "bad_upload", "uploaded file has no filename", nil)
		return
	}

	assetID, err := s.gallery.Upload(r.Context(), file, filename, s.cfg.MaxUploadBytes)
	if errors.Is(err, media.ErrTooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "too_large",
			fmt.Sprintf("upload exceeds the %d byte limit", s.cfg.MaxUploadBytes), nil)
		return
	}
	if err != nil {
		s.logger.Error("upload failed", "filename", filename, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "upload failed", nil)
		return
	}
	asset, err := s.store.GetAsset(r.Context(), assetID)
	if err != nil {
		s.storeError(w, err, "asset")
		return
	}
	writeJSON(w, http.StatusCreated, asset)
}

// ImportAsset ingests a file already on the server's filesystem, for bulk
// imports that bypass the upload limit.
func (s *Server) ImportAsset(w http.ResponseWriter, r *http.Request) {
	var req importAssetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	assetID, err := s.gallery.CreateFromFile(r.Context(), req.Path, req.Filename)
	if err != nil {
		s.logger.Error("import failed", "path", req.Path, "error", err)
		writeError(w, http.StatusBadRequest, "import_failed", "source file could not be ingested", nil)
		return
	}
	asset, err := s.store.GetAsset(r.Context(), assetID)
	if err != nil {
		s.storeError(w, err, "asset")
		return
	}
	writeJSON(w, http.StatusCreated, asset)
}

func (s *Server) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_id", "asset id must be numeric", nil)
		return
	}
	deleteFile, _ := strconv.ParseBool(r.URL.Query().Get("delete_file"))
	if err := s.gallery.DeleteAsset(r.Context(), id, deleteFile); err != nil {
		s.storeError(w, err, "asset")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) VerifyAssetIntegrity(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_id", "asset id must be numeric", nil)
		return
	}
	ok, err := s.gallery.VerifyIntegrity(r.Context(), id)
	if err != nil {
		s.storeError(w, err, "asset")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"intact": ok})
}

func (s *Server) UpdateAssetChecksum(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_id", "asset id must be numeric", nil)
		return
	}
	if err := s.gallery.UpdateChecksum(r.Context(), id); err != nil {
		s.storeError(w, err, "asset")
		return
	}
	asset, err := s.store.GetAsset(r.Context(), id)
	if err != nil {
		s.storeError(w, err, "asset")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"checksum": asset.Checksum})
}

func (s *Server) ListIPWhitelist(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.IPWhitelist(r.Context(), false)
	if err != nil {
		s.storeError(w, err, "ip whitelist")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) AddIPWhitelistEntry(w http.ResponseWriter, r *http.Request) {
	var req ipWhitelistRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id, err := s.store.AddIPToWhitelist(r.Context(), req.IPAddress, req.Description)
	if err != nil {
		s.storeError(w, err, "ip whitelist")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) SetIPWhitelistStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_id", "entry id must be numeric", nil)
		return
	}
	var req ipWhitelistStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.store.SetIPWhitelistStatus(r.Context(), id, req.Active); err != nil {
		s.storeError(w, err, "ip whitelist")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) RemoveIPWhitelistEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_id", "entry id must be numeric", nil)
		return
	}
	if err := s.store.RemoveIPFromWhitelist(r.Context(), id); err != nil {
		s.storeError(w, err, "ip whitelist")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
