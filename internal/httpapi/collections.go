package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/arawak/scenes/internal/gallery"
	"github.com/arawak/scenes/internal/store"
)

func (s *Server) ListCollections(w http.ResponseWriter, r *http.Request) {
	collections, err := s.store.ListCollections(r.Context())
	if err != nil {
		s.storeError(w, err, "collections")
		return
	}
	if !s.isAuthorized(r) {
		visible := collections[:0]
		for _, c := range collections {
			if !c.Protected {
				visible = append(visible, c)
			}
		}
		collections = visible
	}
	writeJSON(w, http.StatusOK, collections)
}

func (s *Server) GetHierarchy(w http.ResponseWriter, r *http.Request) {
	root, err := s.gallery.Hierarchy(r.Context(), s.isAuthorized(r))
	if err != nil {
		s.storeError(w, err, "hierarchy")
		return
	}
	writeJSON(w, http.StatusOK, root)
}

func (s *Server) GetCollection(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	view, err := s.gallery.CollectionView(r.Context(), slug)
	if err != nil {
		s.storeError(w, err, "collection")
		return
	}
	if view.Collection.Protected && !s.isAuthorized(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized", "collection is protected", nil)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) CreateCollection(w http.ResponseWriter, r *http.Request) {
	var req collectionCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if store.IsReservedSlug(req.Slug) {
		writeError(w, http.StatusConflict, "reserved", "slug is reserved for system collections", nil)
		return
	}
	id, err := s.store.CreateCollection(r.Context(), store.CollectionCreate{
		Slug:        req.Slug,
		Name:        req.Name,
		Title:       req.Title,
		Description: req.Description,
		Protected:   req.Protected,
	})
	if err != nil {
		s.storeError(w, err, "collection")
		return
	}
	c, err := s.store.GetCollection(r.Context(), id)
	if err != nil {
		s.storeError(w, err, "collection")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// collectionFromPath resolves the {slug} path parameter, writing the error
// response itself when the collection does not exist.
func (s *Server) collectionFromPath(w http.ResponseWriter, r *http.Request) (*store.Collection, bool) {
	c, err := s.store.GetCollectionBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		s.storeError(w, err, "collection")
		return nil, false
	}
	return c, true
}

func (s *Server) UpdateCollection(w http.ResponseWriter, r *http.Request) {
	c, ok := s.collectionFromPath(w, r)
	if !ok {
		return
	}
	id := c.ID
	var req collectionUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Slug != nil && store.IsReservedSlug(*req.Slug) {
		writeError(w, http.StatusConflict, "reserved", "slug is reserved for system collections", nil)
		return
	}
	// the root and assets collections are looked up by slug; renaming them
	// would orphan the hierarchy walk and the upload pool
	if req.Slug != nil && store.IsReservedSlug(c.Slug) && *req.Slug != c.Slug {
		writeError(w, http.StatusForbidden, "reserved", "system collection slugs cannot be changed", nil)
		return
	}
	err := s.store.UpdateCollection(r.Context(), id, store.CollectionUpdate{
		Slug:        req.Slug,
		Name:        req.Name,
		Title:       req.Title,
		Description: req.Description,
		Protected:   req.Protected,
	})
	if err != nil {
		s.storeError(w, err, "collection")
		return
	}
	updated, err := s.store.GetCollection(r.Context(), id)
	if err != nil {
		s.storeError(w, err, "collection")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) DeleteCollection(w http.ResponseWriter, r *http.Request) {
	c, ok := s.collectionFromPath(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteCollection(r.Context(), c.ID); err != nil {
		s.storeError(w, err, "collection")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) CloneCollection(w http.ResponseWriter, r *http.Request) {
	c, ok := s.collectionFromPath(w, r)
	if !ok {
		return
	}
	id := c.ID
	var req cloneRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	var err error
	ov := store.CloneOverrides{
		Slug:        req.Slug,
		Name:        req.Name,
		Title:       req.Title,
		Description: req.Description,
		Protected:   req.Protected,
	}
	var cloneID int64
	if req.WithAssets {
		cloneID, err = s.store.CloneCollectionWithAssets(r.Context(), id, ov)
	} else {
		cloneID, err = s.store.CloneCollection(r.Context(), id, ov)
	}
	if err != nil {
		s.storeError(w, err, "collection")
		return
	}
	clone, err := s.store.GetCollection(r.Context(), cloneID)
	if err != nil {
		s.storeError(w, err, "collection")
		return
	}
	writeJSON(w, http.StatusCreated, clone)
}

func (s *Server) SetCollectionDisplayMode(w http.ResponseWriter, r *http.Request) {
	c, ok := s.collectionFromPath(w, r)
	if !ok {
		return
	}
	var req displayModeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.store.SetCollectionDisplayMode(r.Context(), c.ID, req.Mode); err != nil {
		s.storeError(w, err, "display mode")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"display_mode": req.Mode})
}

func (s *Server) AddChild(w http.ResponseWriter, r *http.Request) {
	parent, ok := s.collectionFromPath(w, r)
	if !ok {
		return
	}
	parentID := parent.ID
	var req addChildRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if parentID == req.ChildID {
		writeError(w, http.StatusBadRequest, "self_link", "a collection cannot be its own child", nil)
		return
	}
	if _, err := s.store.GetCollection(r.Context(), req.ChildID); err != nil {
		s.storeError(w, err, "child collection")
		return
	}

	opts := store.DefaultChildOptions()
	if req.ShowMetadata != nil {
		opts.ShowMetadata = *req.ShowMetadata
	}
	if req.SortOrder != nil {
		opts.SortOrder = *req.SortOrder
	}
	if req.DisplayMode != nil {
		opts.DisplayMode = *req.DisplayMode
	}

	relationshipID, err := s.store.AddChild(r.Context(), parentID, req.ChildID, opts)
	if err != nil {
		s.storeError(w, err, "relationship")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"relationship_id": relationshipID})
}

func (s *Server) RemoveChild(w http.ResponseWriter, r *http.Request) {
	parent, ok := s.collectionFromPath(w, r)
	if !ok {
		return
	}
	parentID := parent.ID
	childID, err := pathID(r, "childID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_id", "child id must be numeric", nil)
		return
	}
	removed, err := s.store.RemoveChild(r.Context(), parentID, childID)
	if err != nil {
		s.storeError(w, err, "relationship")
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "not_found", "relationship not found", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) UpdateRelationship(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_id", "relationship id must be numeric", nil)
		return
	}
	var req relationshipUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	err = s.store.UpdateRelationship(r.Context(), id, store.RelationshipUpdate{
		ShowMetadata: req.ShowMetadata,
		SortOrder:    req.SortOrder,
		DisplayMode:  req.DisplayMode,
	})
	if err != nil {
		s.storeError(w, err, "relationship")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) AddAssetToCollection(w http.ResponseWriter, r *http.Request) {
	c, ok := s.collectionFromPath(w, r)
	if !ok {
		return
	}
	collectionID := c.ID
	var req addAssetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if _, err := s.store.GetAsset(r.Context(), req.AssetID); err != nil {
		s.storeError(w, err, "asset")
		return
	}
	membershipID, err := s.store.AddAssetToCollection(r.Context(), collectionID, req.AssetID, store.MembershipMetadata{
		DisplayName: req.DisplayName,
		Description: req.Description,
		SortOrder:   req.SortOrder,
	})
	if err != nil {
		s.storeError(w, err, "membership")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"membership_id": membershipID})
}

func (s *Server) RemoveAssetFromCollection(w http.ResponseWriter, r *http.Request) {
	c, ok := s.collectionFromPath(w, r)
	if !ok {
		return
	}
	collectionID := c.ID
	assetID, err := pathID(r, "assetID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_id", "asset id must be numeric", nil)
		return
	}
	removed, err := s.store.RemoveAssetFromCollection(r.Context(), collectionID, assetID)
	if err != nil {
		s.storeError(w, err, "membership")
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "not_found", "membership not found", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateMembershipMetadata patches a placement's display metadata. When
// copy_from_collection is set the metadata is copied from the asset's
// placement in that collection instead; the two forms are exclusive.
func (s *Server) UpdateMembershipMetadata(w http.ResponseWriter, r *http.Request) {
	membershipID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_id", "membership id must be numeric", nil)
		return
	}
	var req membershipUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.CopyFromCollection != nil {
		if req.DisplayName != nil || req.Description != nil || req.SortOrder != nil {
			writeError(w, http.StatusBadRequest, "invalid_payload",
				"copy_from_collection cannot be combined with direct field updates", nil)
			return
		}
		membership, err := s.membershipPlacement(r, membershipID)
		if err != nil {
			s.storeError(w, err, "membership")
			return
		}
		err = s.store.CopyMembershipMetadata(r.Context(), membership.assetID, *req.CopyFromCollection, membership.collectionID)
		if err != nil {
			s.storeError(w, err, "membership")
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}
	err = s.store.UpdateMembershipMetadata(r.Context(), membershipID, store.MembershipMetadata{
		DisplayName: req.DisplayName,
		Description: req.Description,
		SortOrder:   req.SortOrder,
	})
	if err != nil {
		s.storeError(w, err, "membership")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type placement struct {
	assetID      int64
	collectionID int64
}

func (s *Server) membershipPlacement(r *http.Request, membershipID int64) (*placement, error) {
	var row struct {
		AssetID      int64 `db:"asset_id"`
		CollectionID int64 `db:"collection_id"`
	}
	err := s.store.DB().GetContext(r.Context(), &row,
		"SELECT asset_id, collection_id FROM asset_collection_membership WHERE id = ?", membershipID)
	if err != nil {
		return nil, store.ErrNotFound
	}
	return &placement{assetID: row.AssetID, collectionID: row.CollectionID}, nil
}

func (s *Server) CreateAssetGroup(w http.ResponseWriter, r *http.Request) {
	c, ok := s.collectionFromPath(w, r)
	if !ok {
		return
	}
	collectionID := c.ID
	var req groupCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	groupID, err := s.store.CreateAssetGroup(r.Context(), collectionID, store.GroupCreate{
		Name:        req.Name,
		Description: req.Description,
		DisplayMode: req.DisplayMode,
	})
	if err != nil {
		s.storeError(w, err, "asset group")
		return
	}
	group, err := s.store.GetAssetGroup(r.Context(), groupID)
	if err != nil {
		s.storeError(w, err, "asset group")
		return
	}
	writeJSON(w, http.StatusCreated, group)
}

func (s *Server) DeleteAssetGroup(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_id", "group id must be numeric", nil)
		return
	}
	if err := s.store.DeleteAssetGroup(r.Context(), groupID); err != nil {
		s.storeError(w, err, "asset group")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) SetGroupDisplayMode(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_id", "group id must be numeric", nil)
		return
	}
	var req displayModeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if _, err := s.store.GetAssetGroup(r.Context(), groupID); err != nil {
		s.storeError(w, err, "asset group")
		return
	}
	if err := s.store.SetGroupDisplayMode(r.Context(), groupID, req.Mode, req.Composite); err != nil {
		s.storeError(w, err, "display mode")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"display_mode": req.Mode, "composite": req.Composite})
}

// AddAssetToGroup places a membership row into a group. A placement in
// another group is replaced: a membership belongs to at most one group.
func (s *Server) AddAssetToGroup(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_id", "group id must be numeric", nil)
		return
	}
	var req groupAddAssetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	group, err := s.store.GetAssetGroup(r.Context(), groupID)
	if err != nil {
		s.storeError(w, err, "asset group")
		return
	}
	membership, err := s.membershipPlacement(r, req.MembershipID)
	if err != nil {
		s.storeError(w, err, "membership")
		return
	}
	if membership.collectionID != group.CollectionID {
		writeError(w, http.StatusBadRequest, "wrong_collection",
			"membership belongs to a different collection than the group", nil)
		return
	}
	if err := s.store.AddToGroup(r.Context(), groupID, req.MembershipID, req.SortOrder); err != nil {
		s.storeError(w, err, "group membership")
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) RemoveAssetFromGroup(w http.ResponseWriter, r *http.Request) {
	membershipID, err := pathID(r, "membershipID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_id", "membership id must be numeric", nil)
		return
	}
	removed, err := s.store.RemoveFromGroup(r.Context(), membershipID)
	if err != nil {
		s.storeError(w, err, "group membership")
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "not_found", "group membership not found", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) UpdateGroupSortOrder(w http.ResponseWriter, r *http.Request) {
	membershipID, err := pathID(r, "membershipID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_id", "membership id must be numeric", nil)
		return
	}
	var req groupSortOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if _, err := s.store.GroupMembership(r.Context(), membershipID); err != nil {
		s.storeError(w, err, "group membership")
		return
	}
	if err := s.store.UpdateGroupSortOrder(r.Context(), membershipID, req.SortOrder); err != nil {
		s.storeError(w, err, "group membership")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) GetGroupAssets(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_id", "group id must be numeric", nil)
		return
	}
	group, err := s.store.GetAssetGroup(r.Context(), groupID)
	if err != nil {
		s.storeError(w, err, "asset group")
		return
	}
	if err := s.guardProtectedCollection(w, r, group.CollectionID); err != nil {
		return
	}
	assets, err := s.store.GroupAssets(r.Context(), groupID)
	if err != nil {
		s.storeError(w, err, "group assets")
		return
	}
	writeJSON(w, http.StatusOK, assets)
}

func (s *Server) GetCompositeMap(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_id", "group id must be numeric", nil)
		return
	}
	group, err := s.store.GetAssetGroup(r.Context(), groupID)
	if err != nil {
		s.storeError(w, err, "asset group")
		return
	}
	if err := s.guardProtectedCollection(w, r, group.CollectionID); err != nil {
		return
	}
	regions, err := s.gallery.CompositeMap(r.Context(), groupID)
	if err != nil {
		if errors.Is(err, gallery.ErrNotComposite) {
			writeError(w, http.StatusBadRequest, "not_composite", "group is not configured as composite", nil)
			return
		}
		s.storeError(w, err, "composite map")
		return
	}
	writeJSON(w, http.StatusOK, regions)
}

// guardProtectedCollection writes a 401 and returns an error when the
// collection is protected and the caller is anonymous.
func (s *Server) guardProtectedCollection(w http.ResponseWriter, r *http.Request, collectionID int64) error {
	c, err := s.store.GetCollection(r.Context(), collectionID)
	if err != nil {
		s.storeError(w, err, "collection")
		return err
	}
	if c.Protected && !s.isAuthorized(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized", "collection is protected", nil)
		return errProtected
	}
	return nil
}

var errProtected = errors.New("protected collection")

func (s *Server) ListDisplayModes(w http.ResponseWriter, r *http.Request) {
	collection, err := s.store.ListCollectionDisplayModes(r.Context())
	if err != nil {
		s.storeError(w, err, "display modes")
		return
	}
	relationship, err := s.store.ListRelationshipDisplayModes(r.Context())
	if err != nil {
		s.storeError(w, err, "display modes")
		return
	}
	group, err := s.store.ListAssetGroupDisplayModes(r.Context())
	if err != nil {
		s.storeError(w, err, "display modes")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"collection":   collection,
		"relationship": relationship,
		"asset_group":  group,
	})
}

func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing_query", "q parameter is required", nil)
		return
	}
	authorized := s.isAuthorized(r)
	collections, err := s.store.SearchCollections(r.Context(), query, authorized)
	if err != nil {
		s.storeError(w, err, "search")
		return
	}
	assets, err := s.store.SearchAssets(r.Context(), query, authorized)
	if err != nil {
		s.storeError(w, err, "search")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"collections": collections, "assets": assets})
}
