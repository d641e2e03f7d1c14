//go:build integration

package scenes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/arawak/scenes/internal/auth"
	"github.com/arawak/scenes/internal/config"
	"github.com/arawak/scenes/internal/gallery"
	"github.com/arawak/scenes/internal/httpapi"
	"github.com/arawak/scenes/internal/media"
	"github.com/arawak/scenes/internal/store"
	"github.com/arawak/scenes/migrations"
)

func startMaria(t *testing.T, ctx context.Context) (testcontainers.Container, string) {
	req := testcontainers.ContainerRequest{
		Image:        "mariadb:11.4",
		Env:          map[string]string{"MARIADB_ROOT_PASSWORD": "root", "MARIADB_DATABASE": "scenes", "MARIADB_USER": "scenes", "MARIADB_PASSWORD": "scenes"},
		ExposedPorts: []string{"3306/tcp"},
		WaitingFor:   wait.ForListeningPort("3306/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Fatalf("start mariadb: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "3306/tcp")
	if err != nil {
		t.Fatalf("mapped port: %v", err)
	}
	dsn := fmt.Sprintf("scenes:scenes@tcp(%s:%s)/scenes?parseTime=true&multiStatements=true", host, port.Port())
	return container, dsn
}

func setupStore(t *testing.T, ctx context.Context) (*store.Store, *sqlx.DB) {
	container, dsn := startMaria(t, ctx)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	if err := migrations.Up(dsn); err != nil {
		t.Fatalf("migrations failed: %v", err)
	}
	db, err := sqlx.Connect("mysql", dsn)
	if err != nil {
		t.Fatalf("db connect: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return store.New(db), db
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestStoreSemantics(t *testing.T) {
	ctx := context.Background()
	st, db := setupStore(t, ctx)

	t.Run("collection round trip", func(t *testing.T) {
		id, err := st.CreateCollection(ctx, store.CollectionCreate{
			Slug: "holidays", Name: "Holidays", Title: strPtr("Our Holidays"),
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		c, err := st.GetCollectionBySlug(ctx, "holidays")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if c.ID != id || c.Name != "Holidays" || c.Title == nil || *c.Title != "Our Holidays" {
			t.Fatalf("round trip mismatch: %+v", c)
		}
	})

	t.Run("slug uniqueness", func(t *testing.T) {
		if _, err := st.CreateCollection(ctx, store.CollectionCreate{Slug: "holidays", Name: "Again"}); err != store.ErrDuplicate {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}
	})

	t.Run("reserved slugs refuse deletion", func(t *testing.T) {
		root, err := st.RootCollection(ctx)
		if err != nil {
			t.Fatalf("root: %v", err)
		}
		err = st.DeleteCollection(ctx, root.ID)
		if !errors.Is(err, store.ErrReserved) {
			t.Fatalf("expected ErrReserved, got %v", err)
		}
	})

	t.Run("child ordering by sort order", func(t *testing.T) {
		parentID, err := st.CreateCollection(ctx, store.CollectionCreate{Slug: "ordered", Name: "Ordered"})
		if err != nil {
			t.Fatalf("create parent: %v", err)
		}
		for i, so := range []int{2, 0, 1} {
			childID, err := st.CreateCollection(ctx, store.CollectionCreate{
				Slug: fmt.Sprintf("ord-child-%d", i), Name: fmt.Sprintf("Child %d", i),
			})
			if err != nil {
				t.Fatalf("create child: %v", err)
			}
			opts := store.DefaultChildOptions()
			opts.SortOrder = so
			if _, err := st.AddChild(ctx, parentID, childID, opts); err != nil {
				t.Fatalf("add child: %v", err)
			}
		}
		children, err := st.GetChildren(ctx, parentID)
		if err != nil {
			t.Fatalf("children: %v", err)
		}
		if len(children) != 3 {
			t.Fatalf("child count: got %d", len(children))
		}
		for i, c := range children {
			if c.SortOrder != i {
				t.Fatalf("children not ordered: position %d has sort_order %d", i, c.SortOrder)
			}
		}
		if children[0].DisplayMode == nil || *children[0].DisplayMode != "linked" {
			t.Fatalf("default relationship mode should be linked, got %v", children[0].DisplayMode)
		}
	})

	t.Run("remove child leaves no orphan config", func(t *testing.T) {
		parent, err := st.GetCollectionBySlug(ctx, "ordered")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		child, err := st.GetCollectionBySlug(ctx, "ord-child-0")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		removed, err := st.RemoveChild(ctx, parent.ID, child.ID)
		if err != nil || !removed {
			t.Fatalf("remove child: removed=%v err=%v", removed, err)
		}
		var orphans int
		err = db.Get(&orphans, `
			SELECT COUNT(*) FROM relationship_display_mode_configuration rdmc
			LEFT JOIN collection_relationships cr ON rdmc.relationship_id = cr.id
			WHERE cr.id IS NULL`)
		if err != nil {
			t.Fatalf("count orphans: %v", err)
		}
		if orphans != 0 {
			t.Fatalf("%d orphaned relationship config rows", orphans)
		}
		// the child collection itself survives
		if _, err := st.GetCollection(ctx, child.ID); err != nil {
			t.Fatalf("child should survive unlinking: %v", err)
		}
	})

	t.Run("display mode replace semantics", func(t *testing.T) {
		c, err := st.GetCollectionBySlug(ctx, "holidays")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if err := st.SetCollectionDisplayMode(ctx, c.ID, "grid"); err != nil {
			t.Fatalf("set grid: %v", err)
		}
		if err := st.SetCollectionDisplayMode(ctx, c.ID, "tabular"); err != nil {
			t.Fatalf("set tabular: %v", err)
		}
		mode, err := st.CollectionDisplayMode(ctx, c.ID)
		if err != nil {
			t.Fatalf("mode: %v", err)
		}
		if mode != "tabular" {
			t.Fatalf("mode: got %q, want tabular", mode)
		}
		var rows int
		if err := db.Get(&rows, "SELECT COUNT(*) FROM collection_display_mode_configuration WHERE collection_id = ?", c.ID); err != nil {
			t.Fatalf("count: %v", err)
		}
		if rows != 1 {
			t.Fatalf("replace semantics violated: %d config rows", rows)
		}
		if err := st.SetCollectionDisplayMode(ctx, c.ID, "no-such-mode"); !errors.Is(err, store.ErrUnknownMode) {
			t.Fatalf("expected ErrUnknownMode, got %v", err)
		}
	})

	t.Run("membership metadata and grouping", func(t *testing.T) {
		collID, err := st.CreateCollection(ctx, store.CollectionCreate{Slug: "grouped", Name: "Grouped"})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		var memberships []int64
		for i := 0; i < 3; i++ {
			assetID, err := st.CreateAsset(ctx, store.AssetCreate{
				Filename: fmt.Sprintf("file%d.jpg", i), Filepath: fmt.Sprintf("/tmp/file%d.jpg", i),
				Filetype: "image/jpeg", Filesize: 100, Checksum: fmt.Sprintf("sum%d", i),
			})
			if err != nil {
				t.Fatalf("create asset: %v", err)
			}
			mID, err := st.AddAssetToCollection(ctx, collID, assetID, store.MembershipMetadata{
				DisplayName: strPtr(fmt.Sprintf("Photo %d", i)), SortOrder: intPtr(i),
			})
			if err != nil {
				t.Fatalf("add membership: %v", err)
			}
			memberships = append(memberships, mID)
		}

		groupID, err := st.CreateAssetGroup(ctx, collID, store.GroupCreate{Name: strPtr("pair")})
		if err != nil {
			t.Fatalf("create group: %v", err)
		}
		if err := st.AddToGroup(ctx, groupID, memberships[1], 0); err != nil {
			t.Fatalf("add to group: %v", err)
		}
		if err := st.AddToGroup(ctx, groupID, memberships[2], 1); err != nil {
			t.Fatalf("add to group: %v", err)
		}

		rows, err := st.CollectionAssets(ctx, collID)
		if err != nil {
			t.Fatalf("collection assets: %v", err)
		}
		groups, ungrouped := gallery.PartitionAssets(rows)
		if len(ungrouped) != 1 || len(groups) != 1 || len(groups[0].Assets) != 2 {
			t.Fatalf("partition: %d groups, %d ungrouped", len(groups), len(ungrouped))
		}

		mode, composite, err := st.GroupDisplayMode(ctx, groupID)
		if err != nil {
			t.Fatalf("group mode: %v", err)
		}
		if mode != "linear" || composite {
			t.Fatalf("default group mode: got %q composite=%v", mode, composite)
		}
		if err := st.SetGroupDisplayMode(ctx, groupID, "side-by-side", true); err != nil {
			t.Fatalf("set group mode: %v", err)
		}
		mode, composite, err = st.GroupDisplayMode(ctx, groupID)
		if err != nil {
			t.Fatalf("group mode: %v", err)
		}
		if mode != "side-by-side" || !composite {
			t.Fatalf("group mode after update: %q composite=%v", mode, composite)
		}

		// delete the group; members stay placed, just ungrouped
		if err := st.DeleteAssetGroup(ctx, groupID); err != nil {
			t.Fatalf("delete group: %v", err)
		}
		rows, err = st.CollectionAssets(ctx, collID)
		if err != nil {
			t.Fatalf("collection assets: %v", err)
		}
		groups, ungrouped = gallery.PartitionAssets(rows)
		if len(groups) != 0 || len(ungrouped) != 3 {
			t.Fatalf("after group delete: %d groups, %d ungrouped", len(groups), len(ungrouped))
		}
	})

	t.Run("group placement replaces atomically", func(t *testing.T) {
		coll, err := st.GetCollectionBySlug(ctx, "grouped")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		rows, err := st.CollectionAssets(ctx, coll.ID)
		if err != nil || len(rows) == 0 {
			t.Fatalf("assets: %v", err)
		}
		first, err := st.CreateAssetGroup(ctx, coll.ID, store.GroupCreate{Name: strPtr("from")})
		if err != nil {
			t.Fatalf("create group: %v", err)
		}
		second, err := st.CreateAssetGroup(ctx, coll.ID, store.GroupCreate{Name: strPtr("to")})
		if err != nil {
			t.Fatalf("create group: %v", err)
		}
		m := rows[0].MembershipID
		if err := st.AddToGroup(ctx, first, m, 0); err != nil {
			t.Fatalf("add: %v", err)
		}
		if err := st.AddToGroup(ctx, second, m, 0); err != nil {
			t.Fatalf("move: %v", err)
		}
		p, err := st.GroupMembership(ctx, m)
		if err != nil {
			t.Fatalf("placement: %v", err)
		}
		if p.ID != second {
			t.Fatalf("membership in group %d, want %d", p.ID, second)
		}
		var n int
		if err := db.Get(&n, "SELECT COUNT(*) FROM asset_group_membership WHERE membership_id = ?", m); err != nil {
			t.Fatalf("count: %v", err)
		}
		if n != 1 {
			t.Fatalf("membership placed in %d groups", n)
		}
		for _, g := range []int64{first, second} {
			if err := st.DeleteAssetGroup(ctx, g); err != nil {
				t.Fatalf("cleanup: %v", err)
			}
		}
	})

	t.Run("copy membership metadata", func(t *testing.T) {
		srcID, err := st.CreateCollection(ctx, store.CollectionCreate{Slug: "meta-src", Name: "Src"})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		dstID, err := st.CreateCollection(ctx, store.CollectionCreate{Slug: "meta-dst", Name: "Dst"})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		assetID, err := st.CreateAsset(ctx, store.AssetCreate{
			Filename: "meta.jpg", Filepath: "/tmp/meta.jpg", Filetype: "image/jpeg", Filesize: 1, Checksum: "meta",
		})
		if err != nil {
			t.Fatalf("create asset: %v", err)
		}
		if _, err := st.AddAssetToCollection(ctx, srcID, assetID, store.MembershipMetadata{
			DisplayName: strPtr("Curated"), Description: strPtr("hand written"),
		}); err != nil {
			t.Fatalf("add src: %v", err)
		}
		if _, err := st.AddAssetToCollection(ctx, dstID, assetID, store.MembershipMetadata{}); err != nil {
			t.Fatalf("add dst: %v", err)
		}
		if err := st.CopyMembershipMetadata(ctx, assetID, srcID, dstID); err != nil {
			t.Fatalf("copy: %v", err)
		}
		placements, err := st.AssetCollections(ctx, assetID)
		if err != nil {
			t.Fatalf("placements: %v", err)
		}
		for _, p := range placements {
			if p.Collection.ID == dstID {
				if p.DisplayName == nil || *p.DisplayName != "Curated" {
					t.Fatalf("metadata not copied: %+v", p)
				}
			}
		}
	})

	t.Run("clone independence", func(t *testing.T) {
		src, err := st.GetCollectionBySlug(ctx, "holidays")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		cloneID, err := st.CloneCollection(ctx, src.ID, store.CloneOverrides{})
		if err != nil {
			t.Fatalf("clone: %v", err)
		}
		clone, err := st.GetCollection(ctx, cloneID)
		if err != nil {
			t.Fatalf("get clone: %v", err)
		}
		if clone.Slug != "holidays-clone" || clone.Name != "Holidays (Clone)" {
			t.Fatalf("derived clone identity: %+v", clone)
		}
		mode, err := st.CollectionDisplayMode(ctx, cloneID)
		if err != nil || mode != "tabular" {
			t.Fatalf("clone should copy the display mode: %q %v", mode, err)
		}
		// mutating the clone leaves the source untouched
		if err := st.UpdateCollection(ctx, cloneID, store.CollectionUpdate{Name: strPtr("Renamed")}); err != nil {
			t.Fatalf("update clone: %v", err)
		}
		src, err = st.GetCollection(ctx, src.ID)
		if err != nil || src.Name != "Holidays" {
			t.Fatalf("source mutated by clone edit: %+v %v", src, err)
		}
	})

	t.Run("clone with assets copies groups and metadata", func(t *testing.T) {
		src, err := st.GetCollectionBySlug(ctx, "grouped")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		// rebuild a group so the deep clone has one to copy
		rows, err := st.CollectionAssets(ctx, src.ID)
		if err != nil {
			t.Fatalf("assets: %v", err)
		}
		groupID, err := st.CreateAssetGroup(ctx, src.ID, store.GroupCreate{Name: strPtr("deep"), DisplayMode: "grid"})
		if err != nil {
			t.Fatalf("group: %v", err)
		}
		if err := st.AddToGroup(ctx, groupID, rows[0].MembershipID, 0); err != nil {
			t.Fatalf("add: %v", err)
		}

		cloneID, err := st.CloneCollectionWithAssets(ctx, src.ID, store.CloneOverrides{
			Slug: strPtr("grouped-deep"), Name: strPtr("Grouped Deep"),
		})
		if err != nil {
			t.Fatalf("deep clone: %v", err)
		}
		cloneRows, err := st.CollectionAssets(ctx, cloneID)
		if err != nil {
			t.Fatalf("clone assets: %v", err)
		}
		if len(cloneRows) != len(rows) {
			t.Fatalf("clone asset count: got %d, want %d", len(cloneRows), len(rows))
		}
		groups, _ := gallery.PartitionAssets(cloneRows)
		if len(groups) != 1 || groups[0].Name == nil || *groups[0].Name != "deep" {
			t.Fatalf("clone groups: %+v", groups)
		}
		if groups[0].ID == groupID {
			t.Fatalf("clone must own new group rows, not share the source's")
		}
		mode, _, err := st.GroupDisplayMode(ctx, groups[0].ID)
		if err != nil || mode != "grid" {
			t.Fatalf("clone group mode: %q %v", mode, err)
		}
	})

	t.Run("failed deep clone rolls back completely", func(t *testing.T) {
		src, err := st.GetCollectionBySlug(ctx, "grouped")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		var collections, groups, memberships int
		if err := db.Get(&collections, "SELECT COUNT(*) FROM collections"); err != nil {
			t.Fatalf("count: %v", err)
		}
		if err := db.Get(&groups, "SELECT COUNT(*) FROM asset_groups"); err != nil {
			t.Fatalf("count: %v", err)
		}
		if err := db.Get(&memberships, "SELECT COUNT(*) FROM asset_collection_membership"); err != nil {
			t.Fatalf("count: %v", err)
		}

		// slug collision surfaces as ErrDuplicate before any asset copying
		_, err = st.CloneCollectionWithAssets(ctx, src.ID, store.CloneOverrides{Slug: strPtr("holidays")})
		if !errors.Is(err, store.ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}

		var after int
		if err := db.Get(&after, "SELECT COUNT(*) FROM collections"); err != nil {
			t.Fatalf("count: %v", err)
		}
		if after != collections {
			t.Fatalf("collections leaked: %d -> %d", collections, after)
		}
		if err := db.Get(&after, "SELECT COUNT(*) FROM asset_groups"); err != nil {
			t.Fatalf("count: %v", err)
		}
		if after != groups {
			t.Fatalf("groups leaked: %d -> %d", groups, after)
		}
		if err := db.Get(&after, "SELECT COUNT(*) FROM asset_collection_membership"); err != nil {
			t.Fatalf("count: %v", err)
		}
		if after != memberships {
			t.Fatalf("memberships leaked: %d -> %d", memberships, after)
		}
	})

	t.Run("cascade delete cleans the graph", func(t *testing.T) {
		collID, err := st.CreateCollection(ctx, store.CollectionCreate{Slug: "doomed", Name: "Doomed"})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		assetID, err := st.CreateAsset(ctx, store.AssetCreate{
			Filename: "doomed.jpg", Filepath: "/tmp/doomed.jpg", Filetype: "image/jpeg", Filesize: 1, Checksum: "doom",
		})
		if err != nil {
			t.Fatalf("asset: %v", err)
		}
		if _, err := st.AddAssetToCollection(ctx, collID, assetID, store.MembershipMetadata{}); err != nil {
			t.Fatalf("add: %v", err)
		}
		if err := st.SetCollectionDisplayMode(ctx, collID, "grid"); err != nil {
			t.Fatalf("mode: %v", err)
		}
		if err := st.DeleteCollection(ctx, collID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		var n int
		if err := db.Get(&n, "SELECT COUNT(*) FROM asset_collection_membership WHERE collection_id = ?", collID); err != nil {
			t.Fatalf("count: %v", err)
		}
		if n != 0 {
			t.Fatalf("memberships survived the cascade")
		}
		// the asset itself survives
		if _, err := st.GetAsset(ctx, assetID); err != nil {
			t.Fatalf("asset should survive collection deletion: %v", err)
		}
	})
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHTTPEndToEnd(t *testing.T) {
	ctx := context.Background()
	st, _ := setupStore(t, ctx)

	root := t.TempDir()
	cfg := &config.Config{
		Bind:           ":0",
		StorageRoot:    root,
		MaxUploadBytes: config.DefaultMaxUploadBytes,
		TokenSecret:    "integration-secret",
		TokenTTL:       time.Hour,
		SwaggerUIPath:  "/swagger",
		OpenAPIPath:    "/openapi.yaml",
	}
	logger := testLogger()
	mediaMgr := media.NewManager(root)
	authSvc := auth.New(st, cfg.TokenSecret, cfg.TokenTTL)
	gallerySvc := gallery.New(st, mediaMgr, logger)

	if _, err := authSvc.InitializeAdmin(ctx, "admin", "hunter2"); err != nil {
		t.Fatalf("init admin: %v", err)
	}

	ts := httptest.NewServer(httpapi.NewRouter(cfg, st, mediaMgr, gallerySvc, authSvc, logger))
	t.Cleanup(ts.Close)

	token := obtainToken(t, ts.URL, "admin", "hunter2")

	// create a protected collection under root
	collID := postJSON(t, ts.URL+"/api/collections", token, map[string]any{
		"slug": "private", "name": "Private", "protected": true,
	}, http.StatusCreated)["id"]
	postJSON(t, ts.URL+"/api/collections/root/children", token, map[string]any{
		"child_id": collID,
	}, http.StatusCreated)

	// anonymous callers see a truncated stub; the token opens it up
	hierarchy := getJSON(t, ts.URL+"/api/collections/hierarchy", "", http.StatusOK)
	kids := hierarchy["children"].([]any)
	found := false
	for _, k := range kids {
		node := k.(map[string]any)
		if node["slug"] == "private" {
			found = true
			if _, ok := node["title"]; ok {
				t.Fatalf("protected title leaked: %+v", node)
			}
		}
	}
	if !found {
		t.Fatalf("protected stub missing from anonymous hierarchy")
	}
	doRequest(t, "GET", ts.URL+"/api/collections/private", "", nil, http.StatusUnauthorized)
	getJSON(t, ts.URL+"/api/collections/private", token, http.StatusOK)

	// upload lands in the asset pool
	assetID := uploadFile(t, ts.URL+"/api/assets", token, "sample.txt", []byte("sample content"))
	poolView := getJSON(t, ts.URL+"/api/collections/assets", token, http.StatusOK)
	ungrouped := poolView["ungrouped_assets"].([]any)
	if len(ungrouped) != 1 {
		t.Fatalf("upload should land in the asset pool, got %d entries", len(ungrouped))
	}

	// curating the asset into a protected collection hides it from anonymous
	// callers, even though the pool placement is unprotected
	doRequest(t, "GET", fmt.Sprintf("%s/api/assets/%v", ts.URL, assetID), "", nil, http.StatusOK)
	postJSON(t, ts.URL+"/api/collections/private/assets", token, map[string]any{
		"asset_id": assetID,
	}, http.StatusCreated)
	doRequest(t, "GET", fmt.Sprintf("%s/api/assets/%v", ts.URL, assetID), "", nil, http.StatusUnauthorized)
	doRequest(t, "GET", fmt.Sprintf("%s/api/assets/%v/file", ts.URL, assetID), "", nil, http.StatusUnauthorized)
	getJSON(t, fmt.Sprintf("%s/api/assets/%v", ts.URL, assetID), token, http.StatusOK)
	content := doRequest(t, "GET", fmt.Sprintf("%s/api/assets/%v/file", ts.URL, assetID), token, nil, http.StatusOK)
	if !bytes.Equal(content, []byte("sample content")) {
		t.Fatalf("file content mismatch: %q", content)
	}

	// integrity check on the fresh upload
	integrity := getJSON(t, fmt.Sprintf("%s/api/assets/%v/integrity", ts.URL, assetID), token, http.StatusOK)
	if integrity["intact"] != true {
		t.Fatalf("fresh upload should be intact: %+v", integrity)
	}

	// reserved collections refuse deletion and keep their slugs
	doRequest(t, "DELETE", ts.URL+"/api/collections/root", token, nil, http.StatusForbidden)
	doRequest(t, "PATCH", ts.URL+"/api/collections/assets", token, []byte(`{"slug":"pool"}`), http.StatusForbidden)

	// anonymous admin calls bounce
	doRequest(t, "POST", ts.URL+"/api/collections", "", []byte(`{"slug":"nope","name":"Nope"}`), http.StatusUnauthorized)

	// search finds the collection for the admin but hides it from anonymous callers
	results := getJSON(t, ts.URL+"/api/search?q=Private", token, http.StatusOK)
	if len(results["collections"].([]any)) != 1 {
		t.Fatalf("admin search should find the protected collection")
	}
	results = getJSON(t, ts.URL+"/api/search?q=Private", "", http.StatusOK)
	if hits, ok := results["collections"].([]any); ok && len(hits) != 0 {
		t.Fatalf("anonymous search leaked a protected collection")
	}

	readyz(t, ts.URL+"/readyz")
}

func obtainToken(t *testing.T, baseURL, username, password string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp, err := http.Post(baseURL+"/api/auth/token", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("token request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("token status: %d", resp.StatusCode)
	}
	var out map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("token decode: %v", err)
	}
	return out["token"]
}

func doRequest(t *testing.T, method, url, token string, body []byte, wantStatus int) []byte {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s: status %d, want %d: %s", method, url, resp.StatusCode, wantStatus, data)
	}
	return data
}

func postJSON(t *testing.T, url, token string, payload map[string]any, wantStatus int) map[string]any {
	t.Helper()
	body, _ := json.Marshal(payload)
	data := doRequest(t, "POST", url, token, body, wantStatus)
	var out map[string]any
	if len(data) > 0 {
		if err := json.Unmarshal(data, &out); err != nil {
			t.Fatalf("decode response: %v: %s", err, data)
		}
	}
	return out
}

func getJSON(t *testing.T, url, token string, wantStatus int) map[string]any {
	t.Helper()
	data := doRequest(t, "GET", url, token, nil, wantStatus)
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode response: %v: %s", err, data)
	}
	return out
}

func uploadFile(t *testing.T, url, token, filename string, content []byte) any {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	w, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := w.Write(content); err != nil {
		t.Fatalf("write: %v", err)
	}
	mw.Close()

	req, err := http.NewRequest("POST", url, &buf)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload status %d: %s", resp.StatusCode, data)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out["id"]
}

func readyz(t *testing.T, url string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("readyz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz status: %d", resp.StatusCode)
	}
}
