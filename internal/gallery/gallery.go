package gallery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/arawak/scenes/internal/media"
	"github.com/arawak/scenes/internal/store"
)

// DefaultDisplayMode is used when a collection has no configured mode.
const DefaultDisplayMode = "linear"

// AssetPoolSlug is the flat pool collection every upload lands in.
const AssetPoolSlug = "assets"

// Service assembles collection views and owns the asset lifecycle that spans
// the relational store and the filesystem.
type Service struct {
	store  *store.Store
	media  *media.Manager
	logger *slog.Logger
}

func New(st *store.Store, m *media.Manager, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stdout, nil))
	}
	return &Service{store: st, media: m, logger: logger}
}

// AssetGroupView is one group of a collection's assets in presentation order.
type AssetGroupView struct {
	ID          int64                   `json:"id"`
	Name        *string                 `json:"name"`
	Description *string                 `json:"description"`
	Assets      []store.CollectionAsset `json:"assets"`
}

type CollectionView struct {
	Collection      *store.Collection        `json:"collection"`
	Parents         []store.CollectionParent `json:"parents"`
	Children        []store.CollectionChild  `json:"children"`
	DisplayMode     string                   `json:"display_mode"`
	AssetGroups     []AssetGroupView         `json:"asset_groups"`
	UngroupedAssets []store.CollectionAsset  `json:"ungrouped_assets"`
}

// PartitionAssets splits the flat asset listing into groups (ordered by
// first-seen group id, members in query order) and the ungrouped remainder.
// Every input row lands in exactly one bucket.
func PartitionAssets(rows []store.CollectionAsset) ([]AssetGroupView, []store.CollectionAsset) {
	groups := []AssetGroupView{}
	index := map[int64]int{}
	ungrouped := []store.CollectionAsset{}

	for _, row := range rows {
		if row.GroupID == nil {
			ungrouped = append(ungrouped, row)
			continue
		}
		i, seen := index[*row.GroupID]
		if !seen {
			groups = append(groups, AssetGroupView{
				ID:          *row.GroupID,
				Name:        row.GroupName,
				Description: row.GroupDescription,
			})
			i = len(groups) - 1
			index[*row.GroupID] = i
		}
		groups[i].Assets = append(groups[i].Assets, row)
	}
	return groups, ungrouped
}

// CollectionView assembles everything a collection page needs: the row, its
// parents for breadcrumbs, its children, the display mode and the partitioned
// asset listing.
func (s *Service) CollectionView(ctx context.Context, slug string) (*CollectionView, error) {
	c, err := s.store.GetCollectionBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	parents, err := s.store.GetParents(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	children, err := s.store.GetChildren(ctx, c.ID)
	if err != nil {
		return nil, err
	}

	mode, err := s.store.CollectionDisplayMode(ctx, c.ID)
	if errors.Is(err, store.ErrNotFound) {
		mode = DefaultDisplayMode
	} else if err != nil {
		return nil, err
	}

	rows, err := s.store.CollectionAssets(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	groups, ungrouped := PartitionAssets(rows)

	return &CollectionView{
		Collection:      c,
		Parents:         parents,
		Children:        children,
		DisplayMode:     mode,
		AssetGroups:     groups,
		UngroupedAssets: ungrouped,
	}, nil
}

// CreateFromFile ingests a source file into managed storage and records the
// asset, placing it in the default asset pool. The copy is not rolled back if
// the insert fails afterwards; the orphaned file is logged and left behind.
func (s *Service) CreateFromFile(ctx context.Context, sourcePath, filename string) (int64, error) {
	res, err := s.media.Ingest(sourcePath, filename)
	if err != nil {
		return 0, err
	}
	return s.persist(ctx, res)
}

// Upload streams an upload into managed storage and records the asset.
func (s *Service) Upload(ctx context.Context, r io.Reader, filename string, maxBytes int64) (int64, error) {
	res, err := s.media.SaveUpload(r, filename, maxBytes)
	if err != nil {
		return 0, err
	}
	return s.persist(ctx, res)
}

func (s *Service) persist(ctx context.Context, res *media.IngestResult) (int64, error) {
	assetID, err := s.store.CreateAsset(ctx, store.AssetCreate{
		Filename: res.Filename,
		Filepath: res.Filepath,
		Filetype: res.Filetype,
		Filesize: res.Filesize,
		Checksum: res.Checksum,
	})
	if err != nil {
		s.logger.Error("asset insert failed after copy, file orphaned",
			"filepath", res.Filepath, "error", err)
		return 0, fmt.Errorf("persist asset: %w", err)
	}

	pool, err := s.store.GetCollectionBySlug(ctx, AssetPoolSlug)
	if err != nil {
		s.logger.Warn("asset pool collection missing, skipping default placement", "error", err)
		return assetID, nil
	}
	if _, err := s.store.AddAssetToCollection(ctx, pool.ID, assetID, store.MembershipMetadata{}); err != nil {
		return 0, fmt.Errorf("add to asset pool: %w", err)
	}
	return assetID, nil
}

// DeleteAsset removes the asset's rows and, when deleteFile is set, the
// backing file. The row deletion is authoritative: an unlink failure is
// logged and the file stays behind as an orphan.
func (s *Service) DeleteAsset(ctx context.Context, id int64, deleteFile bool) error {
	asset, err := s.store.DeleteAsset(ctx, id)
	if err != nil {
		return err
	}
	if deleteFile {
		if err := s.media.Remove(asset.Filepath); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Error("failed to delete asset file", "filepath", asset.Filepath, "error", err)
		}
	}
	return nil
}

// VerifyIntegrity recomputes the stored file's checksum and compares it to
// the recorded one. A missing file reports false, not an error.
func (s *Service) VerifyIntegrity(ctx context.Context, id int64) (bool, error) {
	asset, err := s.store.GetAsset(ctx, id)
	if err != nil {
		return false, err
	}
	return media.Verify(asset.Filepath, asset.Checksum)
}

// UpdateChecksum re-reads the backing file and stores its current checksum.
func (s *Service) UpdateChecksum(ctx context.Context, id int64) error {
	asset, err := s.store.GetAsset(ctx, id)
	if err != nil {
		return err
	}
	sum, err := media.Checksum(asset.Filepath)
	if err != nil {
		return fmt.Errorf("recompute checksum: %w", err)
	}
	return s.store.UpdateAssetChecksum(ctx, id, sum)
}
