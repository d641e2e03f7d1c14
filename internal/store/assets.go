package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const assetCols = "id, filename, filepath, filetype, filesize, checksum, created_at, updated_at"

func (s *Store) CreateAsset(ctx context.Context, in AssetCreate) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO assets (filename, filepath, filetype, filesize, checksum) VALUES (?, ?, ?, ?, ?)",
		in.Filename, in.Filepath, in.Filetype, in.Filesize, in.Checksum)
	if err != nil {
		return 0, fmt.Errorf("create asset: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) GetAsset(ctx context.Context, id int64) (*Asset, error) {
	var a Asset
	err := s.db.GetContext(ctx, &a, "SELECT "+assetCols+" FROM assets WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// FindAssetsByFilename matches the logical filename, exactly or as a substring.
func (s *Store) FindAssetsByFilename(ctx context.Context, filename string, exact bool) ([]Asset, error) {
	query := "SELECT " + assetCols + " FROM assets WHERE filename = ?"
	arg := filename
	if !exact {
		query = "SELECT " + assetCols + " FROM assets WHERE filename LIKE ?"
		arg = "%" + filename + "%"
	}
	var out []Asset
	if err := s.db.SelectContext(ctx, &out, query, arg); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) FindAssetsByFiletype(ctx context.Context, filetype string) ([]Asset, error) {
	var out []Asset
	if err := s.db.SelectContext(ctx, &out, "SELECT "+assetCols+" FROM assets WHERE filetype = ?", filetype); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) FindAssetByChecksum(ctx context.Context, checksum string) (*Asset, error) {
	var a Asset
	err := s.db.GetContext(ctx, &a, "SELECT "+assetCols+" FROM assets WHERE checksum = ? LIMIT 1", checksum)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) UpdateAssetChecksum(ctx context.Context, id int64, checksum string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE assets SET checksum = ? WHERE id = ?", checksum, id)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		if _, err := s.GetAsset(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// AssetCollections lists every collection an asset is placed in with the
// placement metadata joined in, ordered by collection name.
func (s *Store) AssetCollections(ctx context.Context, assetID int64) ([]AssetCollection, error) {
	var out []AssetCollection
	err := s.db.SelectContext(ctx, &out, `
		SELECT c.id, c.slug, c.name, c.title, c.description, c.protected, c.created_at, c.updated_at,
		       acm.id AS membership_id, acm.display_name, acm.description, acm.sort_order
		FROM collections c
		JOIN asset_collection_membership acm ON c.id = acm.collection_id
		WHERE acm.asset_id = ?
		ORDER BY c.name ASC`, assetID)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteAsset removes the asset's membership rows then the asset row itself,
// in one transaction. It returns the deleted row so the caller can decide
// what to do with the backing file; the row deletion is authoritative.
func (s *Store) DeleteAsset(ctx context.Context, id int64) (*Asset, error) {
	asset, err := s.GetAsset(ctx, id)
	if err != nil {
		return nil, err
	}
	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM asset_collection_membership WHERE asset_id = ?", id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM assets WHERE id = ?", id)
		if err != nil {
			return err
		}
		affected, _ := res.RowsAffected()
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return asset, nil
}
