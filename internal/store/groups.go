package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// Group membership operations live here once and serve both the collection
// and the asset side of the API. A membership row belongs to at most one
// group at a time; AddToGroup replaces any prior placement atomically.

func (s *Store) GetAssetGroup(ctx context.Context, groupID int64) (*AssetGroup, error) {
	var g AssetGroup
	err := s.db.GetContext(ctx, &g, "SELECT id, collection_id, name, description FROM asset_groups WHERE id = ?", groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *Store) CollectionAssetGroups(ctx context.Context, collectionID int64) ([]AssetGroup, error) {
	var out []AssetGroup
	err := s.db.SelectContext(ctx, &out,
		"SELECT id, collection_id, name, description FROM asset_groups WHERE collection_id = ? ORDER BY id", collectionID)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteAssetGroup removes the group; memberships and its configuration row
// cascade. The member assets stay in the collection, just ungrouped.
func (s *Store) DeleteAssetGroup(ctx context.Context, groupID int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM asset_groups WHERE id = ?", groupID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// AddToGroup places a membership row in the group. A prior placement in any
// group is removed in the same transaction, so a failure never leaves the
// membership ungrouped.
func (s *Store) AddToGroup(ctx context.Context, groupID, membershipID int64, sortOrder int) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM asset_group_membership WHERE membership_id = ?", membershipID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO asset_group_membership (group_id, membership_id, sort_order) VALUES (?, ?, ?)",
			groupID, membershipID, sortOrder)
		return err
	})
}

func (s *Store) RemoveFromGroup(ctx context.Context, membershipID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM asset_group_membership WHERE membership_id = ?", membershipID)
	if err != nil {
		return false, err
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

func (s *Store) UpdateGroupSortOrder(ctx context.Context, membershipID int64, sortOrder int) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE asset_group_membership SET sort_order = ? WHERE membership_id = ?", sortOrder, membershipID)
	return err
}

// GroupMembership returns the group a membership row is placed in, or
// ErrNotFound when it is ungrouped.
func (s *Store) GroupMembership(ctx context.Context, membershipID int64) (*AssetGroupPlacement, error) {
	var p AssetGroupPlacement
	err := s.db.GetContext(ctx, &p, `
		SELECT ag.id, ag.collection_id, ag.name, ag.description, agm.sort_order
		FROM asset_groups ag
		JOIN asset_group_membership agm ON ag.id = agm.group_id
		WHERE agm.membership_id = ?`, membershipID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// AssetGroups lists every group an asset belongs to across all of its
// collection placements.
func (s *Store) AssetGroups(ctx context.Context, assetID int64) ([]AssetGroupPlacement, error) {
	var out []AssetGroupPlacement
	err := s.db.SelectContext(ctx, &out, `
		SELECT ag.id, ag.collection_id, ag.name, ag.description, agm.sort_order
		FROM asset_groups ag
		JOIN asset_group_membership agm ON ag.id = agm.group_id
		JOIN asset_collection_membership acm ON agm.membership_id = acm.id
		WHERE acm.asset_id = ?
		ORDER BY ag.collection_id, ag.id`, assetID)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) GroupAssets(ctx context.Context, groupID int64) ([]GroupAsset, error) {
	var out []GroupAsset
	err := s.db.SelectContext(ctx, &out, `
		SELECT a.id, a.filename, a.filepath, a.filetype, a.filesize, a.checksum, a.created_at, a.updated_at,
		       acm.id AS membership_id, acm.display_name, acm.description,
		       agm.sort_order AS group_sort_order
		FROM assets a
		JOIN asset_collection_membership acm ON a.id = acm.asset_id
		JOIN asset_group_membership agm ON acm.id = agm.membership_id
		WHERE agm.group_id = ?
		ORDER BY agm.sort_order ASC, agm.id ASC`, groupID)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) SetGroupDisplayMode(ctx context.Context, groupID int64, mode string, composite bool) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		return setModeTx(ctx, tx, assetGroupModes, groupID, mode, composite)
	})
}

// GroupDisplayMode returns the group's mode name and composite flag;
// ErrNotFound when the group has no configured mode.
func (s *Store) GroupDisplayMode(ctx context.Context, groupID int64) (string, bool, error) {
	return s.groupMode(ctx, s.db, groupID)
}
