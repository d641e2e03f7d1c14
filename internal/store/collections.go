package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

const collectionCols = "id, slug, name, title, description, protected, created_at, updated_at"

func (s *Store) CreateCollection(ctx context.Context, in CollectionCreate) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO collections (slug, name, title, description, protected) VALUES (?, ?, ?, ?, ?)",
		in.Slug, in.Name, in.Title, in.Description, in.Protected)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrDuplicate
		}
		return 0, fmt.Errorf("create collection: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) fetchCollection(ctx context.Context, q sqlx.QueryerContext, where string, arg any) (*Collection, error) {
	var c Collection
	err := sqlx.GetContext(ctx, q, &c, "SELECT "+collectionCols+" FROM collections WHERE "+where, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) GetCollection(ctx context.Context, id int64) (*Collection, error) {
	return s.fetchCollection(ctx, s.db, "id = ?", id)
}

func (s *Store) GetCollectionBySlug(ctx context.Context, slug string) (*Collection, error) {
	return s.fetchCollection(ctx, s.db, "slug = ?", slug)
}

// RootCollection returns the single entry point of the hierarchy.
func (s *Store) RootCollection(ctx context.Context) (*Collection, error) {
	return s.GetCollectionBySlug(ctx, "root")
}

func (s *Store) ListCollections(ctx context.Context) ([]Collection, error) {
	var out []Collection
	if err := s.db.SelectContext(ctx, &out, "SELECT "+collectionCols+" FROM collections ORDER BY name ASC"); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) UpdateCollection(ctx context.Context, id int64, upd CollectionUpdate) error {
	setParts := []string{}
	args := []any{}
	if upd.Slug != nil {
		setParts = append(setParts, "slug = ?")
		args = append(args, *upd.Slug)
	}
	if upd.Name != nil {
		setParts = append(setParts, "name = ?")
		args = append(args, *upd.Name)
	}
	if upd.Title != nil {
		setParts = append(setParts, "title = ?")
		args = append(args, *upd.Title)
	}
	if upd.Description != nil {
		setParts = append(setParts, "description = ?")
		args = append(args, *upd.Description)
	}
	if upd.Protected != nil {
		setParts = append(setParts, "protected = ?")
		args = append(args, *upd.Protected)
	}
	if len(setParts) == 0 {
		return nil
	}
	args = append(args, id)
	res, err := s.db.ExecContext(ctx, "UPDATE collections SET "+strings.Join(setParts, ", ")+" WHERE id = ?", args...)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("update collection: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		// MySQL reports zero affected rows for no-op updates too, so confirm
		// the row actually exists before calling it missing.
		if _, err := s.GetCollection(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// DeleteCollection removes a collection. Relationship, membership, group and
// configuration rows go with it via cascade. The root and assets collections
// are refused regardless of caller permissions.
func (s *Store) DeleteCollection(ctx context.Context, id int64) error {
	c, err := s.GetCollection(ctx, id)
	if err != nil {
		return err
	}
	if IsReservedSlug(c.Slug) {
		return fmt.Errorf("%w: %s", ErrReserved, c.Slug)
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM collections WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// AddChild links child under parent. The relationship row and its display
// mode configuration row are written in one transaction.
func (s *Store) AddChild(ctx context.Context, parentID, childID int64, opts ChildOptions) (int64, error) {
	var relationshipID int64
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO collection_relationships (parent_id, child_id, show_metadata, sort_order) VALUES (?, ?, ?, ?)",
			parentID, childID, opts.ShowMetadata, opts.SortOrder)
		if err != nil {
			return fmt.Errorf("insert relationship: %w", err)
		}
		relationshipID, err = res.LastInsertId()
		if err != nil {
			return err
		}
		return setModeTx(ctx, tx, relationshipModes, relationshipID, opts.DisplayMode, false)
	})
	if err != nil {
		return 0, err
	}
	return relationshipID, nil
}

// RemoveChild deletes the parent->child relationship rows together with their
// display mode configuration, so no orphaned config rows are left behind.
func (s *Store) RemoveChild(ctx context.Context, parentID, childID int64) (bool, error) {
	var removed bool
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE rdmc FROM relationship_display_mode_configuration rdmc
			JOIN collection_relationships cr ON rdmc.relationship_id = cr.id
			WHERE cr.parent_id = ? AND cr.child_id = ?`, parentID, childID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			"DELETE FROM collection_relationships WHERE parent_id = ? AND child_id = ?", parentID, childID)
		if err != nil {
			return err
		}
		affected, _ := res.RowsAffected()
		removed = affected > 0
		return nil
	})
	return removed, err
}

func (s *Store) UpdateRelationship(ctx context.Context, relationshipID int64, upd RelationshipUpdate) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		setParts := []string{}
		args := []any{}
		if upd.ShowMetadata != nil {
			setParts = append(setParts, "show_metadata = ?")
			args = append(args, *upd.ShowMetadata)
		}
		if upd.SortOrder != nil {
			setParts = append(setParts, "sort_order = ?")
			args = append(args, *upd.SortOrder)
		}
		if len(setParts) > 0 {
			args = append(args, relationshipID)
			if _, err := tx.ExecContext(ctx,
				"UPDATE collection_relationships SET "+strings.Join(setParts, ", ")+" WHERE id = ?", args...); err != nil {
				return err
			}
		}
		if upd.DisplayMode != nil {
			return setModeTx(ctx, tx, relationshipModes, relationshipID, *upd.DisplayMode, false)
		}
		return nil
	})
}

func (s *Store) GetParents(ctx context.Context, collectionID int64) ([]CollectionParent, error) {
	var out []CollectionParent
	err := s.db.SelectContext(ctx, &out, `
		SELECT c.id, c.slug, c.name, c.title, c.description, c.protected, c.created_at, c.updated_at,
		       cr.id AS relationship_id, cr.show_metadata, cr.sort_order
		FROM collections c
		JOIN collection_relationships cr ON c.id = cr.parent_id
		WHERE cr.child_id = ?
		ORDER BY cr.sort_order ASC, cr.id ASC`, collectionID)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetChildren lists child collections ordered by sort_order with insertion
// order breaking ties. The relationship display mode rides along so a hidden
// mode can be interpreted by the presentation layer; it is not filtered here.
func (s *Store) GetChildren(ctx context.Context, collectionID int64) ([]CollectionChild, error) {
	var out []CollectionChild
	err := s.db.SelectContext(ctx, &out, `
		SELECT c.id, c.slug, c.name, c.title, c.description, c.protected, c.created_at, c.updated_at,
		       cr.id AS relationship_id, cr.show_metadata, cr.sort_order,
		       rdm.name AS display_mode
		FROM collections c
		JOIN collection_relationships cr ON c.id = cr.child_id
		LEFT JOIN relationship_display_mode_configuration rdmc ON cr.id = rdmc.relationship_id
		LEFT JOIN relationship_display_modes rdm ON rdmc.display_mode_id = rdm.id
		WHERE cr.parent_id = ?
		ORDER BY cr.sort_order ASC, cr.id ASC`, collectionID)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) SetCollectionDisplayMode(ctx context.Context, collectionID int64, mode string) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		return setModeTx(ctx, tx, collectionModes, collectionID, mode, false)
	})
}

// CollectionDisplayMode returns ErrNotFound when no mode is configured.
func (s *Store) CollectionDisplayMode(ctx context.Context, collectionID int64) (string, error) {
	return s.modeFor(ctx, s.db, collectionModes, collectionID)
}

// CollectionAssets returns every asset placed in the collection as flat rows,
// grouped rows after ungrouped ones by coalesced group id, then by membership
// sort order. Callers partition the result into grouped/ungrouped buckets.
func (s *Store) CollectionAssets(ctx context.Context, collectionID int64) ([]CollectionAsset, error) {
	return s.collectionAssets(ctx, s.db, collectionID)
}

func (s *Store) collectionAssets(ctx context.Context, q sqlx.QueryerContext, collectionID int64) ([]CollectionAsset, error) {
	var out []CollectionAsset
	err := sqlx.SelectContext(ctx, q, &out, `
		SELECT a.id, a.filename, a.filepath, a.filetype, a.filesize, a.checksum, a.created_at, a.updated_at,
		       acm.id AS membership_id, acm.display_name, acm.description, acm.sort_order,
		       ag.id AS group_id, ag.name AS group_name, ag.description AS group_description
		FROM assets a
		JOIN asset_collection_membership acm ON a.id = acm.asset_id
		LEFT JOIN asset_group_membership agm ON acm.id = agm.membership_id
		LEFT JOIN asset_groups ag ON agm.group_id = ag.id
		WHERE acm.collection_id = ?
		ORDER BY COALESCE(ag.id, 0), acm.sort_order ASC, acm.id ASC`, collectionID)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) AddAssetToCollection(ctx context.Context, collectionID, assetID int64, meta MembershipMetadata) (int64, error) {
	return addMembership(ctx, s.db, collectionID, assetID, meta)
}

func addMembership(ctx context.Context, e sqlx.ExecerContext, collectionID, assetID int64, meta MembershipMetadata) (int64, error) {
	sortOrder := 0
	if meta.SortOrder != nil {
		sortOrder = *meta.SortOrder
	}
	res, err := e.ExecContext(ctx, `
		INSERT INTO asset_collection_membership (asset_id, collection_id, display_name, description, sort_order)
		VALUES (?, ?, ?, ?, ?)`,
		assetID, collectionID, meta.DisplayName, meta.Description, sortOrder)
	if err != nil {
		return 0, fmt.Errorf("add membership: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) RemoveAssetFromCollection(ctx context.Context, collectionID, assetID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM asset_collection_membership WHERE collection_id = ? AND asset_id = ?", collectionID, assetID)
	if err != nil {
		return false, err
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

// UpdateMembershipMetadata touches only the supplied fields.
func (s *Store) UpdateMembershipMetadata(ctx context.Context, membershipID int64, meta MembershipMetadata) error {
	setParts := []string{}
	args := []any{}
	if meta.DisplayName != nil {
		setParts = append(setParts, "display_name = ?")
		args = append(args, *meta.DisplayName)
	}
	if meta.Description != nil {
		setParts = append(setParts, "description = ?")
		args = append(args, *meta.Description)
	}
	if meta.SortOrder != nil {
		setParts = append(setParts, "sort_order = ?")
		args = append(args, *meta.SortOrder)
	}
	if len(setParts) == 0 {
		return nil
	}
	args = append(args, membershipID)
	_, err := s.db.ExecContext(ctx,
		"UPDATE asset_collection_membership SET "+strings.Join(setParts, ", ")+" WHERE id = ?", args...)
	return err
}

// CopyMembershipMetadata copies an asset's display metadata from its placement
// in one collection to its placement in another.
func (s *Store) CopyMembershipMetadata(ctx context.Context, assetID, sourceCollectionID, targetCollectionID int64) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		var src struct {
			DisplayName *string `db:"display_name"`
			Description *string `db:"description"`
		}
		err := tx.GetContext(ctx, &src,
			"SELECT display_name, description FROM asset_collection_membership WHERE asset_id = ? AND collection_id = ?",
			assetID, sourceCollectionID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE asset_collection_membership SET display_name = ?, description = ? WHERE asset_id = ? AND collection_id = ?",
			src.DisplayName, src.Description, assetID, targetCollectionID)
		return err
	})
}

func (s *Store) CreateAssetGroup(ctx context.Context, collectionID int64, in GroupCreate) (int64, error) {
	var groupID int64
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		groupID, err = createAssetGroupTx(ctx, tx, collectionID, in)
		return err
	})
	if err != nil {
		return 0, err
	}
	return groupID, nil
}

func createAssetGroupTx(ctx context.Context, tx *sqlx.Tx, collectionID int64, in GroupCreate) (int64, error) {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO asset_groups (collection_id, name, description) VALUES (?, ?, ?)",
		collectionID, in.Name, in.Description)
	if err != nil {
		return 0, fmt.Errorf("insert asset group: %w", err)
	}
	groupID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	mode := in.DisplayMode
	if mode == "" {
		mode = "linear"
	}
	if err := setModeTx(ctx, tx, assetGroupModes, groupID, mode, false); err != nil {
		return 0, err
	}
	return groupID, nil
}
