package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// CloneCollection copies a collection's mutable fields and display mode into
// a new row. Relationships and assets are not copied. Overrides win
// field-by-field; absent a slug/name override the clone gets a derived one.
func (s *Store) CloneCollection(ctx context.Context, sourceID int64, ov CloneOverrides) (int64, error) {
	var cloneID int64
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		cloneID, err = s.cloneCollectionTx(ctx, tx, sourceID, ov)
		return err
	})
	if err != nil {
		return 0, err
	}
	return cloneID, nil
}

func (s *Store) cloneCollectionTx(ctx context.Context, tx *sqlx.Tx, sourceID int64, ov CloneOverrides) (int64, error) {
	source, err := s.fetchCollection(ctx, tx, "id = ?", sourceID)
	if err != nil {
		return 0, err
	}

	clone := CollectionCreate{
		Slug:        source.Slug + "-clone",
		Name:        source.Name + " (Clone)",
		Title:       source.Title,
		Description: source.Description,
		Protected:   source.Protected,
	}
	if ov.Slug != nil {
		clone.Slug = *ov.Slug
	}
	if ov.Name != nil {
		clone.Name = *ov.Name
	}
	if ov.Title != nil {
		clone.Title = ov.Title
	}
	if ov.Description != nil {
		clone.Description = ov.Description
	}
	if ov.Protected != nil {
		clone.Protected = *ov.Protected
	}

	res, err := tx.ExecContext(ctx,
		"INSERT INTO collections (slug, name, title, description, protected) VALUES (?, ?, ?, ?, ?)",
		clone.Slug, clone.Name, clone.Title, clone.Description, clone.Protected)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrDuplicate
		}
		return 0, fmt.Errorf("insert clone: %w", err)
	}
	cloneID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	mode, err := s.modeFor(ctx, tx, collectionModes, sourceID)
	switch {
	case errors.Is(err, ErrNotFound):
		// source has no configured mode, nothing to carry over
	case err != nil:
		return 0, err
	default:
		if err := setModeTx(ctx, tx, collectionModes, cloneID, mode, false); err != nil {
			return 0, err
		}
	}
	return cloneID, nil
}

// CloneCollectionWithAssets deep-copies a collection: the row, its display
// mode, every asset group (with the group's display mode and composite flag)
// and every membership with its display metadata. Grouped memberships land in
// the mapped clone group. One transaction; any failure leaves zero new rows.
func (s *Store) CloneCollectionWithAssets(ctx context.Context, sourceID int64, ov CloneOverrides) (int64, error) {
	var cloneID int64
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		cloneID, err = s.cloneCollectionTx(ctx, tx, sourceID, ov)
		if err != nil {
			return err
		}

		assets, err := s.collectionAssets(ctx, tx, sourceID)
		if err != nil {
			return err
		}

		groupMap := make(map[int64]int64)
		for _, a := range assets {
			if a.GroupID == nil {
				continue
			}
			if _, done := groupMap[*a.GroupID]; done {
				continue
			}
			mode, composite, err := s.groupMode(ctx, tx, *a.GroupID)
			if errors.Is(err, ErrNotFound) {
				mode = "linear"
			} else if err != nil {
				return err
			}
			newGroupID, err := createAssetGroupTx(ctx, tx, cloneID, GroupCreate{
				Name:        a.GroupName,
				Description: a.GroupDescription,
				DisplayMode: mode,
			})
			if err != nil {
				return err
			}
			if composite {
				if err := setModeTx(ctx, tx, assetGroupModes, newGroupID, mode, true); err != nil {
					return err
				}
			}
			groupMap[*a.GroupID] = newGroupID
		}

		for _, a := range assets {
			sortOrder := a.SortOrder
			membershipID, err := addMembership(ctx, tx, cloneID, a.Asset.ID, MembershipMetadata{
				DisplayName: a.DisplayName,
				Description: a.Description,
				SortOrder:   &sortOrder,
			})
			if err != nil {
				return err
			}
			if a.GroupID != nil {
				if _, err := tx.ExecContext(ctx,
					"INSERT INTO asset_group_membership (group_id, membership_id, sort_order) VALUES (?, ?, ?)",
					groupMap[*a.GroupID], membershipID, 0); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return cloneID, nil
}

func (s *Store) groupMode(ctx context.Context, q sqlx.QueryerContext, groupID int64) (string, bool, error) {
	var row struct {
		Name      string `db:"name"`
		Composite bool   `db:"composite"`
	}
	err := sqlx.GetContext(ctx, q, &row, `
		SELECT m.name, c.composite
		FROM asset_group_display_mode_configuration c
		JOIN asset_group_display_modes m ON c.display_mode_id = m.id
		WHERE c.group_id = ? LIMIT 1`, groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, ErrNotFound
	}
	if err != nil {
		return "", false, err
	}
	return row.Name, row.Composite, nil
}
