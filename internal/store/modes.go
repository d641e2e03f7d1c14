package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Display modes live in lookup tables so new modes are an insert, not a
// schema change. Each configurable entity (collection, relationship, asset
// group) has one configuration table with replace semantics: at most one
// active mode row per entity, maintained by delete-then-insert.
type modeFamily struct {
	lookupTable  string
	configTable  string
	fkColumn     string
	hasComposite bool
}

var (
	collectionModes = modeFamily{
		lookupTable: "collection_display_modes",
		configTable: "collection_display_mode_configuration",
		fkColumn:    "collection_id",
	}
	relationshipModes = modeFamily{
		lookupTable: "relationship_display_modes",
		configTable: "relationship_display_mode_configuration",
		fkColumn:    "relationship_id",
	}
	assetGroupModes = modeFamily{
		lookupTable:  "asset_group_display_modes",
		configTable:  "asset_group_display_mode_configuration",
		fkColumn:     "group_id",
		hasComposite: true,
	}
)

// setModeTx replaces the entity's mode configuration row. The composite flag
// is only meaningful for families that carry it (asset groups).
func setModeTx(ctx context.Context, tx *sqlx.Tx, fam modeFamily, entityID int64, mode string, composite bool) error {
	var modeID int64
	err := tx.GetContext(ctx, &modeID, "SELECT id FROM "+fam.lookupTable+" WHERE name = ?", mode)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+fam.configTable+" WHERE "+fam.fkColumn+" = ?", entityID); err != nil {
		return err
	}

	if fam.hasComposite {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO "+fam.configTable+" ("+fam.fkColumn+", display_mode_id, composite) VALUES (?, ?, ?)",
			entityID, modeID, composite)
		return err
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO "+fam.configTable+" ("+fam.fkColumn+", display_mode_id) VALUES (?, ?)",
		entityID, modeID)
	return err
}

func (s *Store) modeFor(ctx context.Context, q sqlx.QueryerContext, fam modeFamily, entityID int64) (string, error) {
	query := "SELECT m.name FROM " + fam.configTable + " c JOIN " + fam.lookupTable +
		" m ON c.display_mode_id = m.id WHERE c." + fam.fkColumn + " = ? LIMIT 1"
	var name string
	err := sqlx.GetContext(ctx, q, &name, query, entityID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return name, nil
}

func (s *Store) listModes(ctx context.Context, fam modeFamily) ([]DisplayMode, error) {
	var modes []DisplayMode
	if err := s.db.SelectContext(ctx, &modes, "SELECT id, name FROM "+fam.lookupTable+" ORDER BY id"); err != nil {
		return nil, err
	}
	return modes, nil
}

func (s *Store) ListCollectionDisplayModes(ctx context.Context) ([]DisplayMode, error) {
	return s.listModes(ctx, collectionModes)
}

func (s *Store) ListRelationshipDisplayModes(ctx context.Context) ([]DisplayMode, error) {
	return s.listModes(ctx, relationshipModes)
}

func (s *Store) ListAssetGroupDisplayModes(ctx context.Context) ([]DisplayMode, error) {
	return s.listModes(ctx, assetGroupModes)
}

// EnsureDisplayModes inserts missing vocabulary rows for one mode family.
// Used by the seed step; existing names are left alone.
func (s *Store) EnsureDisplayModes(ctx context.Context, family string, names []string) error {
	var fam modeFamily
	switch family {
	case "collection":
		fam = collectionModes
	case "relationship":
		fam = relationshipModes
	case "asset_group":
		fam = assetGroupModes
	default:
		return fmt.Errorf("unknown mode family %q", family)
	}
	for _, name := range names {
		if _, err := s.db.ExecContext(ctx, "INSERT IGNORE INTO "+fam.lookupTable+" (name) VALUES (?)", name); err != nil {
			return fmt.Errorf("ensure mode %q: %w", name, err)
		}
	}
	return nil
}
