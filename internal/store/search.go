package store

import "context"

// CollectionSearchHit is a slim collection row for search responses.
type CollectionSearchHit struct {
	ID          int64   `db:"id" json:"id"`
	Slug        string  `db:"slug" json:"slug"`
	Name        string  `db:"name" json:"name"`
	Title       *string `db:"title" json:"title"`
	Description *string `db:"description" json:"description"`
}

// AssetSearchHit is an asset matched through any of its placements.
type AssetSearchHit struct {
	ID          int64   `db:"id" json:"id"`
	Filename    string  `db:"filename" json:"filename"`
	Filetype    string  `db:"filetype" json:"filetype"`
	Filesize    int64   `db:"filesize" json:"filesize"`
	DisplayName *string `db:"display_name" json:"display_name"`
	Description *string `db:"description" json:"description"`
}

// SearchCollections matches name, title or description as substrings.
// Protected collections are excluded for unauthenticated callers.
func (s *Store) SearchCollections(ctx context.Context, query string, includeProtected bool) ([]CollectionSearchHit, error) {
	like := "%" + query + "%"
	var out []CollectionSearchHit
	err := s.db.SelectContext(ctx, &out, `
		SELECT id, slug, name, title, description
		FROM collections
		WHERE (name LIKE ? OR title LIKE ? OR description LIKE ?)
		AND (protected = 0 OR ? = 1)
		ORDER BY name`, like, like, like, includeProtected)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SearchAssets matches filename or placement metadata; an asset placed only
// in protected collections stays hidden from unauthenticated callers.
func (s *Store) SearchAssets(ctx context.Context, query string, includeProtected bool) ([]AssetSearchHit, error) {
	like := "%" + query + "%"
	var out []AssetSearchHit
	err := s.db.SelectContext(ctx, &out, `
		SELECT a.id, a.filename, a.filetype, a.filesize,
		       MIN(acm.display_name) AS display_name, MIN(acm.description) AS description
		FROM assets a
		JOIN asset_collection_membership acm ON a.id = acm.asset_id
		JOIN collections c ON acm.collection_id = c.id
		WHERE (a.filename LIKE ? OR acm.display_name LIKE ? OR acm.description LIKE ?)
		AND (c.protected = 0 OR ? = 1)
		GROUP BY a.id, a.filename, a.filetype, a.filesize
		ORDER BY a.filename`, like, like, like, includeProtected)
	if err != nil {
		return nil, err
	}
	return out, nil
}
