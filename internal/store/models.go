package store

import "time"

type Collection struct {
	ID          int64     `db:"id" json:"id"`
	Slug        string    `db:"slug" json:"slug"`
	Name        string    `db:"name" json:"name"`
	Title       *string   `db:"title" json:"title"`
	Description *string   `db:"description" json:"description"`
	Protected   bool      `db:"protected" json:"protected"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// CollectionChild is a child collection joined with its relationship row and
// the relationship's display mode (nil when none is configured).
type CollectionChild struct {
	Collection
	RelationshipID int64   `db:"relationship_id" json:"relationship_id"`
	ShowMetadata   bool    `db:"show_metadata" json:"show_metadata"`
	SortOrder      int     `db:"sort_order" json:"sort_order"`
	DisplayMode    *string `db:"display_mode" json:"display_mode"`
}

// CollectionParent is a parent collection joined with its relationship row.
type CollectionParent struct {
	Collection
	RelationshipID int64 `db:"relationship_id" json:"relationship_id"`
	ShowMetadata   bool  `db:"show_metadata" json:"show_metadata"`
	SortOrder      int   `db:"sort_order" json:"sort_order"`
}

type Asset struct {
	ID        int64     `db:"id" json:"id"`
	Filename  string    `db:"filename" json:"filename"`
	Filepath  string    `db:"filepath" json:"filepath"`
	Filetype  string    `db:"filetype" json:"filetype"`
	Filesize  int64     `db:"filesize" json:"filesize"`
	Checksum  string    `db:"checksum" json:"checksum"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CollectionAsset is one flat row of a collection's asset listing: the asset
// columns plus its membership metadata and, when grouped, the group columns.
type CollectionAsset struct {
	Asset
	MembershipID     int64   `db:"membership_id" json:"membership_id"`
	DisplayName      *string `db:"display_name" json:"display_name"`
	Description      *string `db:"description" json:"description"`
	SortOrder        int     `db:"sort_order" json:"sort_order"`
	GroupID          *int64  `db:"group_id" json:"group_id"`
	GroupName        *string `db:"group_name" json:"group_name"`
	GroupDescription *string `db:"group_description" json:"group_description"`
}

// AssetCollection is a collection an asset is placed in, joined with the
// placement's membership metadata.
type AssetCollection struct {
	Collection
	MembershipID int64   `db:"membership_id" json:"membership_id"`
	DisplayName  *string `db:"display_name" json:"display_name"`
	Description  *string `db:"description" json:"description"`
	SortOrder    int     `db:"sort_order" json:"sort_order"`
}

type AssetGroup struct {
	ID           int64   `db:"id" json:"id"`
	CollectionID int64   `db:"collection_id" json:"collection_id"`
	Name         *string `db:"name" json:"name"`
	Description  *string `db:"description" json:"description"`
}

// GroupAsset is one asset within a group, ordered by the group-level sort order.
type GroupAsset struct {
	Asset
	MembershipID   int64   `db:"membership_id" json:"membership_id"`
	DisplayName    *string `db:"display_name" json:"display_name"`
	Description    *string `db:"description" json:"description"`
	GroupSortOrder int     `db:"group_sort_order" json:"group_sort_order"`
}

// AssetGroupPlacement describes the group a specific membership row belongs to.
type AssetGroupPlacement struct {
	AssetGroup
	SortOrder int `db:"sort_order" json:"sort_order"`
}

type CollectionCreate struct {
	Slug        string
	Name        string
	Title       *string
	Description *string
	Protected   bool
}

type CollectionUpdate struct {
	Slug        *string
	Name        *string
	Title       *string
	Description *string
	Protected   *bool
}

// CloneOverrides override individual fields when cloning a collection; nil
// fields fall back to the source collection's values.
type CloneOverrides struct {
	Slug        *string
	Name        *string
	Title       *string
	Description *string
	Protected   *bool
}

// MembershipMetadata is the per-placement display metadata of an asset in a
// collection. On update, nil fields are left untouched.
type MembershipMetadata struct {
	DisplayName *string
	Description *string
	SortOrder   *int
}

type GroupCreate struct {
	Name        *string
	Description *string
	DisplayMode string
}

type RelationshipUpdate struct {
	ShowMetadata *bool
	SortOrder    *int
	DisplayMode  *string
}

type ChildOptions struct {
	ShowMetadata bool
	SortOrder    int
	DisplayMode  string
}

// DefaultChildOptions mirror the defaults of a bare "add child" call.
func DefaultChildOptions() ChildOptions {
	return ChildOptions{ShowMetadata: true, SortOrder: 0, DisplayMode: "linked"}
}

type AssetCreate struct {
	Filename string
	Filepath string
	Filetype string
	Filesize int64
	Checksum string
}

type DisplayMode struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

type User struct {
	ID           int64     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        *string   `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

type IPWhitelistEntry struct {
	ID          int64     `db:"id" json:"id"`
	IPAddress   string    `db:"ip_address" json:"ip_address"`
	Description *string   `db:"description" json:"description"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
