package store

import (
	"context"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("not found")
var ErrDuplicate = errors.New("duplicate slug")
var ErrReserved = errors.New("reserved collection")
var ErrUnknownMode = errors.New("unknown display mode")

// ReservedSlugs are system collections that must never be deleted. "root" is
// the entry point of the hierarchy, "assets" the flat pool of all uploads.
var ReservedSlugs = []string{"root", "assets"}

func IsReservedSlug(slug string) bool {
	for _, s := range ReservedSlugs {
		if s == slug {
			return true
		}
	}
	return false
}

type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *sqlx.DB {
	return s.db
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// inTx runs fn inside a transaction, rolling back on error so partial graph
// edits are never visible to concurrent readers.
func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique")
}
