package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const userCols = "id, username, email, password_hash, created_at, updated_at"

func (s *Store) CreateUser(ctx context.Context, username string, email *string, passwordHash string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO users (username, email, password_hash) VALUES (?, ?, ?)",
		username, email, passwordHash)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrDuplicate
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) GetUser(ctx context.Context, id int64) (*User, error) {
	return s.fetchUser(ctx, "id = ?", id)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return s.fetchUser(ctx, "username = ?", username)
}

func (s *Store) fetchUser(ctx context.Context, where string, arg any) (*User, error) {
	var u User
	err := s.db.GetContext(ctx, &u, "SELECT "+userCols+" FROM users WHERE "+where, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE users SET password_hash = ? WHERE id = ?", passwordHash, id)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		if _, err := s.GetUser(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) UserRoles(ctx context.Context, userID int64) ([]string, error) {
	var roles []string
	err := s.db.SelectContext(ctx, &roles, `
		SELECT r.name FROM roles r
		JOIN user_roles ur ON r.id = ur.role_id
		WHERE ur.user_id = ?
		ORDER BY r.name`, userID)
	if err != nil {
		return nil, err
	}
	return roles, nil
}

func (s *Store) UserHasRole(ctx context.Context, userID int64, role string) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM user_roles ur
		JOIN roles r ON ur.role_id = r.id
		WHERE ur.user_id = ? AND r.name = ?`, userID, role)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// AssignRole links a role to a user, creating the role row on first use.
func (s *Store) AssignRole(ctx context.Context, userID int64, role string) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO roles (name) VALUES (?) ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id)", role)
		if err != nil {
			return err
		}
		roleID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			"INSERT IGNORE INTO user_roles (user_id, role_id) VALUES (?, ?)", userID, roleID)
		return err
	})
}

func (s *Store) RemoveRole(ctx context.Context, userID int64, role string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE ur FROM user_roles ur
		JOIN roles r ON ur.role_id = r.id
		WHERE ur.user_id = ? AND r.name = ?`, userID, role)
	return err
}

func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM users"); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) AddIPToWhitelist(ctx context.Context, ip string, description *string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO ip_whitelist (ip_address, description) VALUES (?, ?)", ip, description)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) RemoveIPFromWhitelist(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM ip_whitelist WHERE id = ?", id)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) SetIPWhitelistStatus(ctx context.Context, id int64, active bool) error {
	_, err := s.db.ExecContext(ctx, "UPDATE ip_whitelist SET active = ? WHERE id = ?", active, id)
	return err
}

func (s *Store) IPWhitelist(ctx context.Context, activeOnly bool) ([]IPWhitelistEntry, error) {
	query := "SELECT id, ip_address, description, active, created_at FROM ip_whitelist"
	if activeOnly {
		query += " WHERE active = 1"
	}
	query += " ORDER BY id"
	var out []IPWhitelistEntry
	if err := s.db.SelectContext(ctx, &out, query); err != nil {
		return nil, err
	}
	return out, nil
}
