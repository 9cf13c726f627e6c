// Package app is the example application served by main: a user directory whose
// controller is built and called through the container.
package app

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
)

// User is a directory entry.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UserRepository stores users.
type UserRepository interface {
	All() ([]User, error)
	Find(id string) (User, error)
	Save(u User) error
}

// UserNotFoundError is returned by Find for an unknown id.
type UserNotFoundError struct{ ID string }

func (e *UserNotFoundError) Error() string   { return fmt.Sprintf("user [%s] not found", e.ID) }
func (e *UserNotFoundError) StatusCode() int { return http.StatusNotFound }

// ── in-memory ────────────────────────────────────────────────────────────────

type memoryUserRepository struct {
	users map[string]User
}

// NewMemoryUserRepository returns an empty in-memory repository.
func NewMemoryUserRepository() *memoryUserRepository {
	return &memoryUserRepository{users: make(map[string]User)}
}

func (r *memoryUserRepository) All() ([]User, error) {
	all := make([]User, 0, len(r.users))
	for _, u := range r.users {
		all = append(all, u)
	}
	slices.SortFunc(all, func(a, b User) int { return strings.Compare(a.ID, b.ID) })
	return all, nil
}

func (r *memoryUserRepository) Find(id string) (User, error) {
	u, ok := r.users[id]
	if !ok {
		return User{}, &UserNotFoundError{ID: id}
	}
	return u, nil
}

func (r *memoryUserRepository) Save(u User) error {
	r.users[u.ID] = u
	return nil
}

// ── SQL ──────────────────────────────────────────────────────────────────────

// SQLUserRepository keeps users in a "users" table. Queries use "?"
// placeholders (sqlite3, mysql).
type SQLUserRepository struct {
	db *sql.DB
}

// NewSQLUserRepository creates the users table when missing.
func NewSQLUserRepository(db *sql.DB) (*SQLUserRepository, error) {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS users (id VARCHAR(64) PRIMARY KEY, name VARCHAR(255) NOT NULL)`); err != nil {
		return nil, fmt.Errorf("users: migrate: %w", err)
	}
	return &SQLUserRepository{db: db}, nil
}

func (r *SQLUserRepository) All() ([]User, error) {
	rows, err := r.db.Query(`SELECT id, name FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Name); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *SQLUserRepository) Find(id string) (User, error) {
	u := User{ID: id}
	err := r.db.QueryRow(`SELECT name FROM users WHERE id = ?`, id).Scan(&u.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, &UserNotFoundError{ID: id}
	}
	return u, err
}

func (r *SQLUserRepository) Save(u User) error {
	res, err := r.db.Exec(`UPDATE users SET name = ? WHERE id = ?`, u.Name, u.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	_, err = r.db.Exec(`INSERT INTO users (id, name) VALUES (?, ?)`, u.ID, u.Name)
	return err
}
