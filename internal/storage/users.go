package storage

import (
	"context"
	"fmt"
	"strings"

	"taskplan/internal/domain"
)

const userCols = `id, name, capacity_weekday, capacity_weekend`

func (tx *Tx) CreateUser(ctx context.Context, name string, c domain.Capacity) (domain.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.User{}, domain.Invalid("name", "may not be empty")
	}
	if err := c.Validate(); err != nil {
		return domain.User{}, err
	}
	id, err := tx.insert(ctx, `INSERT INTO users(name, capacity_weekday, capacity_weekend) VALUES (?, ?, ?)`,
		name, c.Weekday, c.Weekend)
	if err != nil {
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	return domain.User{ID: id, Name: name, Capacity: c}, nil
}

func (tx *Tx) GetUser(ctx context.Context, id int64) (domain.User, error) {
	var u domain.User
	err := tx.get(ctx, &u, `SELECT `+userCols+` FROM users WHERE id = ?`, id)
	if isNoRows(err) {
		return domain.User{}, domain.NotFound("user", id)
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (tx *Tx) UserByName(ctx context.Context, name string) (domain.User, error) {
	var u domain.User
	err := tx.get(ctx, &u, `SELECT `+userCols+` FROM users WHERE name = ?`, strings.TrimSpace(name))
	if isNoRows(err) {
		return domain.User{}, fmt.Errorf("user %q: %w", name, domain.ErrNotFound)
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (tx *Tx) ListUsers(ctx context.Context) ([]domain.User, error) {
	var out []domain.User
	if err := tx.sel(ctx, &out, `SELECT `+userCols+` FROM users ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return out, nil
}

func (tx *Tx) SetCapacity(ctx context.Context, userID int64, c domain.Capacity) error {
	if err := c.Validate(); err != nil {
		return err
	}
	res, err := tx.exec(ctx, `UPDATE users SET capacity_weekday = ?, capacity_weekend = ? WHERE id = ?`,
		c.Weekday, c.Weekend, userID)
	if err != nil {
		return fmt.Errorf("set capacity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("user", userID)
	}
	return nil
}

// Capacity implements the planner's read-only capacity source.
func (tx *Tx) Capacity(ctx context.Context, userID int64) (domain.Capacity, error) {
	u, err := tx.GetUser(ctx, userID)
	if err != nil {
		return domain.Capacity{}, err
	}
	return u.Capacity, nil
}
