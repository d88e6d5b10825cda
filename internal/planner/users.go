package planner

import (
	"context"

	"taskplan/internal/domain"
	"taskplan/internal/storage"
	"taskplan/pkg/logx"
)

// CreateUser registers a user. A nil capacity uses the configured default.
func (s *Service) CreateUser(ctx context.Context, name string, c *domain.Capacity) (domain.User, error) {
	capacity := s.Settings().DefaultCapacity
	if c != nil {
		capacity = *c
	}
	var u domain.User
	err := s.tx(ctx, "create_user", func(tx *storage.Tx) error {
		var err error
		u, err = tx.CreateUser(ctx, name, capacity)
		return err
	})
	if err != nil {
		return domain.User{}, err
	}
	s.log.Info("user created", logx.Int64("user", u.ID), logx.String("name", u.Name))
	return u, nil
}

func (s *Service) SetCapacity(ctx context.Context, userID int64, c domain.Capacity) error {
	return s.tx(ctx, "set_capacity", func(tx *storage.Tx) error {
		return tx.SetCapacity(ctx, userID, c)
	})
}

func (s *Service) GetUser(ctx context.Context, userID int64) (domain.User, error) {
	return s.store.Reader().GetUser(ctx, userID)
}

func (s *Service) UserByName(ctx context.Context, name string) (domain.User, error) {
	return s.store.Reader().UserByName(ctx, name)
}

func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.store.Reader().ListUsers(ctx)
}
