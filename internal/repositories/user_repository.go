package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"conversation-service/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository reads the user directory. Profile creation and editing are
// owned by an external collaborator.
type UserRepository interface {
	GetUser(ctx context.Context, id string) (models.User, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.User, error)
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// GetUser fetches a single profile.
func (r *UserRepo) GetUser(ctx context.Context, id string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT id, username, full_name, avatar, email, created_at FROM users WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// ListByIDs fetches multiple profiles, preserving the order of ids. Ids that
// do not resolve are omitted from the result.
func (r *UserRepo) ListByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}

	query, args, err := sqlx.In(`SELECT id, username, full_name, avatar, email, created_at FROM users WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}

	var rows []models.User
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}

	byID := make(map[string]models.User, len(rows))
	for _, u := range rows {
		byID[u.ID] = u
	}

	users := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			users = append(users, u)
		}
	}
	return users, nil
}
