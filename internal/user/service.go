package user

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/apprentix/service-core/internal/user/entity"
	"github.com/apprentix/service-core/internal/user/repo"
)

// UserService exposes profile reads. Writes to credentials stay in the
// auth subsystem; this side never sees a password.
type UserService struct {
	repo *repo.UserRepo
}

func NewUserService(db *sqlx.DB, r *repo.UserRepo) *UserService {
	if r == nil {
		r = repo.NewUserRepo(db)
	}
	return &UserService{repo: r}
}

// Get returns the public projection of one user.
func (s *UserService) Get(ctx context.Context, id string) (*entity.Summary, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	sum := u.Summary()
	return &sum, nil
}

// List returns user summaries, newest first.
func (s *UserService) List(ctx context.Context, limit, offset int) ([]entity.Summary, error) {
	users, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]entity.Summary, 0, len(users))
	for _, u := range users {
		out = append(out, u.Summary())
	}
	return out, nil
}
