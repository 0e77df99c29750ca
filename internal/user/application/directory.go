package application

import (
	"context"
	"errors"

	"github.com/cristianortiz/propertyauction/internal/shared/logger"
	"github.com/cristianortiz/propertyauction/internal/user/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// Directory answers identity questions about bidders for the auction module.
type Directory struct {
	users domain.UserRepository
}

func NewDirectory(users domain.UserRepository) *Directory {
	return &Directory{users: users}
}

// BidderExists reports whether id belongs to a verified user.
func (d *Directory) BidderExists(ctx context.Context, id uuid.UUID) (bool, error) {
	u, err := d.users.GetByID(ctx, id)
	if errors.Is(err, domain.ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !u.Verified {
		log.Info("Unverified user attempted to bid", zap.String("userID", id.String()))
		return false, nil
	}
	return true, nil
}
