// Package service defines the interfaces shared between the core packages.
package service

import (
	"context"
	"fmt"

	"github.com/Veraticus/fintrack/internal/common"
	"github.com/Veraticus/fintrack/internal/model"
)

// Account lookup errors shared by every storage backend.
var (
	ErrUserNotFound  = fmt.Errorf("%w: user not found", common.ErrAuth)
	ErrDuplicateUser = fmt.Errorf("%w: username already exists", common.ErrValidation)
)

// UserStore defines the contract for our persistence layer.
type UserStore interface {
	Exists(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, account *model.UserAccount) error
	Load(ctx context.Context, username string) (*model.UserAccount, error)
	Save(ctx context.Context, account *model.UserAccount) error
	Close() error
}

// Categorizer derives a category from a transaction description.
type Categorizer interface {
	Categorize(description string) model.Category
}

// Confirmer asks the user to approve a large transaction before it is recorded.
type Confirmer interface {
	ConfirmLarge(ctx context.Context, amount int64, description string) (bool, error)
}

// ConfirmFunc adapts a function to the Confirmer interface.
type ConfirmFunc func(ctx context.Context, amount int64, description string) (bool, error)

// ConfirmLarge calls f.
func (f ConfirmFunc) ConfirmLarge(ctx context.Context, amount int64, description string) (bool, error) {
	return f(ctx, amount, description)
}

// Saver persists the state of the logged-in user.
type Saver interface {
	Save(ctx context.Context) error
}
