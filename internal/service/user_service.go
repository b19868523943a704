// internal/service/user_service.go
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"circlepool/internal/domain"
	"circlepool/internal/repository"
	"circlepool/internal/util"
)

// RegisterUserParams carries the inputs for user registration.
type RegisterUserParams struct {
	Name  string
	UpiID string
	Email string
}

// UserService defines the business logic for user accounts and personal
// balances.
type UserService interface {
	Register(ctx context.Context, params RegisterUserParams) (*domain.User, error)
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	// TopUp credits the user's personal balance. Amount must be positive.
	TopUp(ctx context.Context, userID int64, amount decimal.Decimal) (*domain.User, error)
}

type userService struct {
	dbExecutor repository.DBExecutor
	userRepo   repository.UserRepository
}

// NewUserService creates a new instance of UserService.
func NewUserService(dbExecutor repository.DBExecutor, userRepo repository.UserRepository) UserService {
	return &userService{
		dbExecutor: dbExecutor,
		userRepo:   userRepo,
	}
}

func (s *userService) Register(ctx context.Context, params RegisterUserParams) (*domain.User, error) {
	name := strings.TrimSpace(params.Name)
	upiID := strings.ToLower(strings.TrimSpace(params.UpiID))
	email := strings.ToLower(strings.TrimSpace(params.Email))
	if name == "" || upiID == "" || email == "" {
		return nil, fmt.Errorf("%w: name, UPI ID and email are required", util.ErrInvalidInput)
	}

	user := domain.NewUser(name, upiID, email)
	if err := s.userRepo.CreateUser(ctx, s.dbExecutor, user); err != nil {
		return nil, fmt.Errorf("register user: failed to save user: %w", err)
	}

	slog.Info("User registered", "user_id", user.ID, "upi_id", user.UpiID)
	return user, nil
}

func (s *userService) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.userRepo.GetUserByID(ctx, s.dbExecutor, id)
	if err != nil {
		return nil, fmt.Errorf("get user: failed to get user %d: %w", id, err)
	}
	return user, nil
}

func (s *userService) TopUp(ctx context.Context, userID int64, amount decimal.Decimal) (*domain.User, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, util.ErrInvalidAmount
	}

	if err := s.userRepo.AdjustBalance(ctx, s.dbExecutor, userID, amount); err != nil {
		return nil, fmt.Errorf("top up: failed to credit user %d: %w", userID, err)
	}
	user, err := s.userRepo.GetUserByID(ctx, s.dbExecutor, userID)
	if err != nil {
		return nil, fmt.Errorf("top up: failed to reload user %d: %w", userID, err)
	}

	slog.Info("Balance topped up", "user_id", userID, "amount", amount, "balance", user.Balance)
	return user, nil
}
