// Package accounts handles the minimal signup path: create a user and their
// portfolio with the starting balance, in one transaction. Full auth flows
// live upstream of this service.
package accounts

import (
	"context"
	"errors"
	"strings"

	"github.com/Ramyghr/Gamified-Trading-Simulator-sub000/internal/models"
	"github.com/Ramyghr/Gamified-Trading-Simulator-sub000/internal/pkg/validation"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrEmailTaken   = errors.New("email already registered")
	ErrInvalidInput = errors.New("invalid registration input")
)

type Service struct {
	DB              *gorm.DB
	StartingBalance decimal.Decimal
}

type RegisterRequest struct {
	Email       string
	Password    string
	DisplayName string
}

// Register creates the user and seeds the portfolio. The portfolio row is
// created here and never again: every later mutation goes through the
// trading service under lock.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*models.User, *models.Portfolio, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if !validation.IsValidEmail(req.Email) {
		return nil, nil, ErrInvalidInput
	}
	if !validation.IsValidPassword(req.Password) {
		return nil, nil, ErrInvalidInput
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, err
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		DisplayName:  strings.TrimSpace(req.DisplayName),
	}
	portfolio := &models.Portfolio{
		CashBalance:    s.StartingBalance,
		InitialBalance: s.StartingBalance,
		ReservedCash:   decimal.Zero,
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("email = ?", req.Email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrEmailTaken
		}
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		portfolio.UserID = user.UserID
		return tx.Create(portfolio).Error
	})
	if err != nil {
		return nil, nil, err
	}
	return user, portfolio, nil
}

// Authenticate verifies credentials and returns the user.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidInput
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidInput
	}
	return &user, nil
}

// GetUser looks a user up by id.
func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).Where("user_id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}
