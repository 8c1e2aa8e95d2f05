package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/zuloanga/Coinorbit/internal/ledger/domain"
)

const referralCodeLength = 8

const referralCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Service owns account identity: signup, signin, the admin role check
// consumed by the ledger's approval workflow, and admin user
// management.
type Service struct {
	accounts domain.AccountRepository
	pw       *PasswordManager
	jwt      *JWTManager
	sink     domain.Sink
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(
	accounts domain.AccountRepository,
	pw *PasswordManager,
	jwtManager *JWTManager,
	sink domain.Sink,
	logger *zap.Logger,
	now func() time.Time,
) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		accounts: accounts,
		pw:       pw,
		jwt:      jwtManager,
		sink:     sink,
		logger:   logger,
		now:      now,
	}
}

// SignUp creates an account with balance 0 and a fresh referral code.
// If referredBy names an existing referral code, the referrer's counter
// is incremented.
func (s *Service) SignUp(ctx context.Context, email, password, fullName, referredBy string) (*domain.Account, error) {
	if err := s.pw.ValidatePassword(password); err != nil {
		return nil, err
	}
	hash, err := s.pw.HashPassword(password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	account := &domain.Account{
		ID:           uuid.NewString(),
		Email:        email,
		FullName:     fullName,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		ReferralCode: generateReferralCode(referralCodeLength),
		Balance:      decimal.Zero,
		Status:       domain.AccountActive,
		CreatedAt:    now,
		LastLoginAt:  now,
	}

	var referrer *domain.Account
	if referredBy != "" {
		referrer, err = s.accounts.GetByReferralCode(ctx, referredBy)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				return nil, err
			}
			referrer = nil
		} else {
			account.ReferredBy = referrer.ID
		}
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, err
	}
	if referrer != nil {
		if err := s.accounts.IncrementReferralCount(ctx, referrer.ID); err != nil {
			s.logger.Warn("referral counter update failed",
				zap.String("referrer_id", referrer.ID),
				zap.Error(err),
			)
		}
	}

	if s.sink != nil {
		s.sink.Publish(domain.UserRegistered{AccountID: account.ID, At: now})
	}
	s.logger.Info("account registered",
		zap.String("account_id", account.ID),
		zap.String("email", account.Email),
	)
	return account, nil
}

// SignIn verifies credentials and issues an access token.
func (s *Service) SignIn(ctx context.Context, email, password string) (string, *domain.Account, error) {
	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if !s.pw.VerifyPassword(account.PasswordHash, password) {
		return "", nil, ErrInvalidCredentials
	}

	if err := s.accounts.TouchLogin(ctx, account.ID, s.now()); err != nil {
		s.logger.Warn("last login stamp failed", zap.String("account_id", account.ID), zap.Error(err))
	}

	token, err := s.jwt.GenerateAccessToken(UserClaims{
		UserID:  account.ID,
		Email:   account.Email,
		IsAdmin: account.Role == domain.RoleAdmin,
	})
	if err != nil {
		return "", nil, err
	}
	return token, account, nil
}

// IsAdmin implements the ledger's AdminChecker against the account
// store. An unknown account is simply not an admin.
func (s *Service) IsAdmin(ctx context.Context, accountID string) (bool, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return account.Role == domain.RoleAdmin, nil
}

// GetAccount returns one account record.
func (s *Service) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	return s.accounts.GetByID(ctx, accountID)
}

// ListAccounts is the admin user listing.
func (s *Service) ListAccounts(ctx context.Context, adminID string) ([]*domain.Account, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	return s.accounts.List(ctx)
}

// SetAccountStatus suspends or reactivates a user.
func (s *Service) SetAccountStatus(ctx context.Context, adminID, accountID string, status domain.AccountStatus) error {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return err
	}
	if status != domain.AccountActive && status != domain.AccountSuspended {
		return fmt.Errorf("unknown account status %q", status)
	}
	if err := s.accounts.UpdateStatus(ctx, accountID, status); err != nil {
		return err
	}
	s.logger.Info("account status updated",
		zap.String("account_id", accountID),
		zap.String("status", string(status)),
		zap.String("processed_by", adminID),
	)
	return nil
}

// SeedAdmin creates the admin account on first start if it does not
// exist yet.
func (s *Service) SeedAdmin(ctx context.Context, email, password, fullName string) error {
	if email == "" || password == "" {
		return nil
	}
	if _, err := s.accounts.GetByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	hash, err := s.pw.HashPassword(password)
	if err != nil {
		return err
	}
	now := s.now()
	admin := &domain.Account{
		ID:           uuid.NewString(),
		Email:        email,
		FullName:     fullName,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		ReferralCode: generateReferralCode(referralCodeLength),
		Balance:      decimal.Zero,
		Status:       domain.AccountActive,
		CreatedAt:    now,
		LastLoginAt:  now,
	}
	if err := s.accounts.Create(ctx, admin); err != nil {
		return err
	}
	s.logger.Info("admin account seeded", zap.String("email", email))
	return nil
}

func (s *Service) requireAdmin(ctx context.Context, adminID string) error {
	if adminID == "" {
		return fmt.Errorf("%w: admin principal is required", domain.ErrUnauthorized)
	}
	ok, err := s.IsAdmin(ctx, adminID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: account %s is not an admin", domain.ErrUnauthorized, adminID)
	}
	return nil
}

func generateReferralCode(length int) string {
	max := big.NewInt(int64(len(referralCharset)))
	code := make([]byte, length)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			code[i] = referralCharset[0]
			continue
		}
		code[i] = referralCharset[n.Int64()]
	}
	return string(code)
}
