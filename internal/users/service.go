package users

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"

	"golang.org/x/crypto/bcrypt"

	"github.com/campuspay/campuspay/internal/ledger"
	"github.com/campuspay/campuspay/internal/shared"
)

const tempPasswordLength = 12

// Temporary passwords avoid ambiguous characters so they survive being read
// over a counter.
const tempPasswordCharset = "abcdefghjkmnpqrstuvwxyzABCDEFGHJKMNPQRSTUVWXYZ23456789"

// Service implements cashier account management.
type Service struct {
	repo     Repository
	activity ledger.ActivityRecorder
	logger   *slog.Logger
}

// NewService builds the user service.
func NewService(repo Repository, activity ledger.ActivityRecorder, logger *slog.Logger) *Service {
	return &Service{repo: repo, activity: activity, logger: logger}
}

// Get returns one user.
func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.repo.Get(ctx, id)
}

// ListCashiers returns cashier accounts with lifetime collection totals.
func (s *Service) ListCashiers(ctx context.Context) ([]CashierSummary, error) {
	return s.repo.ListCashiers(ctx)
}

// CreateCashier registers a cashier with a generated temporary password. The
// plaintext is returned once in the response and never stored.
func (s *Service) CreateCashier(ctx context.Context, req CreateCashierRequest, actor int64, actorRole string) (*CashierCredentials, error) {
	password, hash, err := s.generatePassword()
	if err != nil {
		return nil, err
	}

	id, err := s.repo.Create(ctx, User{
		Name:  req.Name,
		Email: req.Email,
		Role:  shared.RoleCashier,
	}, hash)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, actorRole, fmt.Sprintf("Created cashier account for %s", user.Name))
	return &CashierCredentials{User: *user, TemporaryPassword: password}, nil
}

// Update edits a cashier's name or email.
func (s *Service) Update(ctx context.Context, id int64, req UpdateCashierRequest, actor int64, actorRole string) (*User, error) {
	if _, err := s.getCashier(ctx, id); err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Email != nil {
		updates["email"] = *req.Email
	}
	if err := s.repo.Update(ctx, id, updates); err != nil {
		return nil, err
	}
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, actorRole, fmt.Sprintf("Updated cashier account %s", user.Name))
	return user, nil
}

// SetActive enables or suspends a cashier account.
func (s *Service) SetActive(ctx context.Context, id int64, active bool, actor int64, actorRole string) (*User, error) {
	if _, err := s.getCashier(ctx, id); err != nil {
		return nil, err
	}
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return nil, err
	}
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	verb := "Suspended"
	if active {
		verb = "Reactivated"
	}
	s.record(ctx, actor, actorRole, fmt.Sprintf("%s cashier account %s", verb, user.Name))
	return user, nil
}

// ResetCredentials issues a fresh temporary password for a cashier.
func (s *Service) ResetCredentials(ctx context.Context, id int64, actor int64, actorRole string) (*CashierCredentials, error) {
	if _, err := s.getCashier(ctx, id); err != nil {
		return nil, err
	}

	password, hash, err := s.generatePassword()
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetPassword(ctx, id, hash, true); err != nil {
		return nil, err
	}
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, actorRole, fmt.Sprintf("Reset credentials for cashier %s", user.Name))
	return &CashierCredentials{User: *user, TemporaryPassword: password}, nil
}

// Delete removes a cashier account. Refused once the cashier has collected
// payments; suspend the account instead so history keeps its collector.
func (s *Service) Delete(ctx context.Context, id int64, actor int64, actorRole string) error {
	user, err := s.getCashier(ctx, id)
	if err != nil {
		return err
	}
	count, err := s.repo.CountCollections(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrHasPayments
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor, actorRole, fmt.Sprintf("Deleted cashier account %s", user.Name))
	return nil
}

func (s *Service) getCashier(ctx context.Context, id int64) (*User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Role != shared.RoleCashier {
		return nil, ErrNotCashier
	}
	return user, nil
}

func (s *Service) generatePassword() (string, []byte, error) {
	buf := make([]byte, tempPasswordLength)
	max := big.NewInt(int64(len(tempPasswordCharset)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", nil, fmt.Errorf("users: generate password: %w", err)
		}
		buf[i] = tempPasswordCharset[n.Int64()]
	}
	password := string(buf)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("users: hash password: %w", err)
	}
	return password, hash, nil
}

func (s *Service) record(ctx context.Context, actor int64, role, action string) {
	if s.activity == nil {
		return
	}
	if err := s.activity.Record(ctx, actor, role, action); err != nil && s.logger != nil {
		s.logger.Warn("record user activity", slog.Any("error", err))
	}
}
