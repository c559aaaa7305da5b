package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"budgetcal/internal/amqp"
	"budgetcal/internal/core"
	"budgetcal/internal/log"
	"budgetcal/internal/storage"

	"github.com/shopspring/decimal"
)

// DefaultAccountName is used when an account is created without a name.
const DefaultAccountName = "Primary Account"

var ErrAccountExists = errors.New("account already initialized")

// AccountService manages the single budgeting account.
type AccountService struct {
	repo   storage.Repository
	months *MonthCache
	events EventPublisher
}

func NewAccountService(repo storage.Repository, months *MonthCache, events EventPublisher) *AccountService {
	return &AccountService{repo: repo, months: months, events: events}
}

// Primary returns the account, creating an empty one on first use.
func (s *AccountService) Primary(ctx context.Context) (core.Account, error) {
	a, err := s.repo.GetAccount(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return s.repo.SaveAccount(ctx, core.Account{Name: DefaultAccountName, StartingBalance: decimal.Zero})
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

// StartingBalance is zero until the account is initialized.
func (s *AccountService) StartingBalance(ctx context.Context) (decimal.Decimal, error) {
	a, err := s.repo.GetAccount(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("get starting balance: %w", err)
	}
	return a.StartingBalance, nil
}

func (s *AccountService) UpdateStartingBalance(ctx context.Context, balance decimal.Decimal) (core.Account, error) {
	a, err := s.Primary(ctx)
	if err != nil {
		return core.Account{}, err
	}
	a.StartingBalance = balance
	return s.save(ctx, a, true)
}

func (s *AccountService) UpdateName(ctx context.Context, name string) (core.Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Account{}, invalid(core.ErrEmptyName)
	}
	if len([]rune(name)) > core.MaxNameLength {
		return core.Account{}, invalid(core.ErrNameTooLong)
	}
	a, err := s.Primary(ctx)
	if err != nil {
		return core.Account{}, err
	}
	a.Name = name
	return s.save(ctx, a, false)
}

// Initialize performs first-time setup. It fails with ErrAccountExists if
// the account already has been set up.
func (s *AccountService) Initialize(ctx context.Context, startingBalance decimal.Decimal, name string) (core.Account, error) {
	if _, err := s.repo.GetAccount(ctx); err == nil {
		return core.Account{}, ErrAccountExists
	} else if !errors.Is(err, storage.ErrNotFound) {
		return core.Account{}, fmt.Errorf("get account: %w", err)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultAccountName
	}
	if len([]rune(name)) > core.MaxNameLength {
		return core.Account{}, invalid(core.ErrNameTooLong)
	}
	return s.save(ctx, core.Account{Name: name, StartingBalance: startingBalance}, true)
}

func (s *AccountService) save(ctx context.Context, a core.Account, balanceChanged bool) (core.Account, error) {
	saved, err := s.repo.SaveAccount(ctx, a)
	if err != nil {
		return core.Account{}, fmt.Errorf("save account: %w", err)
	}
	log.FromContext(ctx).WithComponent(log.ComponentAccount).InfoContext(ctx, "Account updated",
		log.FieldName, saved.Name,
		"starting_balance", saved.StartingBalance.String())

	if balanceChanged {
		s.months.invalidateAll()
		notify(ctx, s.events, allMonths(amqp.EntityAccount, amqp.ActionUpdated, saved.ID))
	}
	return saved, nil
}
