// internal/api/handler/mocks_test.go
package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"zrlda-finance/internal/api/middleware"
	"zrlda-finance/internal/domain"
	"zrlda-finance/internal/service"
)

type MockWalletService struct {
	mock.Mock
}

func (m *MockWalletService) Deposit(ctx context.Context, walletID int64, amount decimal.Decimal, currency string) (*domain.Wallet, *domain.Transaction, error) {
	args := m.Called(ctx, walletID, amount, currency)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*domain.Wallet), args.Get(1).(*domain.Transaction), args.Error(2)
}

func (m *MockWalletService) Withdraw(ctx context.Context, walletID int64, amount decimal.Decimal, currency string) (*domain.Wallet, *domain.Transaction, error) {
	args := m.Called(ctx, walletID, amount, currency)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*domain.Wallet), args.Get(1).(*domain.Transaction), args.Error(2)
}

func (m *MockWalletService) Transfer(ctx context.Context, fromWalletID, toWalletID int64, amount decimal.Decimal, currency string) (*domain.Wallet, *domain.Wallet, *domain.Transaction, error) {
	args := m.Called(ctx, fromWalletID, toWalletID, amount, currency)
	if args.Get(0) == nil {
		return nil, nil, nil, args.Error(3)
	}
	return args.Get(0).(*domain.Wallet), args.Get(1).(*domain.Wallet), args.Get(2).(*domain.Transaction), args.Error(3)
}

func (m *MockWalletService) GetBalance(ctx context.Context, walletID int64) (*domain.Wallet, error) {
	args := m.Called(ctx, walletID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Wallet), args.Error(1)
}

func (m *MockWalletService) GetTransactionHistory(ctx context.Context, walletID int64, limit, offset int) ([]domain.Transaction, int64, error) {
	args := m.Called(ctx, walletID, limit, offset)
	return args.Get(0).([]domain.Transaction), args.Get(1).(int64), args.Error(2)
}

func (m *MockWalletService) CreateUserAndWallet(ctx context.Context, username, currency string) (*domain.User, *domain.Wallet, error) {
	args := m.Called(ctx, username, currency)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*domain.User), args.Get(1).(*domain.Wallet), args.Error(2)
}

func (m *MockWalletService) CreateSubWallet(ctx context.Context, userID int64, name string) (*domain.Wallet, error) {
	args := m.Called(ctx, userID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Wallet), args.Error(1)
}

func (m *MockWalletService) ListWallets(ctx context.Context, userID int64) ([]domain.Wallet, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.Wallet), args.Error(1)
}

func (m *MockWalletService) GetOwnedWallet(ctx context.Context, userID, walletID int64) (*domain.Wallet, error) {
	args := m.Called(ctx, userID, walletID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Wallet), args.Error(1)
}

type MockRuleService struct {
	mock.Mock
}

func (m *MockRuleService) CreateRule(ctx context.Context, userID int64, in service.RuleInput) (*domain.AllocationRule, error) {
	args := m.Called(ctx, userID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AllocationRule), args.Error(1)
}

func (m *MockRuleService) UpdateRule(ctx context.Context, userID, ruleID int64, in service.RuleInput) (*domain.AllocationRule, error) {
	args := m.Called(ctx, userID, ruleID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AllocationRule), args.Error(1)
}

func (m *MockRuleService) SetRuleActive(ctx context.Context, userID, ruleID int64, active bool) (*domain.AllocationRule, error) {
	args := m.Called(ctx, userID, ruleID, active)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AllocationRule), args.Error(1)
}

func (m *MockRuleService) ListRules(ctx context.Context, userID int64) ([]domain.AllocationRule, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.AllocationRule), args.Error(1)
}

type MockAllocationService struct {
	mock.Mock
}

func (m *MockAllocationService) RunAllocations(ctx context.Context, userID, mainWalletID int64) (*service.ExecutionReport, error) {
	args := m.Called(ctx, userID, mainWalletID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ExecutionReport), args.Error(1)
}

type MockDepositService struct {
	mock.Mock
}

func (m *MockDepositService) HandleInbound(ctx context.Context, event *domain.InboundDeposit) (*service.DepositResult, error) {
	args := m.Called(ctx, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DepositResult), args.Error(1)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newRequest builds a request as the router would hand it to a handler:
// chi URL params set and, when userID > 0, an authenticated user.
func newRequest(method, target, body string, userID int64, params map[string]string) *http.Request {
	req, _ := http.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	if userID > 0 {
		ctx = middleware.WithUserID(ctx, userID)
	}
	return req.WithContext(ctx)
}
