// internal/service/ledger_test.go
package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"zrlda-finance/internal/domain"
	"zrlda-finance/internal/repository"
	"zrlda-finance/internal/util"
	"zrlda-finance/pkg/db"

	"github.com/shopspring/decimal"
)

var errLedgerExecutor = errors.New("ledger executor does not run SQL")

// memLedger is an in-memory wallet, rule, and transaction store. Writes made
// through a ledgerTx are journaled and undone when the tx rolls back, so the
// executor's commit and rollback paths can be observed without Postgres.
type memLedger struct {
	mu           sync.Mutex
	wallets      map[int64]*domain.Wallet
	rules        map[int64]*domain.AllocationRule
	transactions []domain.Transaction
	nextTxID     int64

	rowLocks map[int64]*sync.Mutex

	rulesErr  error
	creditErr map[int64]error
	stampErr  error
	commits   int
	rollbacks int
}

func newMemLedger() *memLedger {
	return &memLedger{
		wallets:   make(map[int64]*domain.Wallet),
		rules:     make(map[int64]*domain.AllocationRule),
		creditErr: make(map[int64]error),
		rowLocks:  make(map[int64]*sync.Mutex),
	}
}

func (l *memLedger) addWallet(id, userID int64, kind domain.WalletKind, balance string) *domain.Wallet {
	l.mu.Lock()
	defer l.mu.Unlock()
	w := &domain.Wallet{ID: id, UserID: userID, Kind: kind, Currency: "NGN", Balance: decimal.RequireFromString(balance)}
	l.wallets[id] = w
	return w
}

func (l *memLedger) addRule(rule domain.AllocationRule) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if rule.Name == "" {
		rule.Name = "rule"
	}
	l.rules[rule.ID] = &rule
}

func (l *memLedger) balance(walletID int64) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.wallets[walletID].Balance
}

func (l *memLedger) lastExecuted(ruleID int64) *time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rules[ruleID].LastExecutedAt
}

func (l *memLedger) allocationCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, t := range l.transactions {
		if t.Type == domain.TransactionTypeAllocation {
			n++
		}
	}
	return n
}

// txFuncs returns the transaction lifecycle bound to this ledger.
func (l *memLedger) txFuncs() (db.BeginTxFunc, db.CommitTxFunc, db.RollbackTxFunc) {
	return func(ctx context.Context, _ db.DBTxBeginner) (db.TxController, error) {
			return &ledgerTx{ledger: l}, nil
		}, func(tx db.TxController) error {
			return tx.Commit()
		}, func(tx db.TxController) {
			_ = tx.Rollback()
		}
}

// journal registers undo against the tx behind q. Writes outside a tx are final.
func (l *memLedger) journal(q repository.DBExecutor, undo func()) {
	if tx, ok := q.(*ledgerTx); ok {
		tx.undo = append(tx.undo, undo)
	}
}

type ledgerTx struct {
	ledger *memLedger
	undo   []func()
	locked map[int64]*sync.Mutex
	done   bool
}

// lockRow blocks until the tx holds walletID's row lock.
func (t *ledgerTx) lockRow(walletID int64) {
	if _, ok := t.locked[walletID]; ok {
		return
	}
	t.ledger.mu.Lock()
	m, ok := t.ledger.rowLocks[walletID]
	if !ok {
		m = new(sync.Mutex)
		t.ledger.rowLocks[walletID] = m
	}
	t.ledger.mu.Unlock()

	m.Lock()
	if t.locked == nil {
		t.locked = make(map[int64]*sync.Mutex)
	}
	t.locked[walletID] = m
}

func (t *ledgerTx) unlockRows() {
	for _, m := range t.locked {
		m.Unlock()
	}
	t.locked = nil
}

func (t *ledgerTx) Commit() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	t.undo = nil
	t.ledger.mu.Lock()
	t.ledger.commits++
	t.ledger.mu.Unlock()
	t.unlockRows()
	return nil
}

func (t *ledgerTx) Rollback() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	t.ledger.mu.Lock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
	t.ledger.rollbacks++
	t.ledger.mu.Unlock()
	t.unlockRows()
	return nil
}

func (t *ledgerTx) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return errLedgerExecutor
}

func (t *ledgerTx) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return errLedgerExecutor
}

func (t *ledgerTx) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return nil, errLedgerExecutor
}

func (t *ledgerTx) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return nil
}

// WalletRepository

func (l *memLedger) CreateWallet(ctx context.Context, q repository.DBExecutor, wallet *domain.Wallet) error {
	return errors.New("not supported")
}

func (l *memLedger) GetWalletByID(ctx context.Context, q repository.DBExecutor, id int64) (*domain.Wallet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.wallets[id]
	if !ok {
		return nil, util.ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (l *memLedger) GetWalletByIDForUpdate(ctx context.Context, q repository.DBExecutor, id int64) (*domain.Wallet, error) {
	if tx, ok := q.(*ledgerTx); ok {
		tx.lockRow(id)
	}
	return l.GetWalletByID(ctx, q, id)
}

func (l *memLedger) GetMainWalletByUserID(ctx context.Context, q repository.DBExecutor, userID int64) (*domain.Wallet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, w := range l.wallets {
		if w.UserID == userID && w.Kind == domain.WalletKindMain {
			cp := *w
			return &cp, nil
		}
	}
	return nil, util.ErrNotFound
}

func (l *memLedger) GetWalletByAccountNumber(ctx context.Context, q repository.DBExecutor, accountNumber string) (*domain.Wallet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, w := range l.wallets {
		if w.AccountNumber != nil && *w.AccountNumber == accountNumber {
			cp := *w
			return &cp, nil
		}
	}
	return nil, util.ErrNotFound
}

func (l *memLedger) GetWalletsByUserID(ctx context.Context, q repository.DBExecutor, userID int64) ([]domain.Wallet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.Wallet
	for _, w := range l.wallets {
		if w.UserID == userID {
			out = append(out, *w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (l *memLedger) UpdateWalletBalance(ctx context.Context, q repository.DBExecutor, walletID int64, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.creditErr[walletID]; err != nil {
		return err
	}
	w, ok := l.wallets[walletID]
	if !ok {
		return util.ErrWalletNotFound
	}
	w.Balance = w.Balance.Add(amount)
	l.journal(q, func() { w.Balance = w.Balance.Sub(amount) })
	return nil
}

func (l *memLedger) DebitWalletBalance(ctx context.Context, q repository.DBExecutor, walletID int64, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.wallets[walletID]
	if !ok {
		return util.ErrWalletNotFound
	}
	if w.Balance.LessThan(amount) {
		return util.ErrInsufficientFunds
	}
	w.Balance = w.Balance.Sub(amount)
	l.journal(q, func() { w.Balance = w.Balance.Add(amount) })
	return nil
}

// AllocationRuleRepository

func (l *memLedger) CreateRule(ctx context.Context, q repository.DBExecutor, rule *domain.AllocationRule) error {
	return errors.New("not supported")
}

func (l *memLedger) GetRuleByID(ctx context.Context, q repository.DBExecutor, id int64) (*domain.AllocationRule, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.rules[id]
	if !ok {
		return nil, util.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (l *memLedger) GetRulesByUserID(ctx context.Context, q repository.DBExecutor, userID int64) ([]domain.AllocationRule, error) {
	return l.selectRules(userID, false)
}

func (l *memLedger) GetActiveRulesByUserID(ctx context.Context, q repository.DBExecutor, userID int64) ([]domain.AllocationRule, error) {
	l.mu.Lock()
	err := l.rulesErr
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return l.selectRules(userID, true)
}

func (l *memLedger) selectRules(userID int64, activeOnly bool) ([]domain.AllocationRule, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []domain.AllocationRule{}
	for _, r := range l.rules {
		if r.UserID != userID || (activeOnly && !r.IsActive) {
			continue
		}
		cp := *r
		if r.LastExecutedAt != nil {
			at := *r.LastExecutedAt
			cp.LastExecutedAt = &at
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (l *memLedger) UpdateRule(ctx context.Context, q repository.DBExecutor, rule *domain.AllocationRule) error {
	return errors.New("not supported")
}

func (l *memLedger) StampExecuted(ctx context.Context, q repository.DBExecutor, ruleID int64, at time.Time, expectedPrior *time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stampErr != nil {
		return false, l.stampErr
	}
	r, ok := l.rules[ruleID]
	if !ok || !r.IsActive {
		return false, nil
	}
	prior := r.LastExecutedAt
	switch {
	case prior == nil && expectedPrior == nil:
	case prior != nil && expectedPrior != nil && prior.Equal(*expectedPrior):
	default:
		return false, nil
	}
	if prior != nil && prior.After(at) {
		return false, nil
	}
	stamp := at
	r.LastExecutedAt = &stamp
	l.journal(q, func() { r.LastExecutedAt = prior })
	return true, nil
}

func (l *memLedger) ListActiveRuleOwners(ctx context.Context, q repository.DBExecutor) ([]domain.RuleOwner, error) {
	return nil, errors.New("not supported")
}

// TransactionRepository

func (l *memLedger) CreateTransaction(ctx context.Context, q repository.DBExecutor, transaction *domain.Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ref := transaction.ExternalRef; ref != nil {
		for _, t := range l.transactions {
			if t.ExternalRef != nil && *t.ExternalRef == *ref {
				return util.ErrDuplicateEntry
			}
		}
	}
	l.nextTxID++
	transaction.ID = l.nextTxID
	l.transactions = append(l.transactions, *transaction)
	id := transaction.ID
	l.journal(q, func() {
		for i := range l.transactions {
			if l.transactions[i].ID == id {
				l.transactions = append(l.transactions[:i], l.transactions[i+1:]...)
				return
			}
		}
	})
	return nil
}

func (l *memLedger) GetTransactionByExternalRef(ctx context.Context, q repository.DBExecutor, externalRef string) (*domain.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, t := range l.transactions {
		if t.ExternalRef != nil && *t.ExternalRef == externalRef {
			cp := t
			return &cp, nil
		}
	}
	return nil, util.ErrNotFound
}

func (l *memLedger) GetTransactionsByWalletID(ctx context.Context, q repository.DBExecutor, walletID int64, limit, offset int) ([]domain.Transaction, int64, error) {
	return nil, 0, errors.New("not supported")
}
