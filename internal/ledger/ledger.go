// Package ledger derives a seller's balance from paid orders and withdrawal requests.
// Nothing in this package writes.
package ledger

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/theheadmen/settlement/internal/models"
)

// CanonicalPaidStatus is the spelling current upstream code writes for a completed order.
const CanonicalPaidStatus = "PAID"

// paidOrderStatuses lists every order status that counts toward earnings. The payment
// subsystem changed its vocabulary over time and old orders keep the old spelling.
var paidOrderStatuses = []string{CanonicalPaidStatus, "paid", "PAGADA", "ACCESS_GRANTED", "COMPLETED"}

var paidStatusSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(paidOrderStatuses))
	for _, s := range paidOrderStatuses {
		set[s] = struct{}{}
	}
	return set
}()

// PaidOrderStatuses returns the status spellings used to filter orders, in a stable order.
func PaidOrderStatuses() []string {
	return append([]string(nil), paidOrderStatuses...)
}

func IsPaidStatus(status string) bool {
	_, ok := paidStatusSet[status]
	return ok
}

// CommittedStatuses are withdrawals already taken out of the balance.
var CommittedStatuses = []models.WithdrawalStatus{models.StatusApproved, models.StatusPaid}

var PendingStatuses = []models.WithdrawalStatus{models.StatusPending}

// ProfileResolver maps a seller account id to the key orders are recorded under.
type ProfileResolver interface {
	ResolveLedgerKey(ctx context.Context, sellerID string) (key string, found bool, err error)
}

type Aggregator interface {
	SumPaidOrders(ctx context.Context, ledgerKey string, statuses []string) (models.OrderTotals, error)
	SumWithdrawals(ctx context.Context, sellerID string, statuses []models.WithdrawalStatus) (models.WithdrawalTotals, error)
}

type Store interface {
	ProfileResolver
	Aggregator
}

type Reader struct {
	store    Store
	currency string
}

func NewReader(store Store, currency string) *Reader {
	return &Reader{store: store, currency: currency}
}

// WithStore returns a reader bound to another store, typically one scoped to a transaction.
func (r *Reader) WithStore(store Store) *Reader {
	return &Reader{store: store, currency: r.currency}
}

func (r *Reader) GetBalance(ctx context.Context, sellerID string) (models.BalanceSnapshot, error) {
	key, found, err := r.store.ResolveLedgerKey(ctx, sellerID)
	if err != nil {
		return models.BalanceSnapshot{}, fmt.Errorf("resolve ledger key: %w", err)
	}
	if !found {
		return Compute(models.OrderTotals{}, models.WithdrawalTotals{}, models.WithdrawalTotals{}, r.currency), nil
	}

	var (
		orders    models.OrderTotals
		withdrawn models.WithdrawalTotals
		pending   models.WithdrawalTotals
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		orders, err = r.store.SumPaidOrders(gctx, key, PaidOrderStatuses())
		if err != nil {
			return fmt.Errorf("sum paid orders: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		withdrawn, err = r.store.SumWithdrawals(gctx, sellerID, CommittedStatuses)
		if err != nil {
			return fmt.Errorf("sum committed withdrawals: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		pending, err = r.store.SumWithdrawals(gctx, sellerID, PendingStatuses)
		if err != nil {
			return fmt.Errorf("sum pending withdrawals: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return models.BalanceSnapshot{}, err
	}

	return Compute(orders, withdrawn, pending, r.currency), nil
}

// Compute combines the three aggregations. Available is floored at zero: fee corrections
// applied to old orders can push earned below what was already withdrawn.
func Compute(orders models.OrderTotals, withdrawn, pending models.WithdrawalTotals, currency string) models.BalanceSnapshot {
	available := orders.NetCents - withdrawn.AmountCents - pending.AmountCents
	if available < 0 {
		available = 0
	}
	return models.BalanceSnapshot{
		TotalEarnedCents:       orders.NetCents,
		TotalGrossCents:        orders.GrossCents,
		TotalPlatformFeeCents:  orders.PlatformFeeCents,
		TotalGatewayFeeCents:   orders.GatewayFeeCents,
		TotalWithdrawnCents:    withdrawn.AmountCents,
		PendingWithdrawalCents: pending.AmountCents,
		AvailableBalanceCents:  available,
		OrderCount:             orders.Count,
		WithdrawalCount:        withdrawn.Count,
		PendingCount:           pending.Count,
		Currency:               currency,
	}
}
