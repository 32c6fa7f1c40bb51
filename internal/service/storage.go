package service

import (
	"context"

	"github.com/theheadmen/settlement/internal/invoice"
	"github.com/theheadmen/settlement/internal/ledger"
	"github.com/theheadmen/settlement/internal/models"
)

// ProfileStore returns a NotFoundError when the seller has no profile.
type ProfileStore interface {
	LookupProfile(ctx context.Context, sellerID string) (models.SellerProfile, error)
}

type AccountStore interface {
	LookupEmail(ctx context.Context, sellerID string) (string, error)
}

// Notifier delivers events to whoever listens. Delivery is best-effort.
type Notifier interface {
	Send(ctx context.Context, event string, payload any) error
}

type InvoiceGenerator interface {
	Generate(ctx context.Context, doc invoice.Document) (string, error)
}

type Storage interface {
	ledger.Store
	invoice.CounterStore
	ProfileStore
	AccountStore

	InsertWithdrawal(ctx context.Context, w *models.WithdrawalRequest) error
	GetWithdrawal(ctx context.Context, id string) (*models.WithdrawalRequest, error)
	FindByIdempotencyKey(ctx context.Context, sellerID, key string) (*models.WithdrawalRequest, bool, error)
	ListWithdrawalsBySeller(ctx context.Context, sellerID string, limit int) ([]models.WithdrawalRequest, error)
	ListWithdrawals(ctx context.Context, filter models.WithdrawalFilter) ([]models.WithdrawalRequest, error)
	StatsByStatus(ctx context.Context) (map[models.WithdrawalStatus]models.StatusStats, error)
	// UpdateWithdrawal persists a transition only if the row still has expected status.
	UpdateWithdrawal(ctx context.Context, w *models.WithdrawalRequest, expected models.WithdrawalStatus) error
	SetInvoiceURL(ctx context.Context, id, url string) error

	// WithSellerLock runs fn in one transaction that holds the seller's lock. fn must use tx
	// for every read and write that has to see a consistent balance.
	WithSellerLock(ctx context.Context, sellerID string, fn func(tx Storage) error) error
}
