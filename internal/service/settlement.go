package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/theheadmen/settlement/internal/errors"
	"github.com/theheadmen/settlement/internal/invoice"
	"github.com/theheadmen/settlement/internal/ledger"
	"github.com/theheadmen/settlement/internal/models"
	"github.com/theheadmen/settlement/internal/withdrawal"
)

const (
	EventWithdrawalRequested = "withdrawal.requested"
	EventWithdrawalApproved  = "withdrawal.approved"
	EventWithdrawalPaid      = "withdrawal.paid"
	EventWithdrawalRejected  = "withdrawal.rejected"
)

const (
	DefaultMinimumCents = 500
	DefaultCurrency     = "EUR"

	SellerListLimit = 50
	AdminListLimit  = 200
)

// WithdrawalEvent is the payload sent to notifiers. Payout details are masked.
type WithdrawalEvent struct {
	WithdrawalID  string                  `json:"withdrawalId"`
	InvoiceNumber string                  `json:"invoiceNumber"`
	SellerID      string                  `json:"tipsterId"`
	SellerName    string                  `json:"tipsterName"`
	AmountCents   int64                   `json:"amountCents"`
	Currency      string                  `json:"currency"`
	Status        models.WithdrawalStatus `json:"status"`
	PayoutMethod  string                  `json:"bankAccountType,omitempty"`
	PayoutDetails models.PayoutDetails    `json:"bankAccountDetails"`
	ActorID       string                  `json:"actorId,omitempty"`
	InvoiceURL    string                  `json:"invoicePdfUrl,omitempty"`
}

type Options struct {
	MinimumCents  int64
	Currency      string
	InvoicePrefix string
}

type Settlement struct {
	store     Storage
	reader    *ledger.Reader
	allocator *invoice.Allocator
	invoices  InvoiceGenerator
	notifier  Notifier
	logger    *zap.Logger
	locks     *keyedMutex

	minimumCents int64
	currency     string
	now          func() time.Time
}

func NewSettlement(store Storage, invoices InvoiceGenerator, notifier Notifier, logger *zap.Logger, opts Options) *Settlement {
	if opts.MinimumCents <= 0 {
		opts.MinimumCents = DefaultMinimumCents
	}
	if opts.Currency == "" {
		opts.Currency = DefaultCurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Settlement{
		store:        store,
		reader:       ledger.NewReader(store, opts.Currency),
		allocator:    invoice.NewAllocator(store, opts.InvoicePrefix),
		invoices:     invoices,
		notifier:     notifier,
		logger:       logger,
		locks:        newKeyedMutex(),
		minimumCents: opts.MinimumCents,
		currency:     opts.Currency,
		now:          time.Now,
	}
}

func (s *Settlement) GetBalance(ctx context.Context, sellerID string) (models.BalanceSnapshot, error) {
	return s.reader.GetBalance(ctx, sellerID)
}

// CreateWithdrawal checks the request against the seller's balance and records it as
// PENDING. The balance check and the insert run under the seller's lock, so concurrent
// requests are admitted in commit order and never overdraw.
func (s *Settlement) CreateWithdrawal(ctx context.Context, sellerID string, in models.CreateWithdrawalInput) (models.CreateWithdrawalResult, error) {
	if err := withdrawal.ValidateAmount(in.AmountCents, s.minimumCents, s.currency); err != nil {
		return models.CreateWithdrawalResult{}, err
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" {
		existing, found, err := s.store.FindByIdempotencyKey(ctx, sellerID, key)
		if err != nil {
			return models.CreateWithdrawalResult{}, fmt.Errorf("find by idempotency key: %w", err)
		}
		if found {
			return replay(existing, in.AmountCents)
		}
	}

	profile, err := s.store.LookupProfile(ctx, sellerID)
	if err != nil {
		return models.CreateWithdrawalResult{}, err
	}
	if err := withdrawal.CheckPayoutConfigured(profile); err != nil {
		return models.CreateWithdrawalResult{}, err
	}

	email, err := s.store.LookupEmail(ctx, sellerID)
	if err != nil {
		s.logger.Warn("seller email lookup failed", zap.String("seller_id", sellerID), zap.Error(err))
		email = ""
	}

	var created, replayed *models.WithdrawalRequest
	err = s.withSellerLock(ctx, sellerID, func(tx Storage) error {
		if key != "" {
			existing, found, err := tx.FindByIdempotencyKey(ctx, sellerID, key)
			if err != nil {
				return fmt.Errorf("find by idempotency key: %w", err)
			}
			if found {
				replayed = existing
				return nil
			}
		}

		balance, err := s.reader.WithStore(tx).GetBalance(ctx, sellerID)
		if err != nil {
			return fmt.Errorf("get balance: %w", err)
		}
		w, err := withdrawal.New(withdrawal.CreateParams{
			SellerID:       sellerID,
			AmountCents:    in.AmountCents,
			MinimumCents:   s.minimumCents,
			Currency:       s.currency,
			Note:           in.Note,
			IdempotencyKey: key,
			Profile:        profile,
			Email:          email,
			Balance:        balance,
			Now:            s.now(),
		})
		if err != nil {
			return err
		}

		// Numbers come from the shared counter outside the transaction; a rollback leaves a gap.
		w.InvoiceNumber, err = s.allocator.Next(ctx, w.RequestedAt.Year())
		if err != nil {
			return err
		}
		if err := tx.InsertWithdrawal(ctx, w); err != nil {
			return fmt.Errorf("insert withdrawal: %w", err)
		}
		created = w
		return nil
	})
	if err != nil {
		return models.CreateWithdrawalResult{}, err
	}
	if replayed != nil {
		return replay(replayed, in.AmountCents)
	}

	s.logger.Info("withdrawal requested",
		zap.String("withdrawal_id", created.ID),
		zap.String("invoice_number", created.InvoiceNumber),
		zap.String("seller_id", sellerID),
		zap.Int64("amount_cents", created.AmountCents),
	)

	// The request is committed; nothing below may fail it.
	detached := context.WithoutCancel(ctx)
	created.InvoiceURL = s.attachInvoice(detached, created)
	s.notify(detached, EventWithdrawalRequested, created, sellerID)

	return resultOf(created), nil
}

// withSellerLock serializes in-process callers before they queue on the database lock.
func (s *Settlement) withSellerLock(ctx context.Context, sellerID string, fn func(tx Storage) error) error {
	defer s.locks.Lock(sellerID)()
	return s.store.WithSellerLock(ctx, sellerID, fn)
}

func (s *Settlement) attachInvoice(ctx context.Context, w *models.WithdrawalRequest) string {
	if s.invoices == nil {
		return ""
	}
	url, err := s.invoices.Generate(ctx, invoice.Document{
		InvoiceNumber: w.InvoiceNumber,
		IssuedAt:      w.RequestedAt,
		Seller:        w.Seller,
		AmountCents:   w.AmountCents,
		Currency:      w.Currency,
	})
	if err != nil {
		s.logger.Error("invoice generation failed",
			zap.String("withdrawal_id", w.ID),
			zap.String("invoice_number", w.InvoiceNumber),
			zap.Error(err),
		)
		return ""
	}
	if err := s.store.SetInvoiceURL(ctx, w.ID, url); err != nil {
		s.logger.Error("saving invoice url failed",
			zap.String("withdrawal_id", w.ID),
			zap.String("invoice_number", w.InvoiceNumber),
			zap.Error(err),
		)
		return ""
	}
	return url
}

func replay(existing *models.WithdrawalRequest, amountCents int64) (models.CreateWithdrawalResult, error) {
	if existing.AmountCents != amountCents {
		return models.CreateWithdrawalResult{}, &apperrors.ConflictError{
			Status: string(existing.Status),
			Msg:    fmt.Sprintf("idempotency key already used for withdrawal %s with a different amount", existing.InvoiceNumber),
		}
	}
	return resultOf(existing), nil
}

func resultOf(w *models.WithdrawalRequest) models.CreateWithdrawalResult {
	return models.CreateWithdrawalResult{
		ID:            w.ID,
		InvoiceNumber: w.InvoiceNumber,
		AmountCents:   w.AmountCents,
		Currency:      w.Currency,
		InvoiceURL:    w.InvoiceURL,
	}
}

func (s *Settlement) ListWithdrawals(ctx context.Context, sellerID string) ([]models.WithdrawalRequest, error) {
	return s.store.ListWithdrawalsBySeller(ctx, sellerID, SellerListLimit)
}

// ListAllWithdrawals returns the newest matching requests and per-status totals over the
// whole collection.
func (s *Settlement) ListAllWithdrawals(ctx context.Context, filter models.WithdrawalFilter) (models.WithdrawalList, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return models.WithdrawalList{}, apperrors.Validation("unknown status %q", filter.Status)
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return models.WithdrawalList{}, apperrors.Validation("startDate must not be after endDate")
	}
	if filter.Limit <= 0 || filter.Limit > AdminListLimit {
		filter.Limit = AdminListLimit
	}

	var (
		withdrawals []models.WithdrawalRequest
		stats       map[models.WithdrawalStatus]models.StatusStats
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		withdrawals, err = s.store.ListWithdrawals(gctx, filter)
		return err
	})
	g.Go(func() error {
		var err error
		stats, err = s.store.StatsByStatus(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return models.WithdrawalList{}, err
	}

	list := models.WithdrawalList{
		Withdrawals:   withdrawals,
		StatsByStatus: make(map[string]models.StatusStats, len(models.AllStatuses)),
	}
	if list.Withdrawals == nil {
		list.Withdrawals = []models.WithdrawalRequest{}
	}
	for _, status := range models.AllStatuses {
		list.StatsByStatus[strings.ToLower(string(status))] = stats[status]
	}
	return list, nil
}

func (s *Settlement) GetWithdrawal(ctx context.Context, id string) (*models.WithdrawalRequest, error) {
	return s.store.GetWithdrawal(ctx, id)
}

func (s *Settlement) Approve(ctx context.Context, id, adminID, note string) (*models.WithdrawalRequest, error) {
	return s.transition(ctx, id, adminID, EventWithdrawalApproved, func(w *models.WithdrawalRequest) error {
		return withdrawal.Approve(w, adminID, note, s.now())
	})
}

func (s *Settlement) MarkPaid(ctx context.Context, id, adminID string, payment models.PaymentInput) (*models.WithdrawalRequest, error) {
	return s.transition(ctx, id, adminID, EventWithdrawalPaid, func(w *models.WithdrawalRequest) error {
		return withdrawal.MarkPaid(w, adminID, payment, s.now())
	})
}

func (s *Settlement) Reject(ctx context.Context, id, adminID, reason string) (*models.WithdrawalRequest, error) {
	return s.transition(ctx, id, adminID, EventWithdrawalRejected, func(w *models.WithdrawalRequest) error {
		return withdrawal.Reject(w, adminID, reason, s.now())
	})
}

// transition applies a state change in memory and persists it only if nobody moved the
// request in between.
func (s *Settlement) transition(ctx context.Context, id, adminID, event string, apply func(w *models.WithdrawalRequest) error) (*models.WithdrawalRequest, error) {
	w, err := s.store.GetWithdrawal(ctx, id)
	if err != nil {
		return nil, err
	}
	from := w.Status
	if err := apply(w); err != nil {
		return nil, err
	}
	if err := s.store.UpdateWithdrawal(ctx, w, from); err != nil {
		return nil, err
	}

	s.logger.Info("withdrawal status changed",
		zap.String("withdrawal_id", w.ID),
		zap.String("invoice_number", w.InvoiceNumber),
		zap.String("seller_id", w.SellerID),
		zap.String("admin_id", adminID),
		zap.String("from", string(from)),
		zap.String("to", string(w.Status)),
	)
	s.notify(context.WithoutCancel(ctx), event, w, adminID)
	return w, nil
}

func (s *Settlement) notify(ctx context.Context, event string, w *models.WithdrawalRequest, actorID string) {
	if s.notifier == nil {
		return
	}
	payload := WithdrawalEvent{
		WithdrawalID:  w.ID,
		InvoiceNumber: w.InvoiceNumber,
		SellerID:      w.SellerID,
		SellerName:    w.Seller.DisplayName,
		AmountCents:   w.AmountCents,
		Currency:      w.Currency,
		Status:        w.Status,
		PayoutMethod:  w.Seller.PayoutMethod,
		PayoutDetails: invoice.MaskedDetails(w.Seller.PayoutDetails),
		ActorID:       actorID,
		InvoiceURL:    w.InvoiceURL,
	}
	if err := s.notifier.Send(ctx, event, payload); err != nil {
		s.logger.Warn("notification failed",
			zap.String("event", event),
			zap.String("withdrawal_id", w.ID),
			zap.Error(err),
		)
	}
}
