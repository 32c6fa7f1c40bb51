// Package withdrawal owns the lifecycle of a withdrawal request.
//
//	PENDING -> APPROVED -> PAID
//	PENDING -> PAID
//	PENDING -> REJECTED
//
// PAID and REJECTED are terminal. Transitions only touch the request they are applied to;
// balances are recomputed from statuses at read time.
package withdrawal

import (
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/theheadmen/settlement/internal/errors"
	"github.com/theheadmen/settlement/internal/models"
)

var transitions = map[models.WithdrawalStatus][]models.WithdrawalStatus{
	models.StatusPending:  {models.StatusApproved, models.StatusPaid, models.StatusRejected},
	models.StatusApproved: {models.StatusPaid},
}

func CanTransition(from, to models.WithdrawalStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func IsTerminal(s models.WithdrawalStatus) bool {
	return len(transitions[s]) == 0
}

type CreateParams struct {
	SellerID       string
	AmountCents    int64
	MinimumCents   int64
	Currency       string
	Note           string
	IdempotencyKey string
	Profile        models.SellerProfile
	Email          string
	Balance        models.BalanceSnapshot
	Now            time.Time
}

// ValidateAmount is the input check that needs no I/O.
func ValidateAmount(amountCents, minimumCents int64, currency string) error {
	if amountCents <= 0 {
		return apperrors.Validation("amount must be positive")
	}
	if amountCents < minimumCents {
		return apperrors.Validation("minimum withdrawal amount is %s %s", apperrors.FormatCents(minimumCents), currency)
	}
	return nil
}

// CheckPayoutConfigured distinguishes a seller who has not finished payout setup.
func CheckPayoutConfigured(p models.SellerProfile) error {
	if !p.PayoutConfigured() {
		return &apperrors.PreconditionNotMetError{
			Step: "payout_details",
			Msg:  "complete your payout details before requesting a withdrawal",
		}
	}
	return nil
}

func CheckBalance(amountCents int64, bal models.BalanceSnapshot) error {
	if amountCents > bal.AvailableBalanceCents {
		return &apperrors.InsufficientBalanceError{
			AvailableCents: bal.AvailableBalanceCents,
			RequestedCents: amountCents,
			Currency:       bal.Currency,
		}
	}
	return nil
}

// New runs every creation guard and returns a PENDING request without an invoice number.
func New(p CreateParams) (*models.WithdrawalRequest, error) {
	if err := ValidateAmount(p.AmountCents, p.MinimumCents, p.Currency); err != nil {
		return nil, err
	}
	if err := CheckPayoutConfigured(p.Profile); err != nil {
		return nil, err
	}
	if err := CheckBalance(p.AmountCents, p.Balance); err != nil {
		return nil, err
	}

	now := p.Now.UTC()
	periodEnd := now
	return &models.WithdrawalRequest{
		ID:               uuid.NewString(),
		SellerID:         p.SellerID,
		AmountCents:      p.AmountCents,
		Currency:         p.Currency,
		Status:           models.StatusPending,
		IdempotencyKey:   p.IdempotencyKey,
		Seller:           models.SnapshotOf(p.Profile, p.Email),
		SellerNote:       strings.TrimSpace(p.Note),
		GrossAmountCents: p.Balance.TotalGrossCents,
		PlatformFeeCents: p.Balance.TotalPlatformFeeCents,
		GatewayFeeCents:  p.Balance.TotalGatewayFeeCents,
		PeriodEnd:        &periodEnd,
		RequestedAt:      now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

func conflict(w *models.WithdrawalRequest, to models.WithdrawalStatus) error {
	if CanTransition(w.Status, to) {
		return nil
	}
	return &apperrors.ConflictError{Status: string(w.Status)}
}

func Approve(w *models.WithdrawalRequest, adminID, note string, now time.Time) error {
	if err := conflict(w, models.StatusApproved); err != nil {
		return err
	}
	now = now.UTC()
	w.Status = models.StatusApproved
	w.ApprovedAt = &now
	w.ApprovedBy = adminID
	w.AdminNote = strings.TrimSpace(note)
	w.UpdatedAt = now
	return nil
}

// MarkPaid settles the request. A request paid straight from PENDING gets its approval
// stamp backfilled so every PAID record carries one.
func MarkPaid(w *models.WithdrawalRequest, adminID string, p models.PaymentInput, now time.Time) error {
	if err := conflict(w, models.StatusPaid); err != nil {
		return err
	}
	method := strings.TrimSpace(p.Method)
	if method == "" {
		return apperrors.Validation("payment method is required")
	}
	now = now.UTC()
	w.Status = models.StatusPaid
	w.PaymentMethod = method
	w.PaymentReference = strings.TrimSpace(p.Reference)
	w.PaidAt = &now
	w.PaidBy = adminID
	if note := strings.TrimSpace(p.AdminNote); note != "" {
		w.AdminNote = note
	}
	if w.ApprovedAt == nil {
		w.ApprovedAt = &now
	}
	if w.ApprovedBy == "" {
		w.ApprovedBy = adminID
	}
	w.UpdatedAt = now
	return nil
}

// Reject checks the status before the reason, so a settled request always reports a
// conflict.
func Reject(w *models.WithdrawalRequest, adminID, reason string, now time.Time) error {
	if err := conflict(w, models.StatusRejected); err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return apperrors.Validation("a rejection reason is required")
	}
	now = now.UTC()
	w.Status = models.StatusRejected
	w.RejectionReason = reason
	w.RejectedAt = &now
	w.RejectedBy = adminID
	w.UpdatedAt = now
	return nil
}
