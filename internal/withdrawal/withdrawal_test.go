package withdrawal

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/theheadmen/settlement/internal/errors"
	"github.com/theheadmen/settlement/internal/models"
)

var now = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func configuredProfile() models.SellerProfile {
	return models.SellerProfile{
		ID:           "profile-1",
		UserID:       "user-1",
		DisplayName:  "Tipster One",
		LegalName:    "Juan Perez",
		DocumentType: "DNI",
		Country:      "ES",
		PayoutMethod: models.PayoutIBAN,
		PayoutDetails: models.PayoutDetails{
			IBAN: "ES9121000418450200051332",
		},
	}
}

func params(amount int64, available int64) CreateParams {
	return CreateParams{
		SellerID:     "user-1",
		AmountCents:  amount,
		MinimumCents: 500,
		Currency:     "EUR",
		Note:         "  monthly  ",
		Profile:      configuredProfile(),
		Email:        "one@example.com",
		Balance:      models.BalanceSnapshot{AvailableBalanceCents: available, TotalGrossCents: 12000, TotalPlatformFeeCents: 1500, Currency: "EUR"},
		Now:          now,
	}
}

func TestNew(t *testing.T) {
	w, err := New(params(5000, 10000))
	require.NoError(t, err)

	assert.NotEmpty(t, w.ID)
	assert.Equal(t, models.StatusPending, w.Status)
	assert.Equal(t, int64(5000), w.AmountCents)
	assert.Equal(t, "monthly", w.SellerNote)
	assert.Equal(t, "Juan Perez", w.Seller.LegalName)
	assert.Equal(t, "one@example.com", w.Seller.Email)
	assert.Equal(t, "ES9121000418450200051332", w.Seller.PayoutDetails.IBAN)
	assert.Equal(t, int64(12000), w.GrossAmountCents)
	assert.Equal(t, now, w.RequestedAt)
	assert.Nil(t, w.ApprovedAt)
	assert.Empty(t, w.InvoiceNumber)
}

func TestNewGuards(t *testing.T) {
	unconfigured := params(5000, 10000)
	unconfigured.Profile.PayoutDetails = models.PayoutDetails{}

	noMethod := params(5000, 10000)
	noMethod.Profile.PayoutMethod = ""

	wrongField := params(5000, 10000)
	wrongField.Profile.PayoutDetails = models.PayoutDetails{PayPalEmail: "one@example.com"}

	unknownMethod := params(5000, 10000)
	unknownMethod.Profile.PayoutMethod = "CHEQUE"

	testCases := []struct {
		name     string
		params   CreateParams
		sentinel error
	}{
		{name: "below minimum", params: params(499, 10000), sentinel: apperrors.ErrValidation},
		{name: "zero", params: params(0, 10000), sentinel: apperrors.ErrValidation},
		{name: "negative", params: params(-100, 10000), sentinel: apperrors.ErrValidation},
		{name: "payout details missing", params: unconfigured, sentinel: apperrors.ErrPrecondition},
		{name: "payout method missing", params: noMethod, sentinel: apperrors.ErrPrecondition},
		{name: "details do not match method", params: wrongField, sentinel: apperrors.ErrPrecondition},
		{name: "unknown payout method", params: unknownMethod, sentinel: apperrors.ErrPrecondition},
		{name: "over balance", params: params(10001, 10000), sentinel: apperrors.ErrInsufficientBalance},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w, err := New(tc.params)
			assert.Nil(t, w)
			assert.ErrorIs(t, err, tc.sentinel)
		})
	}
}

func TestPayoutConfiguredPerMethod(t *testing.T) {
	testCases := []struct {
		method  string
		details models.PayoutDetails
		want    bool
	}{
		{method: models.PayoutIBAN, details: models.PayoutDetails{IBAN: "ES91"}, want: true},
		{method: models.PayoutIBAN, details: models.PayoutDetails{SWIFT: "CAIXESBBXXX"}, want: false},
		{method: models.PayoutPayPal, details: models.PayoutDetails{PayPalEmail: "me@example.com"}, want: true},
		{method: models.PayoutPayPal, details: models.PayoutDetails{IBAN: "ES91"}, want: false},
		{method: models.PayoutCrypto, details: models.PayoutDetails{CryptoAddress: "bc1q"}, want: true},
		{method: models.PayoutCrypto, details: models.PayoutDetails{}, want: false},
		{method: "", details: models.PayoutDetails{IBAN: "ES91"}, want: false},
	}
	for _, tc := range testCases {
		p := models.SellerProfile{PayoutMethod: tc.method, PayoutDetails: tc.details}
		assert.Equal(t, tc.want, p.PayoutConfigured(), "%s %+v", tc.method, tc.details)
	}
}

func TestNewExactlyAtBalance(t *testing.T) {
	w, err := New(params(5000, 5000))
	require.NoError(t, err)
	assert.Equal(t, int64(5000), w.AmountCents)
}

func TestInsufficientBalanceCarriesAvailable(t *testing.T) {
	_, err := New(params(7000, 5000))
	var ib *apperrors.InsufficientBalanceError
	require.True(t, errors.As(err, &ib))
	assert.Equal(t, int64(5000), ib.AvailableCents)
	assert.Equal(t, int64(2000), ib.ShortfallCents())
}

func pending() *models.WithdrawalRequest {
	return &models.WithdrawalRequest{ID: "w1", Status: models.StatusPending, AmountCents: 5000, RequestedAt: now}
}

func TestApprove(t *testing.T) {
	w := pending()
	later := now.Add(time.Hour)

	require.NoError(t, Approve(w, "admin-1", " looks fine ", later))
	assert.Equal(t, models.StatusApproved, w.Status)
	assert.Equal(t, "admin-1", w.ApprovedBy)
	assert.Equal(t, "looks fine", w.AdminNote)
	require.NotNil(t, w.ApprovedAt)
	assert.Equal(t, later, *w.ApprovedAt)
}

func TestMarkPaidBackfillsApproval(t *testing.T) {
	w := pending()

	require.NoError(t, MarkPaid(w, "admin-2", models.PaymentInput{Method: "BANK_TRANSFER", Reference: "REF-1"}, now))
	assert.Equal(t, models.StatusPaid, w.Status)
	assert.Equal(t, "BANK_TRANSFER", w.PaymentMethod)
	assert.Equal(t, "REF-1", w.PaymentReference)
	require.NotNil(t, w.ApprovedAt)
	require.NotNil(t, w.PaidAt)
	assert.Equal(t, *w.PaidAt, *w.ApprovedAt)
	assert.Equal(t, "admin-2", w.ApprovedBy)
	assert.Equal(t, "admin-2", w.PaidBy)
}

func TestMarkPaidKeepsExistingApproval(t *testing.T) {
	w := pending()
	require.NoError(t, Approve(w, "admin-1", "approved note", now))

	later := now.Add(24 * time.Hour)
	require.NoError(t, MarkPaid(w, "admin-2", models.PaymentInput{Method: "BANK_TRANSFER"}, later))
	assert.Equal(t, now, *w.ApprovedAt)
	assert.Equal(t, "admin-1", w.ApprovedBy)
	assert.Equal(t, "approved note", w.AdminNote)
	assert.Equal(t, later, *w.PaidAt)
}

func TestMarkPaidRequiresMethod(t *testing.T) {
	w := pending()
	err := MarkPaid(w, "admin", models.PaymentInput{Method: "  "}, now)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, models.StatusPending, w.Status)
}

func TestRejectRequiresReason(t *testing.T) {
	w := pending()
	err := Reject(w, "admin", "   ", now)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, models.StatusPending, w.Status)
	assert.Nil(t, w.RejectedAt)

	require.NoError(t, Reject(w, "admin", "invalid IBAN", now))
	assert.Equal(t, models.StatusRejected, w.Status)
	assert.Equal(t, "invalid IBAN", w.RejectionReason)
	assert.Equal(t, "admin", w.RejectedBy)
}

// Every pair not in the transition table must be refused with a conflict.
func TestIllegalTransitions(t *testing.T) {
	apply := map[models.WithdrawalStatus]func(w *models.WithdrawalRequest) error{
		models.StatusApproved: func(w *models.WithdrawalRequest) error { return Approve(w, "a", "", now) },
		models.StatusPaid: func(w *models.WithdrawalRequest) error {
			return MarkPaid(w, "a", models.PaymentInput{Method: "BANK_TRANSFER"}, now)
		},
		models.StatusRejected: func(w *models.WithdrawalRequest) error { return Reject(w, "a", "reason", now) },
	}

	for _, from := range models.AllStatuses {
		for to, fn := range apply {
			w := &models.WithdrawalRequest{ID: "w", Status: from}
			err := fn(w)
			if CanTransition(from, to) {
				assert.NoError(t, err, "%s -> %s", from, to)
				assert.Equal(t, to, w.Status)
				continue
			}
			assert.ErrorIs(t, err, apperrors.ErrConflict, "%s -> %s", from, to)
			assert.Equal(t, from, w.Status)
		}
	}
}

// A settled request reports a conflict even when the input is also missing.
func TestIllegalTransitionsWithEmptyInput(t *testing.T) {
	for _, from := range []models.WithdrawalStatus{models.StatusApproved, models.StatusPaid, models.StatusRejected} {
		w := &models.WithdrawalRequest{ID: "w", Status: from}
		err := Reject(w, "a", "  ", now)
		assert.ErrorIs(t, err, apperrors.ErrConflict, "reject from %s", from)
		assert.NotErrorIs(t, err, apperrors.ErrValidation)
		assert.Equal(t, from, w.Status)
	}
	for _, from := range []models.WithdrawalStatus{models.StatusPaid, models.StatusRejected} {
		w := &models.WithdrawalRequest{ID: "w", Status: from}
		err := MarkPaid(w, "a", models.PaymentInput{}, now)
		assert.ErrorIs(t, err, apperrors.ErrConflict, "pay from %s", from)
		assert.NotErrorIs(t, err, apperrors.ErrValidation)
		assert.Equal(t, from, w.Status)
	}
}

func TestTransitionTable(t *testing.T) {
	assert.True(t, CanTransition(models.StatusPending, models.StatusApproved))
	assert.True(t, CanTransition(models.StatusPending, models.StatusPaid))
	assert.True(t, CanTransition(models.StatusPending, models.StatusRejected))
	assert.True(t, CanTransition(models.StatusApproved, models.StatusPaid))
	assert.False(t, CanTransition(models.StatusApproved, models.StatusRejected))
	assert.False(t, CanTransition(models.StatusPaid, models.StatusApproved))
	assert.False(t, CanTransition(models.StatusRejected, models.StatusPending))
	assert.True(t, IsTerminal(models.StatusPaid))
	assert.True(t, IsTerminal(models.StatusRejected))
	assert.False(t, IsTerminal(models.StatusApproved))
}
