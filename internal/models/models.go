package models

import (
	"time"
)

type WithdrawalStatus string

const (
	StatusPending  WithdrawalStatus = "PENDING"
	StatusApproved WithdrawalStatus = "APPROVED"
	StatusPaid     WithdrawalStatus = "PAID"
	StatusRejected WithdrawalStatus = "REJECTED"
)

// AllStatuses is the order used for admin stats.
var AllStatuses = []WithdrawalStatus{StatusPending, StatusApproved, StatusPaid, StatusRejected}

func (s WithdrawalStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusPaid, StatusRejected:
		return true
	}
	return false
}

// Payout methods a seller can configure.
const (
	PayoutIBAN   = "IBAN"
	PayoutPayPal = "PAYPAL"
	PayoutCrypto = "CRYPTO"
)

type PayoutDetails struct {
	IBAN          string `json:"iban,omitempty"`
	SWIFT         string `json:"swift,omitempty"`
	PayPalEmail   string `json:"paypalEmail,omitempty"`
	CryptoAddress string `json:"cryptoAddress,omitempty"`
}

// SellerProfile is the live seller record owned by the profile subsystem.
type SellerProfile struct {
	ID             string
	UserID         string
	DisplayName    string
	LegalName      string
	DocumentType   string
	DocumentNumber string
	Country        string
	PayoutMethod   string
	PayoutDetails  PayoutDetails
}

// PayoutConfigured reports whether the field the chosen method pays into is filled in.
func (p SellerProfile) PayoutConfigured() bool {
	d := p.PayoutDetails
	switch p.PayoutMethod {
	case PayoutIBAN:
		return d.IBAN != ""
	case PayoutPayPal:
		return d.PayPalEmail != ""
	case PayoutCrypto:
		return d.CryptoAddress != ""
	}
	return false
}

// SellerSnapshot is the copy of seller identity taken when a withdrawal is requested.
// Invoices read from it, never from the live profile.
type SellerSnapshot struct {
	DisplayName    string        `json:"tipsterName"`
	Email          string        `json:"tipsterEmail,omitempty"`
	LegalName      string        `json:"tipsterLegalName,omitempty"`
	DocumentType   string        `json:"tipsterDocumentType,omitempty"`
	DocumentNumber string        `json:"tipsterDocumentNumber,omitempty"`
	Country        string        `json:"tipsterCountry,omitempty"`
	PayoutMethod   string        `json:"bankAccountType"`
	PayoutDetails  PayoutDetails `json:"bankAccountDetails"`
}

func SnapshotOf(p SellerProfile, email string) SellerSnapshot {
	return SellerSnapshot{
		DisplayName:    p.DisplayName,
		Email:          email,
		LegalName:      p.LegalName,
		DocumentType:   p.DocumentType,
		DocumentNumber: p.DocumentNumber,
		Country:        p.Country,
		PayoutMethod:   p.PayoutMethod,
		PayoutDetails:  p.PayoutDetails,
	}
}

type WithdrawalRequest struct {
	ID             string           `json:"id"`
	InvoiceNumber  string           `json:"invoiceNumber"`
	SellerID       string           `json:"tipsterId"`
	AmountCents    int64            `json:"amountCents"`
	Currency       string           `json:"currency"`
	Status         WithdrawalStatus `json:"status"`
	IdempotencyKey string           `json:"-"`
	Seller         SellerSnapshot   `json:"seller"`

	SellerNote       string `json:"tipsterNotes,omitempty"`
	AdminNote        string `json:"adminNotes,omitempty"`
	RejectionReason  string `json:"rejectionReason,omitempty"`
	PaymentMethod    string `json:"paymentMethod,omitempty"`
	PaymentReference string `json:"paymentReference,omitempty"`
	InvoiceURL       string `json:"invoicePdfUrl,omitempty"`

	GrossAmountCents int64      `json:"grossAmountCents"`
	PlatformFeeCents int64      `json:"platformFeeCents"`
	GatewayFeeCents  int64      `json:"gatewayFeeCents"`
	PeriodEnd        *time.Time `json:"periodEnd,omitempty"`

	ApprovedBy string `json:"approvedBy,omitempty"`
	PaidBy     string `json:"paidBy,omitempty"`
	RejectedBy string `json:"rejectedBy,omitempty"`

	RequestedAt time.Time  `json:"requestedAt"`
	ApprovedAt  *time.Time `json:"approvedAt,omitempty"`
	PaidAt      *time.Time `json:"paidAt,omitempty"`
	RejectedAt  *time.Time `json:"rejectedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// BalanceSnapshot is derived on every read and never stored.
type BalanceSnapshot struct {
	TotalEarnedCents       int64  `json:"totalEarnedCents"`
	TotalGrossCents        int64  `json:"totalGrossCents"`
	TotalPlatformFeeCents  int64  `json:"totalPlatformFeeCents"`
	TotalGatewayFeeCents   int64  `json:"totalGatewayFeeCents"`
	TotalWithdrawnCents    int64  `json:"totalWithdrawnCents"`
	PendingWithdrawalCents int64  `json:"pendingWithdrawalCents"`
	AvailableBalanceCents  int64  `json:"availableBalanceCents"`
	OrderCount             int64  `json:"orderCount"`
	WithdrawalCount        int64  `json:"withdrawalCount"`
	PendingCount           int64  `json:"pendingCount"`
	Currency               string `json:"currency"`
}

// OrderTotals is the result of aggregating a seller's paid orders.
type OrderTotals struct {
	NetCents         int64
	GrossCents       int64
	PlatformFeeCents int64
	GatewayFeeCents  int64
	Count            int64
}

type WithdrawalTotals struct {
	AmountCents int64
	Count       int64
}

type StatusStats struct {
	Count      int64 `json:"count"`
	TotalCents int64 `json:"totalCents"`
}

type WithdrawalFilter struct {
	Status   WithdrawalStatus
	SellerID string
	From     *time.Time
	To       *time.Time
	Limit    int
}

type WithdrawalList struct {
	Withdrawals   []WithdrawalRequest    `json:"withdrawals"`
	StatsByStatus map[string]StatusStats `json:"stats"`
}

type CreateWithdrawalInput struct {
	AmountCents    int64  `json:"amountCents"`
	Note           string `json:"notes,omitempty"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

type CreateWithdrawalResult struct {
	ID            string `json:"id"`
	InvoiceNumber string `json:"invoiceNumber"`
	AmountCents   int64  `json:"amountCents"`
	Currency      string `json:"currency"`
	InvoiceURL    string `json:"invoicePdfUrl,omitempty"`
}

type ApproveRequest struct {
	AdminNote string `json:"adminNotes,omitempty"`
}

type PaymentInput struct {
	Method    string `json:"paymentMethod"`
	Reference string `json:"paymentReference,omitempty"`
	AdminNote string `json:"adminNotes,omitempty"`
}

type RejectRequest struct {
	Reason string `json:"rejectionReason"`
}

type ErrorResponse struct {
	Error          string `json:"error"`
	AvailableCents *int64 `json:"availableCents,omitempty"`
	ShortfallCents *int64 `json:"shortfallCents,omitempty"`
	Step           string `json:"step,omitempty"`
}
