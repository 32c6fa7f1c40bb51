package dbconnector

import (
	"time"

	"github.com/theheadmen/settlement/internal/models"
)

// Order is written by the payment subsystem. This service only aggregates it.
type Order struct {
	ID               string `gorm:"primaryKey;type:varchar(64)"`
	TipsterID        string `gorm:"index;not null"`
	AmountCents      int64  `gorm:"not null;default:0"`
	NetAmountCents   *int64
	PlatformFeeCents int64  `gorm:"not null;default:0"`
	GatewayFeeCents  int64  `gorm:"not null;default:0"`
	Status           string `gorm:"index;not null"`
	Currency         string `gorm:"default:'EUR'"`
	CreatedAt        time.Time
}

// TipsterProfile is owned by the profile subsystem; orders reference it by ID,
// withdrawals by UserID.
type TipsterProfile struct {
	ID                 string `gorm:"primaryKey;type:varchar(64)"`
	UserID             string `gorm:"uniqueIndex;not null"`
	PublicName         string
	LegalName          string
	DocumentType       string
	DocumentNumber     string
	CountryCode        string
	BankAccountType    string
	BankAccountDetails models.PayoutDetails `gorm:"serializer:json;type:text"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type User struct {
	ID        string `gorm:"primaryKey;type:varchar(64)"`
	Email     string `gorm:"unique;not null"`
	CreatedAt time.Time
}

type WithdrawalRequest struct {
	ID             string  `gorm:"primaryKey;type:varchar(36)"`
	InvoiceNumber  string  `gorm:"uniqueIndex;not null"`
	TipsterID      string  `gorm:"index;not null;uniqueIndex:idx_withdrawal_idempotency,priority:1"`
	IdempotencyKey *string `gorm:"uniqueIndex:idx_withdrawal_idempotency,priority:2"`
	AmountCents    int64   `gorm:"not null"`
	Currency       string  `gorm:"not null;default:'EUR'"`
	Status         string  `gorm:"index;not null;default:'PENDING'"`

	TipsterName           string
	TipsterEmail          string
	TipsterLegalName      string
	TipsterDocumentType   string
	TipsterDocumentNumber string
	TipsterCountry        string
	BankAccountType       string
	BankAccountDetails    models.PayoutDetails `gorm:"serializer:json;type:text"`

	TipsterNotes     string
	AdminNotes       string
	RejectionReason  string
	PaymentMethod    string
	PaymentReference string
	InvoicePdfURL    string

	GrossAmountCents int64
	PlatformFeeCents int64
	GatewayFeeCents  int64
	PeriodEnd        *time.Time

	ApprovedBy string
	PaidBy     string
	RejectedBy string

	RequestedAt time.Time `gorm:"index;not null"`
	ApprovedAt  *time.Time
	PaidAt      *time.Time
	RejectedAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// InvoiceCounter holds the last issued invoice sequence per year.
type InvoiceCounter struct {
	Year  int   `gorm:"primaryKey;autoIncrement:false"`
	Value int64 `gorm:"not null;default:0"`
}

func rowFromWithdrawal(w *models.WithdrawalRequest) *WithdrawalRequest {
	row := &WithdrawalRequest{
		ID:                    w.ID,
		InvoiceNumber:         w.InvoiceNumber,
		TipsterID:             w.SellerID,
		AmountCents:           w.AmountCents,
		Currency:              w.Currency,
		Status:                string(w.Status),
		TipsterName:           w.Seller.DisplayName,
		TipsterEmail:          w.Seller.Email,
		TipsterLegalName:      w.Seller.LegalName,
		TipsterDocumentType:   w.Seller.DocumentType,
		TipsterDocumentNumber: w.Seller.DocumentNumber,
		TipsterCountry:        w.Seller.Country,
		BankAccountType:       w.Seller.PayoutMethod,
		BankAccountDetails:    w.Seller.PayoutDetails,
		TipsterNotes:          w.SellerNote,
		AdminNotes:            w.AdminNote,
		RejectionReason:       w.RejectionReason,
		PaymentMethod:         w.PaymentMethod,
		PaymentReference:      w.PaymentReference,
		InvoicePdfURL:         w.InvoiceURL,
		GrossAmountCents:      w.GrossAmountCents,
		PlatformFeeCents:      w.PlatformFeeCents,
		GatewayFeeCents:       w.GatewayFeeCents,
		PeriodEnd:             w.PeriodEnd,
		ApprovedBy:            w.ApprovedBy,
		PaidBy:                w.PaidBy,
		RejectedBy:            w.RejectedBy,
		RequestedAt:           w.RequestedAt,
		ApprovedAt:            w.ApprovedAt,
		PaidAt:                w.PaidAt,
		RejectedAt:            w.RejectedAt,
		CreatedAt:             w.CreatedAt,
		UpdatedAt:             w.UpdatedAt,
	}
	if w.IdempotencyKey != "" {
		key := w.IdempotencyKey
		row.IdempotencyKey = &key
	}
	return row
}

func (row *WithdrawalRequest) toModel() models.WithdrawalRequest {
	w := models.WithdrawalRequest{
		ID:            row.ID,
		InvoiceNumber: row.InvoiceNumber,
		SellerID:      row.TipsterID,
		AmountCents:   row.AmountCents,
		Currency:      row.Currency,
		Status:        models.WithdrawalStatus(row.Status),
		Seller: models.SellerSnapshot{
			DisplayName:    row.TipsterName,
			Email:          row.TipsterEmail,
			LegalName:      row.TipsterLegalName,
			DocumentType:   row.TipsterDocumentType,
			DocumentNumber: row.TipsterDocumentNumber,
			Country:        row.TipsterCountry,
			PayoutMethod:   row.BankAccountType,
			PayoutDetails:  row.BankAccountDetails,
		},
		SellerNote:       row.TipsterNotes,
		AdminNote:        row.AdminNotes,
		RejectionReason:  row.RejectionReason,
		PaymentMethod:    row.PaymentMethod,
		PaymentReference: row.PaymentReference,
		InvoiceURL:       row.InvoicePdfURL,
		GrossAmountCents: row.GrossAmountCents,
		PlatformFeeCents: row.PlatformFeeCents,
		GatewayFeeCents:  row.GatewayFeeCents,
		PeriodEnd:        row.PeriodEnd,
		ApprovedBy:       row.ApprovedBy,
		PaidBy:           row.PaidBy,
		RejectedBy:       row.RejectedBy,
		RequestedAt:      row.RequestedAt,
		ApprovedAt:       row.ApprovedAt,
		PaidAt:           row.PaidAt,
		RejectedAt:       row.RejectedAt,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}
	if row.IdempotencyKey != nil {
		w.IdempotencyKey = *row.IdempotencyKey
	}
	return w
}

func (p *TipsterProfile) toModel() models.SellerProfile {
	return models.SellerProfile{
		ID:             p.ID,
		UserID:         p.UserID,
		DisplayName:    p.PublicName,
		LegalName:      p.LegalName,
		DocumentType:   p.DocumentType,
		DocumentNumber: p.DocumentNumber,
		Country:        p.CountryCode,
		PayoutMethod:   p.BankAccountType,
		PayoutDetails:  p.BankAccountDetails,
	}
}
