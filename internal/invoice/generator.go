package invoice

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	apperrors "github.com/theheadmen/settlement/internal/errors"
	"github.com/theheadmen/settlement/internal/models"
)

// ArtifactStore persists rendered documents and returns a URL they can be fetched from.
type ArtifactStore interface {
	Write(ctx context.Context, key string, content []byte) (string, error)
}

// Issuer is the platform identity printed on every invoice.
type Issuer struct {
	Name    string
	TaxID   string
	Address []string
	Email   string
	Website string
}

var DefaultIssuer = Issuer{
	Name:    "ANTIA PLATFORM S.L.",
	TaxID:   "B-XXXXXXXX",
	Address: []string{"Calle Principal 123", "28001 Madrid, España"},
	Email:   "info@antia.com",
	Website: "www.antia.com",
}

const lineItemDescription = "Settlement of earnings for sports prediction services"

type Document struct {
	InvoiceNumber string
	IssuedAt      time.Time
	Seller        models.SellerSnapshot
	AmountCents   int64
	Currency      string
}

type Generator struct {
	store  ArtifactStore
	issuer Issuer
	tmpl   *template.Template
}

func NewGenerator(store ArtifactStore, issuer Issuer) *Generator {
	return &Generator{
		store:  store,
		issuer: issuer,
		tmpl:   template.Must(template.New("invoice").Parse(invoiceTemplate)),
	}
}

// Key is the storage key for an invoice number. One document per number.
func Key(invoiceNumber string) string {
	return invoiceNumber + ".html"
}

// Generate renders the document and stores it under the invoice number.
func (g *Generator) Generate(ctx context.Context, doc Document) (string, error) {
	content, err := g.Render(doc)
	if err != nil {
		return "", err
	}
	url, err := g.store.Write(ctx, Key(doc.InvoiceNumber), content)
	if err != nil {
		return "", fmt.Errorf("store invoice %s: %w", doc.InvoiceNumber, err)
	}
	return url, nil
}

type view struct {
	Issuer          Issuer
	InvoiceNumber   string
	Date            string
	Seller          models.SellerSnapshot
	BeneficiaryName string
	Amount          string
	Currency        string
	PayoutMethod    string
	PayoutLines     []string
	Description     string
}

func (g *Generator) Render(doc Document) ([]byte, error) {
	name := doc.Seller.LegalName
	if name == "" {
		name = doc.Seller.DisplayName
	}
	method := doc.Seller.PayoutMethod
	if method == "" {
		method = "Not specified"
	}
	v := view{
		Issuer:          g.issuer,
		InvoiceNumber:   doc.InvoiceNumber,
		Date:            doc.IssuedAt.Format("02 January 2006"),
		Seller:          doc.Seller,
		BeneficiaryName: name,
		Amount:          apperrors.FormatCents(doc.AmountCents),
		Currency:        doc.Currency,
		PayoutMethod:    method,
		PayoutLines:     PayoutLines(doc.Seller.PayoutMethod, doc.Seller.PayoutDetails),
		Description:     lineItemDescription,
	}
	var buf bytes.Buffer
	if err := g.tmpl.Execute(&buf, v); err != nil {
		return nil, fmt.Errorf("render invoice %s: %w", doc.InvoiceNumber, err)
	}
	return buf.Bytes(), nil
}

// PayoutLines formats payout details for the given method.
func PayoutLines(method string, d models.PayoutDetails) []string {
	var lines []string
	switch method {
	case models.PayoutIBAN:
		if d.IBAN != "" {
			lines = append(lines, "IBAN: "+d.IBAN)
			if d.SWIFT != "" {
				lines = append(lines, "SWIFT/BIC: "+d.SWIFT)
			}
		}
	case models.PayoutPayPal:
		if d.PayPalEmail != "" {
			lines = append(lines, "PayPal: "+d.PayPalEmail)
		}
	case models.PayoutCrypto:
		addr := d.CryptoAddress
		if addr == "" {
			addr = "N/A"
		}
		lines = append(lines, "Crypto: "+addr)
	}
	return lines
}

// Mask keeps the last four characters of an account identifier.
func Mask(s string) string {
	r := []rune(s)
	if len(r) <= 4 {
		return s
	}
	out := make([]rune, len(r))
	for i := range r {
		if i < len(r)-4 {
			out[i] = '*'
		} else {
			out[i] = r[i]
		}
	}
	return string(out)
}

func MaskedDetails(d models.PayoutDetails) models.PayoutDetails {
	return models.PayoutDetails{
		IBAN:          Mask(d.IBAN),
		SWIFT:         d.SWIFT,
		PayPalEmail:   Mask(d.PayPalEmail),
		CryptoAddress: Mask(d.CryptoAddress),
	}
}

const invoiceTemplate = `<!DOCTYPE html>
<html lang="es">
<head>
  <meta charset="UTF-8">
  <title>Invoice {{.InvoiceNumber}}</title>
  <style>
    body { font-family: 'Helvetica Neue', Arial, sans-serif; background: #f8f9fa; padding: 40px; color: #333; }
    .invoice { max-width: 800px; margin: 0 auto; background: white; border-radius: 12px; overflow: hidden; }
    .header { background: #1e3a8a; color: white; padding: 40px; display: flex; justify-content: space-between; }
    .logo { font-size: 32px; font-weight: bold; }
    .invoice-number { font-size: 24px; font-weight: bold; }
    .body { padding: 40px; }
    .section-title { font-size: 12px; text-transform: uppercase; color: #6b7280; margin-bottom: 12px; }
    .amount-box { border: 2px solid #3b82f6; border-radius: 12px; padding: 32px; text-align: center; margin: 32px 0; }
    .amount-value { font-size: 48px; font-weight: bold; color: #1e3a8a; }
    table { width: 100%; border-collapse: collapse; }
    th, td { padding: 12px 16px; text-align: left; border-bottom: 1px solid #e5e7eb; }
    .footer { padding: 24px 40px; text-align: center; color: #6b7280; font-size: 14px; }
  </style>
</head>
<body>
  <div class="invoice">
    <div class="header">
      <div class="logo">ANTIA</div>
      <div>
        <div class="invoice-number">{{.InvoiceNumber}}</div>
        <div class="invoice-date">{{.Date}}</div>
        <div>Withdrawal request</div>
      </div>
    </div>
    <div class="body">
      <div class="section">
        <div class="section-title">Issuer</div>
        <h3>{{.Issuer.Name}}</h3>
        <p>CIF: {{.Issuer.TaxID}}<br>{{range .Issuer.Address}}{{.}}<br>{{end}}{{.Issuer.Email}}</p>
      </div>
      <div class="section">
        <div class="section-title">Beneficiary</div>
        <h3>{{.BeneficiaryName}}</h3>
        <p>
          {{if .Seller.DocumentType}}{{.Seller.DocumentType}}: {{if .Seller.DocumentNumber}}{{.Seller.DocumentNumber}}{{else}}N/A{{end}}<br>{{end}}
          {{if .Seller.Country}}Country: {{.Seller.Country}}<br>{{end}}
          {{.Seller.Email}}
        </p>
      </div>
      <div class="amount-box">
        <div>Amount to transfer</div>
        <div class="amount-value">{{.Amount}} {{.Currency}}</div>
      </div>
      <div class="section">
        <div class="section-title">Payment details</div>
        <table>
          <tr><th>Payment method</th><td>{{.PayoutMethod}}</td></tr>
          <tr><th>Account details</th><td>{{range $i, $l := .PayoutLines}}{{if $i}}<br>{{end}}{{$l}}{{else}}Not specified{{end}}</td></tr>
        </table>
      </div>
      <div class="section">
        <div class="section-title">Concept</div>
        <table>
          <thead><tr><th>Description</th><th style="text-align: right;">Amount</th></tr></thead>
          <tbody><tr><td>{{.Description}}</td><td style="text-align: right;">{{.Amount}} {{.Currency}}</td></tr></tbody>
        </table>
      </div>
    </div>
    <div class="footer">
      <p>This document is the receipt of a withdrawal request.</p>
      <p>ANTIA PLATFORM - {{.Issuer.Website}}</p>
    </div>
  </div>
</body>
</html>
`
