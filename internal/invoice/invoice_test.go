package invoice

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theheadmen/settlement/internal/models"
)

type memCounter struct {
	mu     sync.Mutex
	values map[int]int64
	err    error
}

func (c *memCounter) IncrementInvoiceCounter(ctx context.Context, year int) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, c.err
	}
	if c.values == nil {
		c.values = make(map[int]int64)
	}
	c.values[year]++
	return c.values[year], nil
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "ANTIA-2026-0001", Format("ANTIA", 2026, 1))
	assert.Equal(t, "ANTIA-2026-0042", Format("ANTIA", 2026, 42))
	assert.Equal(t, "ANTIA-2026-12345", Format("ANTIA", 2026, 12345))
}

func TestAllocatorSequencePerYear(t *testing.T) {
	a := NewAllocator(&memCounter{}, "")
	ctx := context.Background()

	n1, err := a.Next(ctx, 2025)
	require.NoError(t, err)
	n2, err := a.Next(ctx, 2025)
	require.NoError(t, err)
	n3, err := a.Next(ctx, 2026)
	require.NoError(t, err)

	assert.Equal(t, "ANTIA-2025-0001", n1)
	assert.Equal(t, "ANTIA-2025-0002", n2)
	assert.Equal(t, "ANTIA-2026-0001", n3)
}

func TestAllocatorConcurrentUnique(t *testing.T) {
	const k = 200
	a := NewAllocator(&memCounter{}, "ANTIA")

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[string]struct{}, k)
	)
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := a.Next(context.Background(), 2026)
			assert.NoError(t, err)
			mu.Lock()
			seen[n] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, k)
}

func TestAllocatorError(t *testing.T) {
	a := NewAllocator(&memCounter{err: errors.New("db down")}, "ANTIA")
	_, err := a.Next(context.Background(), 2026)
	assert.Error(t, err)
}

func sampleDocument() Document {
	return Document{
		InvoiceNumber: "ANTIA-2026-0001",
		IssuedAt:      time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		Seller: models.SellerSnapshot{
			DisplayName:    "Tipster <One>",
			Email:          "one@example.com",
			LegalName:      "Juan Perez",
			DocumentType:   "DNI",
			DocumentNumber: "12345678Z",
			Country:        "ES",
			PayoutMethod:   models.PayoutIBAN,
			PayoutDetails:  models.PayoutDetails{IBAN: "ES9121000418450200051332", SWIFT: "CAIXESBBXXX"},
		},
		AmountCents: 5000,
		Currency:    "EUR",
	}
}

func TestRender(t *testing.T) {
	g := NewGenerator(NewFileStore(t.TempDir(), "http://localhost"), DefaultIssuer)

	out, err := g.Render(sampleDocument())
	require.NoError(t, err)
	html := string(out)

	assert.Contains(t, html, "ANTIA-2026-0001")
	assert.Contains(t, html, "14 March 2026")
	assert.Contains(t, html, "Juan Perez")
	assert.Contains(t, html, "DNI: 12345678Z")
	assert.Contains(t, html, "Country: ES")
	assert.Contains(t, html, "IBAN: ES9121000418450200051332")
	assert.Contains(t, html, "SWIFT/BIC: CAIXESBBXXX")
	assert.Contains(t, html, "50.00 EUR")
	assert.Contains(t, html, DefaultIssuer.Name)
	assert.Contains(t, html, lineItemDescription)
}

func TestRenderEscapesSellerInput(t *testing.T) {
	g := NewGenerator(NewFileStore(t.TempDir(), "http://localhost"), DefaultIssuer)
	doc := sampleDocument()
	doc.Seller.LegalName = ""
	doc.Seller.DisplayName = "<script>alert(1)</script>"

	out, err := g.Render(doc)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "<script>alert(1)</script>")
	assert.Contains(t, string(out), "&lt;script&gt;")
}

func TestGenerateWritesOnce(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir, "http://localhost:8001/")
	assert.Equal(t, dir, store.Dir())
	g := NewGenerator(store, DefaultIssuer)

	url, err := g.Generate(context.Background(), sampleDocument())
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8001/invoices/ANTIA-2026-0001.html", url)

	data, err := os.ReadFile(filepath.Join(dir, "ANTIA-2026-0001.html"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "ANTIA-2026-0001")

	_, err = g.Generate(context.Background(), sampleDocument())
	assert.ErrorIs(t, err, ErrArtifactExists)
}

func TestFileStoreRejectsBadKeys(t *testing.T) {
	s := NewFileStore(t.TempDir(), "http://localhost")
	for _, key := range []string{"", "../escape.html", "a/b.html", ".hidden"} {
		_, err := s.Write(context.Background(), key, []byte("x"))
		assert.Error(t, err, key)
	}
}

func TestPayoutLines(t *testing.T) {
	assert.Equal(t, []string{"PayPal: me@example.com"}, PayoutLines(models.PayoutPayPal, models.PayoutDetails{PayPalEmail: "me@example.com"}))
	assert.Equal(t, []string{"Crypto: N/A"}, PayoutLines(models.PayoutCrypto, models.PayoutDetails{}))
	assert.Equal(t, []string{"IBAN: X1"}, PayoutLines(models.PayoutIBAN, models.PayoutDetails{IBAN: "X1"}))
	assert.Empty(t, PayoutLines("CHEQUE", models.PayoutDetails{IBAN: "X1"}))
}

func TestMask(t *testing.T) {
	assert.Equal(t, "********************1332", Mask("ES9121000418450200051332"))
	assert.Equal(t, "abcd", Mask("abcd"))
	assert.Equal(t, "", Mask(""))
}
