package dbconnector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	apperrors "github.com/theheadmen/settlement/internal/errors"
	"github.com/theheadmen/settlement/internal/models"
	"github.com/theheadmen/settlement/internal/service"
)

const uniqueViolation = "23505"

type DBConnector struct {
	DB *gorm.DB
	// mu is set on transaction-bound connectors: a transaction owns one connection, so
	// queries issued from parallel goroutines have to take turns.
	mu *sync.Mutex
}

func OpenDBConnect(dsn string) (*DBConnector, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	return &DBConnector{DB: db}, err
}

func (dbConnector *DBConnector) DBInitialize() error {
	return dbConnector.DB.AutoMigrate(&User{}, &TipsterProfile{}, &Order{}, &WithdrawalRequest{}, &InvoiceCounter{})
}

func (dbConnector *DBConnector) Close() error {
	sqlDB, err := dbConnector.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (dbConnector *DBConnector) Ping(ctx context.Context) error {
	sqlDB, err := dbConnector.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (dbConnector *DBConnector) acquire() func() {
	if dbConnector.mu == nil {
		return func() {}
	}
	dbConnector.mu.Lock()
	return dbConnector.mu.Unlock
}

func (dbConnector *DBConnector) ResolveLedgerKey(ctx context.Context, sellerID string) (string, bool, error) {
	defer dbConnector.acquire()()

	var profile TipsterProfile
	result := dbConnector.DB.WithContext(ctx).Select("id").Where("user_id = ?", sellerID).Take(&profile)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if result.Error != nil {
		return "", false, result.Error
	}
	return profile.ID, true, nil
}

func (dbConnector *DBConnector) SumPaidOrders(ctx context.Context, ledgerKey string, statuses []string) (models.OrderTotals, error) {
	defer dbConnector.acquire()()

	var totals struct {
		Net         int64
		Gross       int64
		PlatformFee int64
		GatewayFee  int64
		Count       int64
	}
	result := dbConnector.DB.WithContext(ctx).Model(&Order{}).
		Select(`COALESCE(SUM(COALESCE(net_amount_cents, amount_cents)), 0) AS net,
			COALESCE(SUM(amount_cents), 0) AS gross,
			COALESCE(SUM(platform_fee_cents), 0) AS platform_fee,
			COALESCE(SUM(gateway_fee_cents), 0) AS gateway_fee,
			COUNT(*) AS count`).
		Where("tipster_id = ? AND status IN ?", ledgerKey, statuses).
		Scan(&totals)
	if result.Error != nil {
		return models.OrderTotals{}, result.Error
	}
	return models.OrderTotals{
		NetCents:         totals.Net,
		GrossCents:       totals.Gross,
		PlatformFeeCents: totals.PlatformFee,
		GatewayFeeCents:  totals.GatewayFee,
		Count:            totals.Count,
	}, nil
}

func (dbConnector *DBConnector) SumWithdrawals(ctx context.Context, sellerID string, statuses []models.WithdrawalStatus) (models.WithdrawalTotals, error) {
	defer dbConnector.acquire()()

	var totals struct {
		Amount int64
		Count  int64
	}
	result := dbConnector.DB.WithContext(ctx).Model(&WithdrawalRequest{}).
		Select("COALESCE(SUM(amount_cents), 0) AS amount, COUNT(*) AS count").
		Where("tipster_id = ? AND status IN ?", sellerID, statusStrings(statuses)).
		Scan(&totals)
	if result.Error != nil {
		return models.WithdrawalTotals{}, result.Error
	}
	return models.WithdrawalTotals{AmountCents: totals.Amount, Count: totals.Count}, nil
}

// IncrementInvoiceCounter bumps and returns the year's sequence in one statement, so
// concurrent callers never see the same value.
func (dbConnector *DBConnector) IncrementInvoiceCounter(ctx context.Context, year int) (int64, error) {
	defer dbConnector.acquire()()

	var value int64
	result := dbConnector.DB.WithContext(ctx).Raw(
		`INSERT INTO invoice_counters (year, value) VALUES (?, 1)
		ON CONFLICT (year) DO UPDATE SET value = invoice_counters.value + 1
		RETURNING value`, year).Scan(&value)
	if result.Error != nil {
		return 0, result.Error
	}
	return value, nil
}

func (dbConnector *DBConnector) InsertWithdrawal(ctx context.Context, w *models.WithdrawalRequest) error {
	defer dbConnector.acquire()()

	result := dbConnector.DB.WithContext(ctx).Create(rowFromWithdrawal(w))
	if result.Error != nil {
		var pgErr *pgconn.PgError
		if errors.As(result.Error, &pgErr) && pgErr.Code == uniqueViolation {
			return &apperrors.ConflictError{Msg: fmt.Sprintf("withdrawal request already exists (%s)", pgErr.ConstraintName)}
		}
		return result.Error
	}
	return nil
}

func (dbConnector *DBConnector) GetWithdrawal(ctx context.Context, id string) (*models.WithdrawalRequest, error) {
	defer dbConnector.acquire()()

	var row WithdrawalRequest
	result := dbConnector.DB.WithContext(ctx).Where("id = ?", id).Take(&row)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, &apperrors.NotFoundError{Entity: "withdrawal request", ID: id}
	}
	if result.Error != nil {
		return nil, result.Error
	}
	w := row.toModel()
	return &w, nil
}

func (dbConnector *DBConnector) FindByIdempotencyKey(ctx context.Context, sellerID, key string) (*models.WithdrawalRequest, bool, error) {
	defer dbConnector.acquire()()

	var row WithdrawalRequest
	result := dbConnector.DB.WithContext(ctx).Where("tipster_id = ? AND idempotency_key = ?", sellerID, key).Take(&row)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if result.Error != nil {
		return nil, false, result.Error
	}
	w := row.toModel()
	return &w, true, nil
}

func (dbConnector *DBConnector) ListWithdrawalsBySeller(ctx context.Context, sellerID string, limit int) ([]models.WithdrawalRequest, error) {
	return dbConnector.ListWithdrawals(ctx, models.WithdrawalFilter{SellerID: sellerID, Limit: limit})
}

func (dbConnector *DBConnector) ListWithdrawals(ctx context.Context, filter models.WithdrawalFilter) ([]models.WithdrawalRequest, error) {
	defer dbConnector.acquire()()

	query := dbConnector.DB.WithContext(ctx).Model(&WithdrawalRequest{})
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if filter.SellerID != "" {
		query = query.Where("tipster_id = ?", filter.SellerID)
	}
	if filter.From != nil {
		query = query.Where("requested_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("requested_at <= ?", *filter.To)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []WithdrawalRequest
	if err := query.Order("requested_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	withdrawals := make([]models.WithdrawalRequest, len(rows))
	for i := range rows {
		withdrawals[i] = rows[i].toModel()
	}
	return withdrawals, nil
}

func (dbConnector *DBConnector) StatsByStatus(ctx context.Context) (map[models.WithdrawalStatus]models.StatusStats, error) {
	defer dbConnector.acquire()()

	var rows []struct {
		Status string
		Count  int64
		Total  int64
	}
	result := dbConnector.DB.WithContext(ctx).Model(&WithdrawalRequest{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(amount_cents), 0) AS total").
		Group("status").
		Scan(&rows)
	if result.Error != nil {
		return nil, result.Error
	}
	stats := make(map[models.WithdrawalStatus]models.StatusStats, len(rows))
	for _, r := range rows {
		stats[models.WithdrawalStatus(r.Status)] = models.StatusStats{Count: r.Count, TotalCents: r.Total}
	}
	return stats, nil
}

func (dbConnector *DBConnector) UpdateWithdrawal(ctx context.Context, w *models.WithdrawalRequest, expected models.WithdrawalStatus) error {
	defer dbConnector.acquire()()

	result := dbConnector.DB.WithContext(ctx).Model(&WithdrawalRequest{}).
		Where("id = ? AND status = ?", w.ID, string(expected)).
		Updates(map[string]any{
			"status":            string(w.Status),
			"admin_notes":       w.AdminNote,
			"rejection_reason":  w.RejectionReason,
			"payment_method":    w.PaymentMethod,
			"payment_reference": w.PaymentReference,
			"approved_by":       w.ApprovedBy,
			"paid_by":           w.PaidBy,
			"rejected_by":       w.RejectedBy,
			"approved_at":       w.ApprovedAt,
			"paid_at":           w.PaidAt,
			"rejected_at":       w.RejectedAt,
			"updated_at":        w.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var current WithdrawalRequest
	err := dbConnector.DB.WithContext(ctx).Select("status").Where("id = ?", w.ID).Take(&current).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &apperrors.NotFoundError{Entity: "withdrawal request", ID: w.ID}
	}
	if err != nil {
		return err
	}
	return &apperrors.ConflictError{Status: current.Status}
}

func (dbConnector *DBConnector) SetInvoiceURL(ctx context.Context, id, url string) error {
	defer dbConnector.acquire()()

	return dbConnector.DB.WithContext(ctx).Model(&WithdrawalRequest{}).
		Where("id = ?", id).
		Update("invoice_pdf_url", url).Error
}

func (dbConnector *DBConnector) LookupProfile(ctx context.Context, sellerID string) (models.SellerProfile, error) {
	defer dbConnector.acquire()()

	var profile TipsterProfile
	result := dbConnector.DB.WithContext(ctx).Where("user_id = ?", sellerID).Take(&profile)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return models.SellerProfile{}, &apperrors.NotFoundError{Entity: "tipster profile"}
	}
	if result.Error != nil {
		return models.SellerProfile{}, result.Error
	}
	return profile.toModel(), nil
}

func (dbConnector *DBConnector) LookupEmail(ctx context.Context, sellerID string) (string, error) {
	defer dbConnector.acquire()()

	var user User
	result := dbConnector.DB.WithContext(ctx).Select("email").Where("id = ?", sellerID).Take(&user)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return "", &apperrors.NotFoundError{Entity: "user", ID: sellerID}
	}
	if result.Error != nil {
		return "", result.Error
	}
	return user.Email, nil
}

// WithSellerLock takes a transaction-scoped advisory lock keyed by the seller, so creates
// for one seller are serialized across every process sharing the database.
func (dbConnector *DBConnector) WithSellerLock(ctx context.Context, sellerID string, fn func(tx service.Storage) error) error {
	return dbConnector.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", sellerID).Error; err != nil {
			return fmt.Errorf("acquire seller lock: %w", err)
		}
		return fn(&DBConnector{DB: tx, mu: &sync.Mutex{}})
	})
}

func (dbConnector *DBConnector) AddUser(ctx context.Context, newUser *User) error {
	return dbConnector.DB.WithContext(ctx).Create(newUser).Error
}

func (dbConnector *DBConnector) AddProfile(ctx context.Context, profile *TipsterProfile) error {
	return dbConnector.DB.WithContext(ctx).Create(profile).Error
}

func (dbConnector *DBConnector) AddOrder(ctx context.Context, newOrder *Order) error {
	return dbConnector.DB.WithContext(ctx).Create(newOrder).Error
}

func (dbConnector *DBConnector) DeleteAllData(ctx context.Context) error {
	return dbConnector.DB.WithContext(ctx).Exec(
		"TRUNCATE TABLE " + strings.Join([]string{"withdrawal_requests", "invoice_counters", "orders", "tipster_profiles", "users"}, ", "),
	).Error
}

func statusStrings(statuses []models.WithdrawalStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
