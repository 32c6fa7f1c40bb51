package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/theheadmen/settlement/internal/invoice"
	"github.com/theheadmen/settlement/internal/logger"
	"github.com/theheadmen/settlement/internal/models"
)

type SettlementService interface {
	GetBalance(ctx context.Context, sellerID string) (models.BalanceSnapshot, error)
	CreateWithdrawal(ctx context.Context, sellerID string, in models.CreateWithdrawalInput) (models.CreateWithdrawalResult, error)
	ListWithdrawals(ctx context.Context, sellerID string) ([]models.WithdrawalRequest, error)
	ListAllWithdrawals(ctx context.Context, filter models.WithdrawalFilter) (models.WithdrawalList, error)
	GetWithdrawal(ctx context.Context, id string) (*models.WithdrawalRequest, error)
	Approve(ctx context.Context, id, adminID, note string) (*models.WithdrawalRequest, error)
	MarkPaid(ctx context.Context, id, adminID string, payment models.PaymentInput) (*models.WithdrawalRequest, error)
	Reject(ctx context.Context, id, adminID, reason string) (*models.WithdrawalRequest, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type ServerSystem struct {
	Service    SettlementService
	Logger     *zap.Logger
	Secret     []byte
	InvoiceDir string
	Timeout    time.Duration
	DB         Pinger
}

func NewServerSystem(service SettlementService, logger *zap.Logger, secret []byte, invoiceDir string, timeout time.Duration) *ServerSystem {
	return &ServerSystem{Service: service, Logger: logger, Secret: secret, InvoiceDir: invoiceDir, Timeout: timeout}
}

func (ls *ServerSystem) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(logger.Middleware(ls.Logger))

	r.HandleFunc("/healthz", ls.HealthHandler).Methods("GET")
	r.PathPrefix(invoice.URLPath).Handler(
		http.StripPrefix(invoice.URLPath, http.FileServer(http.Dir(ls.InvoiceDir))),
	).Methods("GET")

	seller := r.PathPrefix("/api/withdrawals").Subrouter()
	seller.Use(AuthMiddleware(ls.Secret, RoleTipster))
	seller.HandleFunc("/balance", ls.GetBalanceHandler).Methods("GET")
	seller.HandleFunc("/request", ls.CreateWithdrawalHandler).Methods("POST")
	seller.HandleFunc("/my", ls.GetMyWithdrawalsHandler).Methods("GET")

	admin := r.PathPrefix("/api/admin/withdrawals").Subrouter()
	admin.Use(AuthMiddleware(ls.Secret, RoleAdmin, RoleSuperAdmin))
	admin.HandleFunc("", ls.ListWithdrawalsHandler).Methods("GET")
	admin.HandleFunc("/{id}", ls.GetWithdrawalHandler).Methods("GET")
	admin.HandleFunc("/{id}/approve", ls.ApproveHandler).Methods("PATCH")
	admin.HandleFunc("/{id}/pay", ls.MarkPaidHandler).Methods("PATCH")
	admin.HandleFunc("/{id}/reject", ls.RejectHandler).Methods("PATCH")

	return r
}

func (ls *ServerSystem) MakeServer(serverAddr string) *http.Server {
	var handler http.Handler = ls.Router()
	if ls.Timeout > 0 {
		handler = http.TimeoutHandler(handler, ls.Timeout, `{"error":"request timed out"}`)
	}
	return &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  15 * time.Second,
	}
}

func (ls *ServerSystem) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if ls.DB != nil {
		if err := ls.DB.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (ls *ServerSystem) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	balance, err := ls.Service.GetBalance(r.Context(), claims.Subject)
	if err != nil {
		ls.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

func (ls *ServerSystem) CreateWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	var in models.CreateWithdrawalInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if key := r.Header.Get("Idempotency-Key"); key != "" && in.IdempotencyKey == "" {
		in.IdempotencyKey = key
	}

	result, err := ls.Service.CreateWithdrawal(r.Context(), claims.Subject, in)
	if err != nil {
		ls.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (ls *ServerSystem) GetMyWithdrawalsHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	withdrawals, err := ls.Service.ListWithdrawals(r.Context(), claims.Subject)
	if err != nil {
		ls.writeServiceError(w, r, err)
		return
	}
	if withdrawals == nil {
		withdrawals = []models.WithdrawalRequest{}
	}
	writeJSON(w, http.StatusOK, withdrawals)
}

func (ls *ServerSystem) ListWithdrawalsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := parseDate(q.Get("startDate"), false)
	if err != nil {
		ls.writeServiceError(w, r, err)
		return
	}
	to, err := parseDate(q.Get("endDate"), true)
	if err != nil {
		ls.writeServiceError(w, r, err)
		return
	}

	list, err := ls.Service.ListAllWithdrawals(r.Context(), models.WithdrawalFilter{
		Status:   models.WithdrawalStatus(q.Get("status")),
		SellerID: q.Get("tipsterId"),
		From:     from,
		To:       to,
	})
	if err != nil {
		ls.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (ls *ServerSystem) GetWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	wr, err := ls.Service.GetWithdrawal(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		ls.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wr)
}

func (ls *ServerSystem) ApproveHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	var req models.ApproveRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	wr, err := ls.Service.Approve(r.Context(), mux.Vars(r)["id"], claims.Subject, req.AdminNote)
	if err != nil {
		ls.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wr)
}

func (ls *ServerSystem) MarkPaidHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	var req models.PaymentInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	wr, err := ls.Service.MarkPaid(r.Context(), mux.Vars(r)["id"], claims.Subject, req)
	if err != nil {
		ls.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wr)
}

func (ls *ServerSystem) RejectHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	var req models.RejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	wr, err := ls.Service.Reject(r.Context(), mux.Vars(r)["id"], claims.Subject, req.Reason)
	if err != nil {
		ls.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wr)
}

// decodeOptional accepts an empty body.
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
