package hrest

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"reconciliation-service/internal/domain"
	"reconciliation-service/internal/usecase"
	"reconciliation-service/pkg/response"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
)

type ReconRestHandler struct {
	reconUC   *usecase.ReconciliationUsecase
	accountUC *usecase.AccountUsecase
}

func NewReconRestHandler(
	reconUC *usecase.ReconciliationUsecase,
	accountUC *usecase.AccountUsecase,
) *ReconRestHandler {
	return &ReconRestHandler{
		reconUC:   reconUC,
		accountUC: accountUC,
	}
}

// ===============================
// RUNS
// ===============================

func (h *ReconRestHandler) ExecuteRun(w http.ResponseWriter, r *http.Request) {
	var req domain.ReconciliationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.LedgerTransactions) == 0 && len(req.ExternalTransactions) == 0 {
		response.Error(w, http.StatusBadRequest, "no transactions submitted")
		return
	}

	result, err := h.reconUC.Execute(r.Context(), &req)
	if err != nil {
		handleUsecaseError(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, result)
}

func (h *ReconRestHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	runs, err := h.reconUC.ListRuns(r.Context(), limit)
	if err != nil {
		handleUsecaseError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, runs)
}

func (h *ReconRestHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.reconUC.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		handleUsecaseError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, run)
}

func (h *ReconRestHandler) GetRunResult(w http.ResponseWriter, r *http.Request) {
	result, err := h.reconUC.GetRunResult(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		handleUsecaseError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, result)
}

func (h *ReconRestHandler) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	trail, err := h.reconUC.GetAuditTrail(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		handleUsecaseError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, trail)
}

// ===============================
// ACCOUNTS
// ===============================

func (h *ReconRestHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var in domain.AccountCreate
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account, err := h.accountUC.Create(r.Context(), &in)
	if err != nil {
		handleUsecaseError(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, account)
}

func (h *ReconRestHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accountUC.List(r.Context())
	if err != nil {
		handleUsecaseError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, accounts)
}

func (h *ReconRestHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.accountUC.GetByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		handleUsecaseError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, account)
}

type ThresholdUpdateJSON struct {
	VarianceThreshold  *decimal.Decimal           `json:"variance_threshold"`
	CategoryThresholds map[string]decimal.Decimal `json:"category_thresholds"`
}

func (h *ReconRestHandler) UpdateThresholds(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	var in ThresholdUpdateJSON
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account, err := h.accountUC.UpdateThresholds(r.Context(), code, in.VarianceThreshold, in.CategoryThresholds)
	if err != nil {
		handleUsecaseError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, account)
}

func (h *ReconRestHandler) GetAccountHistory(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	var from, to time.Time
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "invalid 'from' date, expected RFC3339")
			return
		}
		from = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "invalid 'to' date, expected RFC3339")
			return
		}
		to = t
	}

	history, err := h.reconUC.AccountHistory(r.Context(), code, from, to)
	if err != nil {
		handleUsecaseError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, history)
}

// ===============================
// ROUTES
// ===============================

func (h *ReconRestHandler) registerRoutes(r chi.Router) {
	r.Route("/reconciliation", func(r chi.Router) {
		r.Post("/runs", h.ExecuteRun)
		r.Get("/runs", h.ListRuns)
		r.Get("/runs/{runID}", h.GetRun)
		r.Get("/runs/{runID}/result", h.GetRunResult)
		r.Get("/runs/{runID}/audit", h.GetAuditTrail)

		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", h.CreateAccount)
			r.Get("/", h.ListAccounts)
			r.Get("/{code}", h.GetAccount)
			r.Put("/{code}/thresholds", h.UpdateThresholds)
			r.Get("/{code}/history", h.GetAccountHistory)
		})
	})
}

func (h *ReconRestHandler) Start(port string) {
	r := chi.NewRouter()

	// Middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	h.registerRoutes(r)

	server := &http.Server{
		Addr:    port,
		Handler: r,
	}

	log.Printf("🚀 Reconciliation REST service running on %s", port)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("failed to start server: %v", err)
	}
}
