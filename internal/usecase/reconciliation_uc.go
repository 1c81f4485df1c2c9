package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"reconciliation-service/internal/audit"
	"reconciliation-service/internal/domain"
	"reconciliation-service/internal/recon"
	"reconciliation-service/internal/repository"
	"reconciliation-service/pkg/utils"
	"reconciliation-service/pkg/xerrors"
)

const runResultCacheTTL = 24 * time.Hour

// RunDefaults carries the service-level reconciliation knobs. Requests
// may override the tolerance window and amount epsilon per run.
type RunDefaults struct {
	ToleranceDays    int
	AmountEpsilon    decimal.Decimal
	GlobalEpsilon    decimal.Decimal
	DefaultThreshold decimal.Decimal
	Workers          int
}

// EventPublisher pushes run lifecycle events to the message bus.
// Publishing is best-effort and never blocks a run.
type EventPublisher interface {
	PublishRunCompleted(run *domain.ReconciliationRun)
	PublishRunAborted(run *domain.ReconciliationRun, reason string)
}

type ReconciliationUsecase struct {
	runRepo     repository.RunRepository
	txnRepo     repository.TransactionRepository
	resultRepo  repository.ResultRepository
	auditRepo   repository.AuditRepository
	accountUC   *AccountUsecase
	txRunner    repository.TxRunner
	publisher   EventPublisher
	redisClient *redis.Client
	idGen       *utils.RunIDGenerator
	rules       []*recon.Rule
	defaults    RunDefaults
	logger      *zap.Logger
}

func NewReconciliationUsecase(
	runRepo repository.RunRepository,
	txnRepo repository.TransactionRepository,
	resultRepo repository.ResultRepository,
	auditRepo repository.AuditRepository,
	accountUC *AccountUsecase,
	txRunner repository.TxRunner,
	publisher EventPublisher,
	redisClient *redis.Client,
	defaults RunDefaults,
	logger *zap.Logger,
) *ReconciliationUsecase {
	return &ReconciliationUsecase{
		runRepo:     runRepo,
		txnRepo:     txnRepo,
		resultRepo:  resultRepo,
		auditRepo:   auditRepo,
		accountUC:   accountUC,
		txRunner:    txRunner,
		publisher:   publisher,
		redisClient: redisClient,
		idGen:       utils.NewRunIDGenerator(),
		rules:       recon.DefaultRules(),
		defaults:    defaults,
		logger:      logger,
	}
}

// ===============================
// RUN EXECUTION
// ===============================

// Execute runs the full reconciliation pipeline over one request:
// ingest, per-account matching, variance classification, balance
// verification and finalization, with every decision appended to the
// audit trail. The run is single-pass; any fatal condition aborts it
// in full and nothing but the aborted header survives.
func (uc *ReconciliationUsecase) Execute(ctx context.Context, req *domain.ReconciliationRequest) (*domain.ReconciliationResult, error) {
	if req == nil {
		return nil, xerrors.ErrInvalidRequest
	}

	tolerance := uc.defaults.ToleranceDays
	if req.ToleranceDays != nil {
		tolerance = *req.ToleranceDays
	}
	if tolerance < 0 {
		return nil, fmt.Errorf("tolerance days must be non-negative: %w", xerrors.ErrInvalidInput)
	}
	epsilon := uc.defaults.AmountEpsilon
	if req.AmountEpsilon != nil {
		epsilon = *req.AmountEpsilon
	}
	if epsilon.IsNegative() {
		return nil, fmt.Errorf("amount epsilon must be non-negative: %w", xerrors.ErrInvalidInput)
	}
	for code, v := range req.Thresholds {
		if v.IsNegative() {
			return nil, fmt.Errorf("threshold override for account %s must be non-negative: %w", code, xerrors.ErrInvalidInput)
		}
	}

	runID := uc.idGen.GeneratePrefixed("RUN")
	logger := uc.logger.With(zap.String("run_id", runID))

	// bad input never starts a run
	txns, accounts, err := uc.ingest(ctx, runID, req)
	if err != nil {
		logger.Warn("ingestion rejected", zap.Error(err))
		return nil, err
	}
	ts, defaulted := uc.buildThresholds(accounts, req.Thresholds)

	run := &domain.ReconciliationRun{
		RunID:     runID,
		Status:    domain.RunIngested,
		TxnCount:  len(txns),
		CreatedAt: time.Now().UTC(),
	}
	if err := uc.runRepo.Create(ctx, run); err != nil {
		return nil, err
	}

	recorder := audit.NewRecorder(runID, uc.auditRepo, logger)
	defer recorder.Close()

	if _, err := recorder.Record(ctx, domain.OpRunStarted, "", domain.SeverityInfo, nil, map[string]int{
		"ledger_txns":   len(req.LedgerTransactions),
		"external_txns": len(req.ExternalTransactions),
		"accounts":      len(accounts),
	}, "run ingested"); err != nil {
		return nil, uc.abort(ctx, run, "audit trail unavailable", err)
	}

	var warnings []string
	for _, code := range defaulted {
		w := fmt.Sprintf("account %s: no variance threshold configured, default %s substituted",
			code, uc.defaults.DefaultThreshold)
		warnings = append(warnings, w)
		if _, err := recorder.Record(ctx, domain.OpThresholdDefaulted, code, domain.SeverityWarning, nil,
			map[string]string{"threshold": uc.defaults.DefaultThreshold.String()}, w); err != nil {
			return nil, uc.abort(ctx, run, "audit trail unavailable", err)
		}
	}

	// --- matching, fanned out per account ---
	matchSet, err := uc.matchAll(ctx, recorder, runID, txns, tolerance, epsilon)
	if err != nil {
		return nil, uc.abort(ctx, run, "matching failed", err)
	}
	if err := uc.runRepo.UpdateStatus(ctx, runID, domain.RunIngested, domain.RunMatched); err != nil {
		return nil, uc.abort(ctx, run, "state transition failed", err)
	}

	// --- classification over the complete unmatched set ---
	unmatched := make([]*domain.Transaction, 0, len(matchSet.UnmatchedLedger)+len(matchSet.UnmatchedExternal))
	unmatched = append(unmatched, matchSet.UnmatchedLedger...)
	unmatched = append(unmatched, matchSet.UnmatchedExternal...)
	sort.Slice(unmatched, func(i, j int) bool { return unmatched[i].ID < unmatched[j].ID })

	variances, summaries := recon.Classify(unmatched, uc.rules, ts)
	for i, v := range variances {
		if _, err := recorder.Record(ctx, domain.OpVarianceClassified, v.AccountCode, domain.SeverityInfo,
			unmatched[i], v, string(v.Category)); err != nil {
			return nil, uc.abort(ctx, run, "audit trail unavailable", err)
		}
	}
	carryOvers := recon.CarryOvers(unmatched, variances)
	if err := uc.runRepo.UpdateStatus(ctx, runID, domain.RunMatched, domain.RunClassified); err != nil {
		return nil, uc.abort(ctx, run, "state transition failed", err)
	}

	// --- balance verification ---
	vres := recon.Verify(txns, ts, uc.defaults.GlobalEpsilon)
	for _, rep := range vres.Reports {
		rep.RunID = runID
		if _, err := recorder.Record(ctx, domain.OpBalanceComputed, rep.AccountCode, domain.SeverityInfo,
			nil, rep, ""); err != nil {
			return nil, uc.abort(ctx, run, "audit trail unavailable", err)
		}
	}
	if err := uc.runRepo.UpdateStatus(ctx, runID, domain.RunClassified, domain.RunVerified); err != nil {
		return nil, uc.abort(ctx, run, "state transition failed", err)
	}

	verdict := domain.RunBalanced
	severity := domain.SeverityInfo
	if vres.Status == domain.StatusImbalanced {
		verdict = domain.RunImbalanced
		severity = domain.SeverityWarning
	}
	if _, err := recorder.Record(ctx, domain.OpStatusComputed, "", severity, nil, map[string]string{
		"status":        string(vres.Status),
		"total_debits":  vres.Debits.String(),
		"total_credits": vres.Credits.String(),
		"imbalance":     vres.Imbalance.String(),
	}, ""); err != nil {
		return nil, uc.abort(ctx, run, "audit trail unavailable", err)
	}
	if err := uc.runRepo.UpdateStatus(ctx, runID, domain.RunVerified, verdict); err != nil {
		return nil, uc.abort(ctx, run, "state transition failed", err)
	}

	// --- finalize ---
	completed := time.Now().UTC()
	run.Status = domain.RunAudited
	run.Result = vres.Status
	run.Debits = vres.Debits
	run.Credits = vres.Credits
	run.Imbalance = vres.Imbalance
	run.Matched = len(matchSet.Matches)
	run.Variances = len(variances)
	run.Ambiguities = len(matchSet.Ambiguities)
	run.Warnings = warnings
	run.CompletedAt = &completed

	if _, err := recorder.Record(ctx, domain.OpRunFinalized, "", domain.SeverityInfo, nil, run, "run complete"); err != nil {
		return nil, uc.abort(ctx, run, "audit trail unavailable", err)
	}

	err = uc.txRunner.WithinTx(ctx, func(tx pgx.Tx) error {
		if err := uc.txnRepo.CreateBatch(ctx, tx, txns); err != nil {
			return err
		}
		if err := uc.resultRepo.CreateMatches(ctx, tx, matchSet.Matches); err != nil {
			return err
		}
		if err := uc.resultRepo.CreateVariances(ctx, tx, variances); err != nil {
			return err
		}
		if err := uc.resultRepo.CreateBalanceReports(ctx, tx, vres.Reports); err != nil {
			return err
		}
		return uc.runRepo.FinalizeTx(ctx, tx, run)
	})
	if err != nil {
		return nil, uc.abort(ctx, run, "persisting run results failed", err)
	}

	result := &domain.ReconciliationResult{
		RunID:       runID,
		Status:      vres.Status,
		Debits:      vres.Debits,
		Credits:     vres.Credits,
		Imbalance:   vres.Imbalance,
		PerAccount:  vres.Reports,
		Summaries:   summaries,
		CarryOvers:  carryOvers,
		MatchRate:   matchSet.MatchRate(),
		Matched:     run.Matched,
		Variances:   run.Variances,
		Ambiguities: run.Ambiguities,
	}
	uc.cacheResult(ctx, result)
	if uc.publisher != nil {
		uc.publisher.PublishRunCompleted(run)
	}

	logger.Info("reconciliation run complete",
		zap.String("status", string(vres.Status)),
		zap.Int("transactions", run.TxnCount),
		zap.Int("matched", run.Matched),
		zap.Int("variances", run.Variances))
	return result, nil
}

// ingest normalizes and validates the inbound records. IDs are
// assigned in input order, ledger side first, and every referenced
// account must exist before the run may start.
func (uc *ReconciliationUsecase) ingest(ctx context.Context, runID string, req *domain.ReconciliationRequest) ([]*domain.Transaction, map[string]*domain.Account, error) {
	txns := make([]*domain.Transaction, 0, len(req.LedgerTransactions)+len(req.ExternalTransactions))
	accounts := map[string]*domain.Account{}

	var id int64
	normalize := func(in *domain.TransactionInput, source domain.TransactionSource) error {
		if in == nil {
			return &xerrors.IngestionError{Source: string(source), Reason: "empty record"}
		}
		code := strings.TrimSpace(in.AccountCode)
		if code == "" {
			return &xerrors.IngestionError{Source: string(source), Reason: "missing account reference"}
		}
		if in.Date.IsZero() {
			return &xerrors.IngestionError{Source: string(source), AccountCode: code, Reason: "missing transaction date"}
		}
		if !in.Sign.IsValid() {
			return &xerrors.IngestionError{Source: string(source), AccountCode: code, Reason: fmt.Sprintf("unrecognized sign %q", in.Sign)}
		}
		if _, ok := accounts[code]; !ok {
			account, err := uc.accountUC.GetByCode(ctx, code)
			if err != nil {
				if errors.Is(err, xerrors.ErrAccountNotFound) {
					return &xerrors.IngestionError{Source: string(source), AccountCode: code, Reason: "unknown account"}
				}
				return fmt.Errorf("failed to resolve account %s: %w", code, err)
			}
			accounts[code] = account
		}
		id++
		txns = append(txns, &domain.Transaction{
			ID:          id,
			RunID:       runID,
			AccountCode: code,
			Date:        in.Date,
			Amount:      in.SignedAmount(),
			Description: in.Description,
			Source:      source,
		})
		return nil
	}

	for _, in := range req.LedgerTransactions {
		if err := normalize(in, domain.SourceLedger); err != nil {
			return nil, nil, err
		}
	}
	for _, in := range req.ExternalTransactions {
		if err := normalize(in, domain.SourceExternal); err != nil {
			return nil, nil, err
		}
	}
	return txns, accounts, nil
}

// buildThresholds resolves each account's threshold: request override
// first, then the stored account configuration, then the documented
// default. Accounts that fell through to the default come back sorted
// for warning entries.
func (uc *ReconciliationUsecase) buildThresholds(accounts map[string]*domain.Account, overrides map[string]decimal.Decimal) (*recon.ThresholdSet, []string) {
	ts := &recon.ThresholdSet{
		Default:    uc.defaults.DefaultThreshold,
		ByAccount:  map[string]decimal.Decimal{},
		ByCategory: map[string]map[domain.VarianceCategory]decimal.Decimal{},
	}
	var defaulted []string
	for code, account := range accounts {
		if v, ok := overrides[code]; ok {
			ts.ByAccount[code] = v
		} else if account.VarianceThreshold != nil {
			ts.ByAccount[code] = *account.VarianceThreshold
		} else {
			defaulted = append(defaulted, code)
		}
		if len(account.CategoryThresholds) > 0 {
			limits := map[domain.VarianceCategory]decimal.Decimal{}
			for cat, v := range account.CategoryThresholds {
				limits[domain.VarianceCategory(strings.ToUpper(cat))] = v
			}
			ts.ByCategory[code] = limits
		}
	}
	sort.Strings(defaulted)
	return ts, defaulted
}

// matchAll fans per-account matching out to a bounded worker pool and
// waits on the fan-in barrier; classification needs every account's
// result before it may start. Match identifiers are stamped after the
// barrier in account order, so identical inputs always produce
// identical IDs.
func (uc *ReconciliationUsecase) matchAll(ctx context.Context, recorder *audit.Recorder, runID string, txns []*domain.Transaction, toleranceDays int, epsilon decimal.Decimal) (*domain.MatchSet, error) {
	ledgerByAcct := map[string][]*domain.Transaction{}
	externalByAcct := map[string][]*domain.Transaction{}
	byID := make(map[int64]*domain.Transaction, len(txns))
	var accounts []string
	for _, t := range txns {
		byID[t.ID] = t
		if _, seen := ledgerByAcct[t.AccountCode]; !seen {
			if _, seen := externalByAcct[t.AccountCode]; !seen {
				accounts = append(accounts, t.AccountCode)
			}
		}
		if t.Source == domain.SourceLedger {
			ledgerByAcct[t.AccountCode] = append(ledgerByAcct[t.AccountCode], t)
		} else {
			externalByAcct[t.AccountCode] = append(externalByAcct[t.AccountCode], t)
		}
	}
	sort.Strings(accounts)

	combined := &domain.MatchSet{}
	if len(accounts) == 0 {
		return combined, nil
	}

	workers := uc.defaults.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(accounts) {
		workers = len(accounts)
	}

	type matchOutcome struct {
		account string
		set     *domain.MatchSet
		err     error
	}
	jobs := make(chan string, len(accounts))
	results := make(chan matchOutcome, len(accounts))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for code := range jobs {
				set := recon.Match(ledgerByAcct[code], externalByAcct[code], toleranceDays, epsilon)
				err := uc.recordMatches(ctx, recorder, code, set, byID)
				results <- matchOutcome{account: code, set: set, err: err}
			}
		}()
	}
	for _, code := range accounts {
		jobs <- code
	}
	close(jobs)
	wg.Wait()
	close(results)

	sets := make(map[string]*domain.MatchSet, len(accounts))
	for out := range results {
		if out.err != nil {
			return nil, out.err
		}
		sets[out.account] = out.set
	}

	var matchID int64
	for _, code := range accounts {
		set := sets[code]
		for _, m := range set.Matches {
			matchID++
			m.ID = matchID
			m.RunID = runID
			byID[m.LedgerTxnID].MatchID = &m.ID
			byID[m.ExternalTxnID].MatchID = &m.ID
		}
		combined.Matches = append(combined.Matches, set.Matches...)
		combined.UnmatchedLedger = append(combined.UnmatchedLedger, set.UnmatchedLedger...)
		combined.UnmatchedExternal = append(combined.UnmatchedExternal, set.UnmatchedExternal...)
		combined.Ambiguities = append(combined.Ambiguities, set.Ambiguities...)
	}
	return combined, nil
}

func (uc *ReconciliationUsecase) recordMatches(ctx context.Context, recorder *audit.Recorder, account string, set *domain.MatchSet, byID map[int64]*domain.Transaction) error {
	for _, m := range set.Matches {
		before := map[string]any{
			"ledger_txn":   byID[m.LedgerTxnID],
			"external_txn": byID[m.ExternalTxnID],
		}
		if _, err := recorder.Record(ctx, domain.OpMatchAccepted, account, domain.SeverityInfo, before, m,
			fmt.Sprintf("ledger txn %d matched external txn %d", m.LedgerTxnID, m.ExternalTxnID)); err != nil {
			return err
		}
	}
	for _, amb := range set.Ambiguities {
		if _, err := recorder.Record(ctx, domain.OpMatchAmbiguity, account, domain.SeverityInfo, nil, amb, amb.Rationale); err != nil {
			return err
		}
	}
	return nil
}

// abort marks the run discarded. Partial results never reach storage;
// only the aborted header remains as evidence the run happened.
func (uc *ReconciliationUsecase) abort(ctx context.Context, run *domain.ReconciliationRun, reason string, cause error) error {
	uc.logger.Error("reconciliation run aborted",
		zap.String("run_id", run.RunID),
		zap.String("reason", reason),
		zap.Error(cause))
	if err := uc.runRepo.Abort(ctx, run.RunID, fmt.Sprintf("%s: %v", reason, cause)); err != nil {
		uc.logger.Error("failed to mark run aborted", zap.String("run_id", run.RunID), zap.Error(err))
	}
	if uc.publisher != nil {
		uc.publisher.PublishRunAborted(run, reason)
	}
	return cause
}

// ===============================
// RUN QUERIES
// ===============================

func (uc *ReconciliationUsecase) GetRun(ctx context.Context, runID string) (*domain.ReconciliationRun, error) {
	if !utils.ValidateRunID(runID) {
		return nil, xerrors.ErrRunNotFound
	}
	return uc.runRepo.GetByID(ctx, runID)
}

func (uc *ReconciliationUsecase) ListRuns(ctx context.Context, limit int) ([]*domain.ReconciliationRun, error) {
	return uc.runRepo.List(ctx, limit)
}

// GetRunResult returns the terminal outcome of a completed run,
// preferring the cached copy, which still carries the variance
// summaries and carry-over entries computed at run time.
func (uc *ReconciliationUsecase) GetRunResult(ctx context.Context, runID string) (*domain.ReconciliationResult, error) {
	if !utils.ValidateRunID(runID) {
		return nil, xerrors.ErrRunNotFound
	}

	// --- Check Redis cache first ---
	if uc.redisClient != nil {
		if val, err := uc.redisClient.Get(ctx, runResultCacheKey(runID)).Result(); err == nil {
			var result domain.ReconciliationResult
			if jsonErr := json.Unmarshal([]byte(val), &result); jsonErr == nil {
				return &result, nil
			}
		}
	}

	run, err := uc.runRepo.GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status != domain.RunAudited {
		return nil, xerrors.ErrRunNotTerminal
	}

	reports, err := uc.resultRepo.ListBalanceReports(ctx, runID)
	if err != nil {
		return nil, err
	}
	txns, err := uc.txnRepo.ListByRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	var ledgerTotal, ledgerMatched int64
	for _, t := range txns {
		if t.Source != domain.SourceLedger {
			continue
		}
		ledgerTotal++
		if t.MatchID != nil {
			ledgerMatched++
		}
	}
	rate := decimal.NewFromInt(100)
	if ledgerTotal > 0 {
		rate = decimal.NewFromInt(ledgerMatched * 100).Div(decimal.NewFromInt(ledgerTotal)).Round(2)
	}

	result := &domain.ReconciliationResult{
		RunID:       run.RunID,
		Status:      run.Result,
		Debits:      run.Debits,
		Credits:     run.Credits,
		Imbalance:   run.Imbalance,
		PerAccount:  reports,
		MatchRate:   rate,
		Matched:     run.Matched,
		Variances:   run.Variances,
		Ambiguities: run.Ambiguities,
	}
	uc.cacheResult(ctx, result)
	return result, nil
}

// GetAuditTrail returns the run's full audit sequence in append order.
func (uc *ReconciliationUsecase) GetAuditTrail(ctx context.Context, runID string) ([]*domain.AuditEntry, error) {
	if !utils.ValidateRunID(runID) {
		return nil, xerrors.ErrRunNotFound
	}
	if _, err := uc.runRepo.GetByID(ctx, runID); err != nil {
		return nil, err
	}
	return uc.auditRepo.ListByRun(ctx, runID)
}

// AccountHistory collects one account's variances and balance reports
// across completed runs in the window, for chasing timing items that
// were expected to reverse.
func (uc *ReconciliationUsecase) AccountHistory(ctx context.Context, code string, from, to time.Time) (*domain.AccountHistory, error) {
	if _, err := uc.accountUC.GetByCode(ctx, code); err != nil {
		return nil, err
	}
	if from.IsZero() {
		from = time.Now().AddDate(0, -1, 0) // Default to 1 month ago
	}
	if to.IsZero() {
		to = time.Now() // Default to now
	}

	variances, err := uc.resultRepo.ListAccountVariances(ctx, code, from, to)
	if err != nil {
		return nil, err
	}
	reports, err := uc.resultRepo.ListAccountReports(ctx, code, from, to)
	if err != nil {
		return nil, err
	}

	return &domain.AccountHistory{
		AccountCode: code,
		From:        from,
		To:          to,
		Variances:   variances,
		Reports:     reports,
	}, nil
}

func runResultCacheKey(runID string) string {
	return fmt.Sprintf("recon:run:%s", runID)
}

func (uc *ReconciliationUsecase) cacheResult(ctx context.Context, result *domain.ReconciliationResult) {
	if uc.redisClient == nil {
		return
	}
	if data, err := json.Marshal(result); err == nil {
		_ = uc.redisClient.Set(ctx, runResultCacheKey(result.RunID), data, runResultCacheTTL).Err()
	}
}
