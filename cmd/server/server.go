package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"hod-momentum-lab/internal/app"
	"hod-momentum-lab/internal/backtest"
	"hod-momentum-lab/internal/config"
	"hod-momentum-lab/internal/decision"
	"hod-momentum-lab/internal/domain"
	"hod-momentum-lab/internal/metrics"
	"hod-momentum-lab/internal/observability"
	"hod-momentum-lab/internal/orchestrator"
	"hod-momentum-lab/internal/reporting"
	"hod-momentum-lab/internal/storage"
	"hod-momentum-lab/internal/stream"
)

// JobStatus is the lifecycle state of an asynchronous backtest.
type JobStatus string

const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// Job tracks one backtest requested over HTTP.
type Job struct {
	ID         string     `json:"id"`
	Status     JobStatus  `json:"status"`
	Symbols    []string   `json:"symbols,omitempty"`
	StartDate  string     `json:"start_date,omitempty"`
	EndDate    string     `json:"end_date,omitempty"`
	RunID      string     `json:"run_id,omitempty"`
	Trades     int        `json:"trades"`
	Persisted  bool       `json:"persisted"`
	Decision   string     `json:"decision,omitempty"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// RunRequest is the optional body of POST /runs. Empty fields fall back to
// the backtest section of the config.
type RunRequest struct {
	Symbols   []string `json:"symbols"`
	StartDate string   `json:"start_date"`
	EndDate   string   `json:"end_date"`
}

// RunResponse is a stored run with its summary and decision gate.
type RunResponse struct {
	RunID       string                       `json:"run_id"`
	StrategyID  string                       `json:"strategy_id"`
	Symbols     []string                     `json:"symbols"`
	StartedAt   time.Time                    `json:"started_at"`
	FinishedAt  time.Time                    `json:"finished_at"`
	TradeCount  int                          `json:"trade_count"`
	TotalPnL    float64                      `json:"total_pnl"`
	Config      json.RawMessage              `json:"config,omitempty"`
	Summary     *metrics.Summary             `json:"summary,omitempty"`
	Decision    *decision.DecisionResult     `json:"decision,omitempty"`
	Eligibility reporting.EligibilitySummary `json:"eligibility"`
}

// EligibilityRecord is the external form of one screen decision.
type EligibilityRecord struct {
	Symbol         string      `json:"symbol"`
	Date           domain.Date `json:"date"`
	Eligible       bool        `json:"eligible"`
	Close          float64     `json:"close"`
	Volume         int64       `json:"volume"`
	AvgVolume      *float64    `json:"avg_volume"`
	RelativeVolume *float64    `json:"relative_volume"`
	Reason         string      `json:"reason"`
}

// StatusResponse is the JSON body of GET /status.
type StatusResponse struct {
	Status        string    `json:"status"`
	Uptime        string    `json:"uptime"`
	StartedAt     time.Time `json:"started_at"`
	Backend       string    `json:"backend"`
	StrategyID    string    `json:"strategy_id"`
	ActiveJob     string    `json:"active_job,omitempty"`
	JobsCompleted int       `json:"jobs_completed"`
	StreamClients int       `json:"stream_clients"`
}

// Server runs backtests on request and serves stored results.
type Server struct {
	cfg      *config.Config
	strategy domain.StrategyConfig
	loc      *time.Location
	stores   *app.Stores
	metrics  *observability.Metrics
	hub      *stream.Hub
	log      zerolog.Logger
	started  time.Time

	// ctx is cancelled on shutdown; running jobs derive from it.
	ctx context.Context
	wg  sync.WaitGroup

	mu        sync.Mutex
	jobs      map[string]*Job
	active    string
	completed int
}

// NewServer wires a server over open stores.
func NewServer(ctx context.Context, cfg *config.Config, stores *app.Stores, m *observability.Metrics, hub *stream.Hub, log zerolog.Logger) (*Server, error) {
	strategy, err := cfg.Strategy.StrategyConfig()
	if err != nil {
		return nil, err
	}
	loc, err := strategy.Location()
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:      cfg,
		strategy: strategy,
		loc:      loc,
		stores:   stores,
		metrics:  m,
		hub:      hub,
		log:      log,
		started:  time.Now(),
		ctx:      ctx,
		jobs:     make(map[string]*Job),
	}, nil
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.Handle("GET /ws", s.hub)

	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /runs", s.handleCreateRun)
	mux.HandleFunc("GET /runs", s.handleListRuns)
	mux.HandleFunc("GET /runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /runs/{id}/trades", s.handleRunTrades)
	mux.HandleFunc("GET /runs/{id}/eligibility", s.handleRunEligibility)
	mux.HandleFunc("GET /runs/{id}/report", s.handleRunReport)
	mux.HandleFunc("GET /jobs/{id}", s.handleGetJob)
	mux.HandleFunc("GET /symbols/{symbol}/summary", s.handleSymbolSummary)

	return mux
}

// Wait blocks until every started job has returned.
func (s *Server) Wait() {
	s.wg.Wait()
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	resp := StatusResponse{
		Status:        "running",
		Uptime:        time.Since(s.started).Round(time.Second).String(),
		StartedAt:     s.started,
		Backend:       s.stores.Backend,
		StrategyID:    s.strategy.ID(),
		ActiveJob:     s.active,
		JobsCompleted: s.completed,
	}
	s.mu.Unlock()
	resp.StreamClients = s.hub.ClientCount()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	bt := s.cfg.Backtest
	if len(req.Symbols) > 0 {
		bt.Symbols = make([]string, len(req.Symbols))
		for i, sym := range req.Symbols {
			bt.Symbols[i] = strings.ToUpper(strings.TrimSpace(sym))
		}
	}
	if req.StartDate != "" {
		bt.StartDate = req.StartDate
	}
	if req.EndDate != "" {
		bt.EndDate = req.EndDate
	}
	start, end, err := bt.DateRange(s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job := &Job{
		ID:        uuid.NewString(),
		Status:    JobQueued,
		Symbols:   bt.Symbols,
		StartDate: bt.StartDate,
		EndDate:   bt.EndDate,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	if s.active != "" {
		active := s.active
		s.mu.Unlock()
		writeJSON(w, http.StatusConflict, map[string]string{"error": "a backtest is already running", "job_id": active})
		return
	}
	s.active = job.ID
	s.jobs[job.ID] = job
	snapshot := *job
	s.mu.Unlock()

	s.wg.Add(1)
	go s.runJob(job.ID, bt, start, end)

	w.Header().Set("Location", "/jobs/"+job.ID)
	writeJSON(w, http.StatusAccepted, snapshot)
}

// runJob executes one backtest and records the outcome on the job.
func (s *Server) runJob(jobID string, bt config.BacktestConfig, start, end time.Time) {
	defer s.wg.Done()

	s.mu.Lock()
	s.jobs[jobID].Status = JobRunning
	s.mu.Unlock()

	log := s.log.With().Str("job_id", jobID).Logger()
	log.Info().Strs("symbols", bt.Symbols).Msg("backtest job started")
	s.hub.RunStarted(jobID)

	result, err := orchestrator.New(orchestrator.Options{
		BarStore:         s.stores.Bars,
		ProfileStore:     s.stores.Profiles,
		TradeStore:       s.stores.Trades,
		EligibilityStore: s.stores.Eligibility,
		RunStore:         s.stores.Runs,
		Config:           s.strategy,
		Symbols:          bt.Symbols,
		Start:            start,
		End:              end,
		Concurrency:      bt.Concurrency,
		Backend:          s.stores.Backend,
		Observer:         backtest.MultiObserver{s.metrics, s.hub.Observer(jobID)},
		Recorder:         s.metrics,
		Logger:           &log,
	}).Run(s.ctx)

	finished := time.Now().UTC()
	s.mu.Lock()
	job := s.jobs[jobID]
	job.FinishedAt = &finished
	if err != nil {
		job.Status = JobFailed
		job.Error = err.Error()
	} else {
		job.Status = JobDone
		job.RunID = result.Backtest.RunID
		job.Trades = len(result.Backtest.Trades)
		job.Persisted = result.Persisted
		if result.Decision != nil {
			job.Decision = string(result.Decision.Decision)
		}
	}
	s.active = ""
	s.completed++
	s.mu.Unlock()

	if err != nil {
		log.Error().Err(err).Msg("backtest job failed")
		return
	}
	s.hub.RunFinished(jobID, result.Backtest.RunID, len(result.Backtest.Trades))
	log.Info().
		Str("run_id", result.Backtest.RunID).
		Int("trades", len(result.Backtest.Trades)).
		Bool("persisted", result.Persisted).
		Msg("backtest job finished")
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	job, ok := s.jobs[r.PathValue("id")]
	var snapshot Job
	if ok {
		snapshot = *job
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.stores.Runs.List(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	out := make([]RunResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, runResponse(run))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	report, err := reporting.NewGenerator(s.stores.Runs, s.stores.Trades, s.stores.Eligibility).
		Generate(r.Context(), r.PathValue("id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	resp := runResponse(&report.Run)
	resp.Config = json.RawMessage(report.Run.ConfigJSON)
	resp.Summary = report.Summary
	resp.Decision = report.Decision
	resp.Eligibility = report.Eligibility
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRunTrades(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.stores.Runs.GetByID(r.Context(), id); err != nil {
		s.storeError(w, err)
		return
	}
	trades, err := s.stores.Trades.GetByRunID(r.Context(), id)
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reporting.LedgerRecords(trades, s.loc))
}

func (s *Server) handleRunEligibility(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.stores.Runs.GetByID(r.Context(), id); err != nil {
		s.storeError(w, err)
		return
	}
	days, err := s.stores.Eligibility.GetByRunID(r.Context(), id)
	if err != nil {
		s.internalError(w, err)
		return
	}

	eligibleOnly := r.URL.Query().Get("eligible") == "true"
	out := make([]EligibilityRecord, 0, len(days))
	for _, d := range days {
		if eligibleOnly && !d.Eligible {
			continue
		}
		out = append(out, EligibilityRecord{
			Symbol:         d.Symbol,
			Date:           d.Date,
			Eligible:       d.Eligible,
			Close:          d.Close,
			Volume:         d.Volume,
			AvgVolume:      d.AvgVolume,
			RelativeVolume: d.RelativeVolume,
			Reason:         d.Reason,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRunReport(w http.ResponseWriter, r *http.Request) {
	report, err := reporting.NewGenerator(s.stores.Runs, s.stores.Trades, s.stores.Eligibility).
		Generate(r.Context(), r.PathValue("id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, reporting.RenderMarkdown(report))
}

func (s *Server) handleSymbolSummary(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(r.PathValue("symbol"))
	summary, err := metrics.NewAggregator(s.stores.Trades, s.stores.Runs).ForSymbol(r.Context(), symbol)
	if errors.Is(err, metrics.ErrNoTrades) {
		writeError(w, http.StatusNotFound, "no trades for "+symbol)
		return
	}
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func runResponse(run *domain.RunRecord) RunResponse {
	return RunResponse{
		RunID:      run.RunID,
		StrategyID: run.StrategyID,
		Symbols:    run.Symbols,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		TradeCount: run.TradeCount,
		TotalPnL:   run.TotalPnL,
	}
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	s.internalError(w, err)
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.log.Error().Err(err).Msg("request failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
