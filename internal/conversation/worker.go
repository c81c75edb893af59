package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/agentestate/outreach/internal/compliance"
	"github.com/agentestate/outreach/internal/leads"
	"github.com/agentestate/outreach/internal/observability/metrics"
	"github.com/agentestate/outreach/pkg/logging"
)

const (
	defaultWorkerCount = 2
	defaultWaitSeconds = 10
	defaultBatchSize   = 5
)

// TranscriptArchiver receives finished conversations for long-term storage.
type TranscriptArchiver interface {
	Archive(ctx context.Context, st *State) error
}

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	runs             RunRecorder
	archiver         TranscriptArchiver
	metrics          *metrics.OutreachMetrics
	optOutDetector   *compliance.OptOutDetector
	optOutStore      *compliance.OptOutStore
}

type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of consumer goroutines.
func WithWorkerCount(n int) WorkerOption {
	return func(cfg *workerConfig) {
		if n > 0 {
			cfg.workers = n
		}
	}
}

// WithRunRecorder wires the per-run audit trail.
func WithRunRecorder(runs RunRecorder) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.runs = runs
	}
}

// WithTranscriptArchiver wires archival of finished conversations.
func WithTranscriptArchiver(a TranscriptArchiver) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.archiver = a
	}
}

// WithMetrics wires pipeline metrics.
func WithMetrics(m *metrics.OutreachMetrics) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.metrics = m
	}
}

// WithOptOutHandling wires STOP detection on inbound replies. The store
// receives the mark; the detector decides what counts as a request.
func WithOptOutHandling(detector *compliance.OptOutDetector, store *compliance.OptOutStore) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.optOutDetector = detector
		cfg.optOutStore = store
	}
}

// Worker drains the outreach queue: it loads or creates the lead's state,
// runs the graph, persists the result, and records the run.
type Worker struct {
	runner    *GraphRunner
	queue     queueClient
	states    StateStore
	leadsRepo leads.Repository
	sms       Messenger
	email     Messenger
	logger    *logging.Logger
	cfg       workerConfig
	wg        sync.WaitGroup
}

// NewWorker constructs a queue consumer around the graph runner. sms and
// email are used only for opt-out confirmations, which bypass the graph.
func NewWorker(runner *GraphRunner, queue queueClient, states StateStore, leadsRepo leads.Repository, sms, email Messenger, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if runner == nil {
		panic("conversation: runner cannot be nil")
	}
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if states == nil {
		panic("conversation: state store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Worker{
		runner:    runner,
		queue:     queue,
		states:    states,
		leadsRepo: leadsRepo,
		sms:       sms,
		email:     email,
		logger:    logger,
		cfg:       cfg,
	}
}

// Start launches worker goroutines until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("outreach worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("outreach worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("failed to receive outreach jobs", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg queueMessage) {
	var payload queuePayload
	if err := json.Unmarshal([]byte(msg.Body), &payload); err != nil {
		w.logger.Error("failed to decode outreach job", "error", err)
		w.deleteMessage(context.Background(), msg.ReceiptHandle)
		return
	}

	started := time.Now()
	w.logger.Info("worker processing job", "job_id", payload.ID, "kind", payload.Kind, "lead_id", payload.LeadID)

	if w.cfg.runs != nil {
		run := &RunRecord{RunID: payload.ID, LeadID: payload.LeadID, Trigger: string(payload.Kind)}
		if err := w.cfg.runs.PutPending(ctx, run); err != nil {
			w.logger.Warn("failed to record pending run", "error", err, "job_id", payload.ID)
		}
	}

	st, err := w.processPayload(ctx, payload)
	status := "completed"
	if err != nil {
		status = "failed"
		w.logger.Error("outreach job failed", "error", err, "job_id", payload.ID, "kind", payload.Kind, "lead_id", payload.LeadID)
		if w.cfg.runs != nil {
			if storeErr := w.cfg.runs.MarkFailed(ctx, payload.ID, err.Error()); storeErr != nil {
				w.logger.Error("failed to update run status", "error", storeErr, "job_id", payload.ID)
			}
		}
	} else if w.cfg.runs != nil {
		finalAction, finalStage := "", ""
		if st != nil {
			finalAction = string(st.NextAction)
			finalStage = string(st.Stage)
		}
		if storeErr := w.cfg.runs.MarkCompleted(ctx, payload.ID, finalAction, finalStage); storeErr != nil {
			w.logger.Error("failed to update run status", "error", storeErr, "job_id", payload.ID)
		}
	}

	w.cfg.metrics.ObserveRun(string(payload.Kind), status, time.Since(started).Seconds())
	w.deleteMessage(context.Background(), msg.ReceiptHandle)
}

// processPayload runs one job through the graph and persists the state. A
// failed run bumps the retry counter and persists it so repeated failures
// cross the escalation threshold. The returned state reflects the run even
// when persisting it failed.
func (w *Worker) processPayload(ctx context.Context, payload queuePayload) (*State, error) {
	st, err := w.loadState(ctx, payload)
	if err != nil {
		return nil, err
	}

	switch payload.Kind {
	case jobTypeInbound:
		if w.cfg.optOutDetector.IsOptOut(payload.Text) {
			err = w.handleOptOut(ctx, st, payload)
		} else {
			_, err = w.runner.Run(ctx, st, payload.Text)
		}
	case jobTypeInitialOutreach:
		_, err = w.runner.Run(ctx, st, "")
	case jobTypeFollowUp:
		_, err = w.runner.RunFollowUp(ctx, st, payload.Sequence)
	case jobTypeNoShow:
		_, err = w.runner.RunNoShow(ctx, st)
	default:
		return nil, fmt.Errorf("conversation: unknown job kind %q", payload.Kind)
	}
	if err != nil {
		st.Apply(Patch{RetryDelta: 1, LastError: stringPtr(err.Error())})
		if saveErr := w.states.Save(ctx, st); saveErr != nil {
			w.logger.Warn("failed to persist retry count", "error", saveErr, "lead_id", st.LeadID)
		}
		return st, err
	}

	if st.EscalationReason != "" {
		w.cfg.metrics.ObserveEscalation()
	}

	if saveErr := w.states.Save(ctx, st); saveErr != nil {
		return st, saveErr
	}

	if w.cfg.archiver != nil && (st.Stage == StageCompleted || st.Stage == StageNotInterested) {
		if archErr := w.cfg.archiver.Archive(ctx, st); archErr != nil {
			w.logger.Warn("transcript archive failed", "error", archErr, "lead_id", st.LeadID)
		}
	}
	return st, nil
}

// loadState fetches the lead's state, creating it from the leads repository
// on the first touch.
func (w *Worker) loadState(ctx context.Context, payload queuePayload) (*State, error) {
	st, err := w.states.Load(ctx, payload.LeadID)
	if err == nil {
		return st, nil
	}
	if !errors.Is(err, ErrStateNotFound) {
		return nil, err
	}
	if w.leadsRepo == nil {
		return nil, fmt.Errorf("conversation: no state for lead %s and no leads repository", payload.LeadID)
	}

	lead, err := w.leadsRepo.GetByID(ctx, payload.LeadID)
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to load lead %s: %w", payload.LeadID, err)
	}
	return NewState(lead), nil
}

// handleOptOut marks the lead opted out, confirms once on the reply channel,
// and closes the conversation. The confirmation bypasses routing and caps;
// it is the one message an opt-out still permits.
func (w *Worker) handleOptOut(ctx context.Context, st *State, payload queuePayload) error {
	if w.cfg.optOutStore != nil && payload.From != "" {
		if err := w.cfg.optOutStore.MarkOptedOut(ctx, payload.From); err != nil {
			return fmt.Errorf("conversation: failed to mark opt-out: %w", err)
		}
	}

	now := time.Now().UTC()
	patch := Patch{
		Handler:        string(NodeSupervisor),
		Stage:          stagePtr(StageNotInterested),
		OptedOut:       boolPtr(true),
		ComplianceTime: timePtr(now),
		NextAction:     actionPtr(ActionOptedOut),
	}

	channel := payload.Channel
	if channel == "" {
		channel = ChannelSMS
	}
	messenger := w.sms
	if channel == ChannelEmail {
		messenger = w.email
	}
	if messenger != nil && payload.From != "" {
		result := messenger.SendMessage(ctx, OutboundMessage{
			LeadID:     st.LeadID,
			CampaignID: st.CampaignID,
			Channel:    channel,
			To:         payload.From,
			Body:       compliance.OptOutConfirmation,
			Purpose:    compliance.PurposeReply,
		})
		patch.AppendLog = []CommAttempt{{
			Channel:           channel,
			Timestamp:         now,
			Body:              compliance.OptOutConfirmation,
			Success:           result.Success,
			ProviderMessageID: result.ProviderMessageID,
			Error:             result.Error,
		}}
		w.cfg.metrics.ObserveMessage(string(channel), sendStatus(result))
	}

	st.Apply(patch)
	w.logger.Info("lead opted out", "lead_id", st.LeadID, "channel", channel)
	return nil
}

func sendStatus(r SendResult) string {
	if r.Success {
		return "sent"
	}
	return "failed"
}

func (w *Worker) deleteMessage(ctx context.Context, receiptHandle string) {
	if err := w.queue.Delete(ctx, receiptHandle); err != nil {
		w.logger.Warn("failed to delete outreach job", "error", err)
	}
}
