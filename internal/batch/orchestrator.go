// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package batch holds the candidate item list and runs sequential download
// batches against the backend.
package batch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ManuGH/wxbridge/internal/backend"
	"github.com/ManuGH/wxbridge/internal/feed"
	xglog "github.com/ManuGH/wxbridge/internal/log"
	"github.com/ManuGH/wxbridge/internal/telemetry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrRunning rejects a start while another run is active.
	ErrRunning = errors.New("a batch download is already running")
	// ErrNothingToDownload means no selected item survived filtering.
	ErrNothingToDownload = errors.New("no downloadable items selected")
	// ErrRunCancelled is the cause attached to a run's context by Cancel.
	ErrRunCancelled = errors.New("download run cancelled")
)

// DefaultItemDelay is the minimum spacing between two download requests.
const DefaultItemDelay = 300 * time.Millisecond

const (
	progressLogEvery = 10
	noticeTimeout    = 5 * time.Second
)

// Backend is the slice of the backend client a run needs.
type Backend interface {
	DownloadVideo(ctx context.Context, req feed.DownloadRequest) (backend.DownloadResult, error)
	CancelDownload(ctx context.Context, videoID string) error
	Tip(ctx context.Context, msg string) error
}

// Summary describes a finished run.
type Summary struct {
	RunID     string    `json:"run_id"`
	Total     int       `json:"total"`
	Attempted int       `json:"attempted"`
	Succeeded int       `json:"succeeded"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	Cancelled bool      `json:"cancelled"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// Message renders the one-line status shown to the user.
func (s Summary) Message() string {
	var b strings.Builder
	if s.Cancelled {
		fmt.Fprintf(&b, "batch download cancelled after %d/%d: ok %d", s.Attempted, s.Total, s.Succeeded)
	} else {
		fmt.Fprintf(&b, "batch download finished: ok %d", s.Succeeded)
	}
	if s.Skipped > 0 {
		b.WriteString(", skipped " + strconv.Itoa(s.Skipped))
	}
	if s.Failed > 0 {
		b.WriteString(", failed " + strconv.Itoa(s.Failed))
	}
	return b.String()
}

// Status is a point-in-time view of the orchestrator.
type Status struct {
	Running     bool           `json:"running"`
	RunID       string         `json:"run_id,omitempty"`
	Index       int            `json:"index"`
	Total       int            `json:"total"`
	CurrentID   string         `json:"current_id,omitempty"`
	Succeeded   int            `json:"succeeded"`
	Skipped     int            `json:"skipped"`
	Failed      int            `json:"failed"`
	Progress    map[string]any `json:"progress,omitempty"`
	Force       bool           `json:"force_redownload"`
	LastSummary *Summary       `json:"last,omitempty"`
}

// run is the state of one active batch. Counters are guarded by Orchestrator.mu.
type run struct {
	id        string
	items     []feed.CandidateItem
	force     bool
	cancelled atomic.Bool
	cancel    context.CancelCauseFunc
	done      chan struct{}

	cursor    int
	current   string
	attempted int
	ok        int
	skipped   int
	failed    int
	progress  map[string]any
	startedAt time.Time
}

// Orchestrator runs at most one download batch at a time.
type Orchestrator struct {
	backend Backend
	delay   time.Duration
	logger  zerolog.Logger
	now     func() time.Time

	mu     sync.Mutex
	active *run
	last   *Summary
	force  bool
	wg     sync.WaitGroup
}

// NewOrchestrator creates an idle orchestrator. A negative delay disables pacing.
func NewOrchestrator(b Backend, delay time.Duration) *Orchestrator {
	if delay == 0 {
		delay = DefaultItemDelay
	}
	return &Orchestrator{
		backend: b,
		delay:   max(delay, 0),
		logger:  xglog.WithComponent("batch"),
		now:     time.Now,
	}
}

// SetForceRedownload changes the default used when a start does not say.
func (o *Orchestrator) SetForceRedownload(force bool) {
	o.mu.Lock()
	o.force = force
	o.mu.Unlock()
}

// ForceRedownload returns the default force flag.
func (o *Orchestrator) ForceRedownload() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.force
}

// Running reports whether a run is active.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active != nil
}

// Start filters items and launches a run in the background. ctx bounds the
// run's lifetime. It returns the run id.
func (o *Orchestrator) Start(ctx context.Context, items []feed.CandidateItem, force bool) (string, error) {
	r, runCtx, err := o.begin(ctx, items, force)
	if err != nil {
		return "", err
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.execute(runCtx, r)
	}()
	return r.id, nil
}

// Run is Start followed by waiting for the run to finish.
func (o *Orchestrator) Run(ctx context.Context, items []feed.CandidateItem, force bool) (Summary, error) {
	r, runCtx, err := o.begin(ctx, items, force)
	if err != nil {
		return Summary{}, err
	}
	return o.execute(runCtx, r), nil
}

// Cancel flags the active run and aborts its in-flight request. It reports
// whether a run was active.
func (o *Orchestrator) Cancel() bool {
	o.mu.Lock()
	r := o.active
	o.mu.Unlock()
	if r == nil {
		return false
	}
	r.cancelled.Store(true)
	r.cancel(ErrRunCancelled)
	o.logger.Info().Str("event", "batch.cancel_requested").Str(xglog.FieldRunID, r.id).Msg("cancel requested")
	return true
}

// Wait blocks until background runs have returned.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Done returns a channel closed when the active run ends, or nil when idle.
func (o *Orchestrator) Done() <-chan struct{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active == nil {
		return nil
	}
	return o.active.done
}

// SetProgress records the latest download_progress push for the active run.
func (o *Orchestrator) SetProgress(payload map[string]any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active != nil {
		o.active.progress = payload
	}
}

// Status returns a snapshot.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := Status{Force: o.force, LastSummary: o.last}
	if r := o.active; r != nil {
		st.Running = true
		st.RunID = r.id
		st.Index = r.cursor
		st.Total = len(r.items)
		st.CurrentID = r.current
		st.Succeeded, st.Skipped, st.Failed = r.ok, r.skipped, r.failed
		st.Progress = r.progress
	}
	return st
}

// Downloadable drops items marked non-downloadable and live streams, and
// normalizes raw host objects. Only media items survive normalization.
func Downloadable(items []feed.CandidateItem) []feed.CandidateItem {
	var out []feed.CandidateItem
	for _, it := range items {
		if !it.CanDownload || it.Kind == feed.KindLive {
			continue
		}
		if it.Normalized() {
			out = append(out, it)
			continue
		}
		if it.Raw == nil {
			continue
		}
		n, ok := feed.Normalize(it.Raw)
		if ok && n.Kind == feed.KindMedia && n.CanDownload {
			out = append(out, *n)
		}
	}
	return out
}

func (o *Orchestrator) begin(ctx context.Context, items []feed.CandidateItem, force bool) (*run, context.Context, error) {
	o.mu.Lock()
	if o.active != nil {
		o.mu.Unlock()
		o.notice(ctx, "download in progress, wait for it to finish or cancel it")
		return nil, nil, ErrRunning
	}
	todo := Downloadable(items)
	if len(todo) == 0 {
		o.mu.Unlock()
		o.notice(ctx, "no downloadable videos selected")
		return nil, nil, ErrNothingToDownload
	}
	runCtx, cancel := context.WithCancelCause(ctx)
	r := &run{
		id:        uuid.NewString(),
		items:     todo,
		force:     force,
		cancel:    cancel,
		done:      make(chan struct{}),
		startedAt: o.now(),
	}
	o.active = r
	o.mu.Unlock()

	runActive.Set(1)
	runCtx = xglog.ContextWithRunID(runCtx, r.id)
	o.notice(runCtx, fmt.Sprintf("starting download of %d videos", len(todo)))
	return r, runCtx, nil
}

func (o *Orchestrator) execute(ctx context.Context, r *run) Summary {
	logger := xglog.WithContext(ctx, o.logger)
	ctx, span := telemetry.Tracer("wxbridge/batch").Start(ctx, "batch.run")
	defer span.End()

	total := len(r.items)

	for i, item := range r.items {
		if r.cancelled.Load() || ctx.Err() != nil {
			r.cancelled.Store(true)
			logger.Info().Str("event", "batch.cancelled").Int(xglog.FieldIndex, i).Int(xglog.FieldTotal, total).Msg("download run cancelled")
			break
		}

		o.mu.Lock()
		r.cursor, r.current, r.progress = i+1, item.ID, nil
		r.attempted++
		o.mu.Unlock()

		if o.attempt(ctx, logger, r, i, item) {
			break
		}
		if (i+1)%progressLogEvery == 0 || i == total-1 {
			logger.Info().Str("event", "batch.progress").Int(xglog.FieldIndex, i+1).Int(xglog.FieldTotal, total).Msg("download progress")
		}
		if i < total-1 && !o.pause(ctx, r) {
			logger.Info().Str("event", "batch.cancelled").Int(xglog.FieldIndex, i+1).Int(xglog.FieldTotal, total).Msg("download run cancelled")
			break
		}
	}

	return o.finish(ctx, logger, r)
}

// pause waits the item delay after an attempt. It reports false once the
// run is cancelled, before or during the wait.
func (o *Orchestrator) pause(ctx context.Context, r *run) bool {
	if r.cancelled.Load() {
		return false
	}
	if o.delay <= 0 {
		return true
	}
	t := time.NewTimer(o.delay)
	defer t.Stop()
	select {
	case <-t.C:
		return !r.cancelled.Load()
	case <-ctx.Done():
		r.cancelled.Store(true)
		return false
	}
}

// attempt downloads one item and reports whether the run must stop.
func (o *Orchestrator) attempt(ctx context.Context, logger zerolog.Logger, r *run, i int, item feed.CandidateItem) bool {
	_, span := telemetry.Tracer("wxbridge/batch").Start(ctx, "batch.item")
	span.SetAttributes(telemetry.DownloadAttributes(r.id, item.ID, i+1, len(r.items))...)
	defer span.End()

	start := time.Now()
	res, err := o.backend.DownloadVideo(ctx, feed.DownloadParams(item, r.force, o.now()))
	itemDuration.Observe(time.Since(start).Seconds())

	if errors.Is(err, backend.ErrCancelled) {
		r.cancelled.Store(true)
		logger.Info().Str("event", "batch.aborted").Str(xglog.FieldItemID, item.ID).Msg("in-flight download aborted")
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), noticeTimeout)
		defer cancel()
		if cerr := o.backend.CancelDownload(nctx, item.ID); cerr != nil {
			logger.Debug().Err(cerr).Str("event", "batch.cancel_notify_failed").Str(xglog.FieldItemID, item.ID).Msg("cancel_download not delivered")
		}
		return true
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	switch {
	case err != nil:
		r.failed++
		itemsTotal.WithLabelValues("failed").Inc()
		span.RecordError(err)
		logger.Warn().Err(err).Str("event", "batch.item_error").Str(xglog.FieldItemID, item.ID).Str(xglog.FieldTitle, item.Title).Msg("download request failed")
	case res.Success && res.Skipped:
		r.skipped++
		itemsTotal.WithLabelValues("skipped").Inc()
	case res.Success:
		r.ok++
		itemsTotal.WithLabelValues("ok").Inc()
	default:
		r.failed++
		itemsTotal.WithLabelValues("failed").Inc()
		msg := res.Error
		if msg == "" {
			msg = "unknown error"
		}
		logger.Warn().Str("event", "batch.item_failed").Str(xglog.FieldItemID, item.ID).Str(xglog.FieldTitle, item.Title).Str("reason", msg).Msg("backend reported download failure")
	}
	return false
}

func (o *Orchestrator) finish(ctx context.Context, logger zerolog.Logger, r *run) Summary {
	o.mu.Lock()
	s := Summary{
		RunID:     r.id,
		Total:     len(r.items),
		Attempted: r.attempted,
		Succeeded: r.ok,
		Skipped:   r.skipped,
		Failed:    r.failed,
		Cancelled: r.cancelled.Load(),
		StartedAt: r.startedAt,
		EndedAt:   o.now(),
	}
	o.active = nil
	o.last = &s
	o.mu.Unlock()

	r.cancel(nil)
	close(r.done)
	runActive.Set(0)
	if s.Cancelled {
		runsTotal.WithLabelValues("cancelled").Inc()
	} else {
		runsTotal.WithLabelValues("completed").Inc()
	}

	logger.Info().
		Str("event", "batch.finished").
		Int(xglog.FieldSuccess, s.Succeeded).
		Int(xglog.FieldSkipped, s.Skipped).
		Int(xglog.FieldFailed, s.Failed).
		Bool("cancelled", s.Cancelled).
		Msg("download run finished")
	o.notice(context.WithoutCancel(ctx), s.Message())
	return s
}

// notice sends a status line to the backend console. Delivery is best effort.
func (o *Orchestrator) notice(ctx context.Context, msg string) {
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), noticeTimeout)
	defer cancel()
	if err := o.backend.Tip(nctx, msg); err != nil {
		o.logger.Debug().Err(err).Str("event", "batch.tip_failed").Msg("status line not delivered")
	}
}
