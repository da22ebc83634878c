package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"HomeworkSentinel/internal/collector"
	"HomeworkSentinel/internal/config"
	"HomeworkSentinel/internal/model"
	"HomeworkSentinel/internal/notifier"
	"HomeworkSentinel/internal/recorder"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// Cycle outcomes stored in the audit trail.
const (
	OutcomeNotified  = "NOTIFIED"
	OutcomeUnchanged = "UNCHANGED"
	OutcomeFailed    = "FAILED"
)

// Notifier delivers a message to the operator's chat.
type Notifier interface {
	SendWithRetry(ctx context.Context, text string) error
}

// Poller drives the fetch, validate, notify, sleep loop. It is not safe for
// concurrent use; Run owns all of its state.
type Poller struct {
	Schedule  cron.Schedule
	Collector *collector.Collector
	Notifier  Notifier
	Recorder  recorder.Recorder
	Debug     bool

	cursor      int64
	lastMessage string
}

// NewPoller creates a Poller. It fails with model.ErrMissingCredentials before
// touching any collaborator when a credential is absent.
func NewPoller(cfg *config.Config, col *collector.Collector, n Notifier, rec recorder.Recorder) (*Poller, error) {
	if !cfg.CheckTokens() {
		return nil, fmt.Errorf("%w: %s", model.ErrMissingCredentials, strings.Join(cfg.MissingTokens(), ", "))
	}
	sched, err := cron.ParseStandard(cfg.Schedule.PollSpec)
	if err != nil {
		return nil, fmt.Errorf("parse poll spec %q: %w", cfg.Schedule.PollSpec, err)
	}
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Poller{
		Schedule:  sched,
		Collector: col,
		Notifier:  n,
		Recorder:  rec,
		Debug:     cfg.Debug,
		cursor:    cfg.InitialCursor(time.Now()),
	}, nil
}

// Cursor returns the from_date of the next request.
func (p *Poller) Cursor() int64 { return p.cursor }

// LastMessage returns the text of the last delivered message.
func (p *Poller) LastMessage() string { return p.lastMessage }

// Run polls until ctx is cancelled. The wait before the next cycle starts
// after the current one finishes, whatever its outcome.
func (p *Poller) Run(ctx context.Context) {
	log.Printf("[INFO] poller: started, from_date=%d", p.cursor)
	for {
		_ = p.RunCycle(ctx)
		if !p.wait(ctx) {
			log.Println("[INFO] poller: stopped")
			return
		}
	}
}

func (p *Poller) wait(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	d := time.Until(p.Schedule.Next(time.Now()))
	if d < 0 {
		d = 0
	}
	if p.Debug {
		log.Printf("[DEBUG] poller: sleeping %v", d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return ctx.Err() == nil
	}
}

// RunCycle performs one cycle. Every failure is handled here; the returned
// error only reports what happened.
func (p *Poller) RunCycle(ctx context.Context) error {
	cycleID := uuid.NewString()
	fromDate := p.cursor

	homeworks, cursor, err := p.Collector.Collect(ctx, fromDate)
	p.cursor = cursor
	if err != nil {
		p.handleFailure(ctx, cycleID, fromDate, err)
		return err
	}

	var hw model.Homework
	message := notifier.EmptyListMessage
	if len(homeworks) > 0 {
		hw = homeworks[0]
		message, err = notifier.ParseStatus(hw)
		if err != nil {
			p.handleFailure(ctx, cycleID, fromDate, err)
			return err
		}
	}

	if message == p.lastMessage {
		if p.Debug {
			log.Printf("[DEBUG] poller: cycle %s: no status change", cycleID)
		}
		p.recordCycle(cycleID, fromDate, OutcomeUnchanged, nil)
		return nil
	}
	if p.Debug {
		log.Printf("[DEBUG] poller: cycle %s: sending %q", cycleID, message)
	}

	if err := p.Notifier.SendWithRetry(ctx, message); err != nil {
		p.handleFailure(ctx, cycleID, fromDate, err)
		return err
	}
	p.lastMessage = message

	p.recordNotification(&recorder.NotificationEvent{
		CycleID:      cycleID,
		HomeworkName: hw.HomeworkName,
		Status:       hw.Status,
		Message:      message,
	})
	p.recordCycle(cycleID, fromDate, OutcomeNotified, nil)
	return nil
}

// handleFailure logs err and, for transport and uncategorized failures,
// alerts the chat on a best-effort basis. A failure caused by shutdown is
// neither recorded nor reported.
func (p *Poller) handleFailure(ctx context.Context, cycleID string, fromDate int64, err error) {
	if ctx.Err() != nil {
		log.Printf("[INFO] poller: cycle %s interrupted by shutdown: %v", cycleID, err)
		return
	}
	kind := model.KindOf(err)

	var answerErr *model.AnswerError
	if errors.As(err, &answerErr) {
		log.Printf("[ERROR] poller: cycle %s: %s error: %v (%s)", cycleID, kind, err, answerErr.Diagnostics())
	} else {
		log.Printf("[ERROR] poller: cycle %s: %s error: %v", cycleID, kind, err)
	}
	p.recordCycle(cycleID, fromDate, OutcomeFailed, err)

	switch kind {
	case model.KindShape, model.KindDomain, model.KindDelivery:
		return
	}
	p.alert(ctx, cycleID, err)
}

func (p *Poller) alert(ctx context.Context, cycleID string, cause error) {
	message := notifier.FormatAlert(cause)
	if message == p.lastMessage {
		log.Printf("[INFO] poller: cycle %s: failure already reported", cycleID)
		return
	}
	if err := p.Notifier.SendWithRetry(ctx, message); err != nil {
		log.Printf("[ERROR] poller: cycle %s: alert not delivered: %v", cycleID, err)
		return
	}
	p.lastMessage = message
	p.recordNotification(&recorder.NotificationEvent{
		CycleID: cycleID,
		Message: message,
		Alert:   true,
	})
}

func (p *Poller) recordCycle(cycleID string, fromDate int64, outcome string, err error) {
	evt := &recorder.CycleEvent{
		CycleID:   cycleID,
		FromDate:  fromDate,
		NewCursor: p.cursor,
		Outcome:   outcome,
	}
	if err != nil {
		evt.ErrorKind = model.KindOf(err).String()
		evt.Error = err.Error()
	}
	if rerr := p.Recorder.RecordCycle(evt); rerr != nil {
		log.Printf("[WARN] poller: record cycle %s: %v", cycleID, rerr)
	}
}

func (p *Poller) recordNotification(evt *recorder.NotificationEvent) {
	if err := p.Recorder.RecordNotification(evt); err != nil {
		log.Printf("[WARN] poller: record notification: %v", err)
	}
}
