package scheduler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"HomeworkSentinel/internal/collector"
	"HomeworkSentinel/internal/config"
	"HomeworkSentinel/internal/model"
	"HomeworkSentinel/internal/notifier"
	"HomeworkSentinel/internal/recorder"
)

const approvedMessage = `Changed review status for "proj1": Работа проверена: ревьюеру всё понравилось. Ура!`

type fakeNotifier struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (f *fakeNotifier) SendWithRetry(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return f.err
}

func (f *fakeNotifier) Texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

type spyRecorder struct {
	recorder.NoopRecorder
	cycles        []recorder.CycleEvent
	notifications []recorder.NotificationEvent
}

func (s *spyRecorder) RecordCycle(evt *recorder.CycleEvent) error {
	s.cycles = append(s.cycles, *evt)
	return nil
}

func (s *spyRecorder) RecordNotification(evt *recorder.NotificationEvent) error {
	s.notifications = append(s.notifications, *evt)
	return nil
}

func testConfig(fromDate int64) *config.Config {
	cfg := &config.Config{}
	cfg.Practicum.Token = "practicum"
	cfg.Telegram.BotToken = "bot"
	cfg.Telegram.ChatID = "42"
	cfg.Schedule.PollSpec = "@every 10m"
	cfg.Practicum.FromDate = &fromDate
	return cfg
}

func newTestPoller(t *testing.T, fetcher *collector.MockFetcher, n Notifier) (*Poller, *spyRecorder) {
	t.Helper()
	rec := &spyRecorder{}
	p, err := NewPoller(testConfig(0), collector.NewCollector(fetcher), n, rec)
	require.NoError(t, err)
	return p, rec
}

func TestNewPoller_MissingCredentials(t *testing.T) {
	for _, drop := range []string{"practicum", "bot", "chat"} {
		t.Run(drop, func(t *testing.T) {
			cfg := testConfig(0)
			switch drop {
			case "practicum":
				cfg.Practicum.Token = ""
			case "bot":
				cfg.Telegram.BotToken = ""
			case "chat":
				cfg.Telegram.ChatID = ""
			}
			fetcher := &collector.MockFetcher{}
			n := &fakeNotifier{}

			p, err := NewPoller(cfg, collector.NewCollector(fetcher), n, nil)
			assert.Nil(t, p)
			assert.ErrorIs(t, err, model.ErrMissingCredentials)
			assert.Equal(t, model.KindFatal, model.KindOf(err))
			assert.Empty(t, fetcher.Calls())
			assert.Empty(t, n.Texts())
		})
	}
}

func TestNewPoller_BadPollSpec(t *testing.T) {
	cfg := testConfig(0)
	cfg.Schedule.PollSpec = "every now and then"

	_, err := NewPoller(cfg, collector.NewCollector(&collector.MockFetcher{}), &fakeNotifier{}, nil)
	assert.Error(t, err)
}

func TestRunCycle_EndToEnd(t *testing.T) {
	fetcher := &collector.MockFetcher{Responses: []string{
		`{"homeworks":[{"homework_name":"proj1","status":"approved"}],"current_date":1000}`,
	}}
	n := &fakeNotifier{}
	p, rec := newTestPoller(t, fetcher, n)

	require.NoError(t, p.RunCycle(context.Background()))

	assert.Equal(t, []string{approvedMessage}, n.Texts())
	assert.Equal(t, int64(1000), p.Cursor())
	assert.Equal(t, approvedMessage, p.LastMessage())
	require.Len(t, rec.notifications, 1)
	assert.Equal(t, "proj1", rec.notifications[0].HomeworkName)
	assert.Equal(t, "approved", rec.notifications[0].Status)
	require.Len(t, rec.cycles, 1)
	assert.Equal(t, OutcomeNotified, rec.cycles[0].Outcome)
	assert.NotEmpty(t, rec.cycles[0].CycleID)
}

func TestRunCycle_OnlyFirstHomeworkCounts(t *testing.T) {
	fetcher := &collector.MockFetcher{Responses: []string{
		`{"homeworks":[{"homework_name":"proj2","status":"reviewing"},{"homework_name":"proj1","status":"bogus"}],"current_date":1}`,
	}}
	n := &fakeNotifier{}
	p, _ := newTestPoller(t, fetcher, n)

	require.NoError(t, p.RunCycle(context.Background()))
	assert.Equal(t, []string{`Changed review status for "proj2": Работа взята на проверку ревьюером.`}, n.Texts())
}

func TestRunCycle_EmptyList(t *testing.T) {
	fetcher := &collector.MockFetcher{Responses: []string{`{"homeworks":[],"current_date":5}`}}
	n := &fakeNotifier{}
	p, _ := newTestPoller(t, fetcher, n)

	require.NoError(t, p.RunCycle(context.Background()))
	assert.Equal(t, []string{notifier.EmptyListMessage}, n.Texts())
}

func TestRunCycle_DuplicateSuppressed(t *testing.T) {
	fetcher := &collector.MockFetcher{Responses: []string{
		`{"homeworks":[{"homework_name":"proj1","status":"approved"}],"current_date":1000}`,
	}}
	n := &fakeNotifier{}
	p, rec := newTestPoller(t, fetcher, n)

	require.NoError(t, p.RunCycle(context.Background()))
	require.NoError(t, p.RunCycle(context.Background()))
	require.NoError(t, p.RunCycle(context.Background()))

	assert.Len(t, n.Texts(), 1)
	require.Len(t, rec.cycles, 3)
	assert.Equal(t, OutcomeUnchanged, rec.cycles[1].Outcome)
	assert.Equal(t, OutcomeUnchanged, rec.cycles[2].Outcome)
}

func TestRunCycle_StatusChangeIsSent(t *testing.T) {
	fetcher := &collector.MockFetcher{Responses: []string{
		`{"homeworks":[{"homework_name":"proj1","status":"reviewing"}],"current_date":1000}`,
		`{"homeworks":[{"homework_name":"proj1","status":"approved"}],"current_date":2000}`,
	}}
	n := &fakeNotifier{}
	p, _ := newTestPoller(t, fetcher, n)

	require.NoError(t, p.RunCycle(context.Background()))
	require.NoError(t, p.RunCycle(context.Background()))

	texts := n.Texts()
	require.Len(t, texts, 2)
	assert.Equal(t, approvedMessage, texts[1])
}

func TestRunCycle_CursorUpdate(t *testing.T) {
	fetcher := &collector.MockFetcher{Responses: []string{
		`{"homeworks":[],"current_date":1000}`,
		`{"homeworks":[]}`,
		`{"homeworks":[],"current_date":3000}`,
	}}
	p, _ := newTestPoller(t, fetcher, &fakeNotifier{})

	_ = p.RunCycle(context.Background())
	_ = p.RunCycle(context.Background())
	_ = p.RunCycle(context.Background())
	_ = p.RunCycle(context.Background())

	assert.Equal(t, []int64{0, 1000, 1000, 3000}, fetcher.Calls())
}

func TestRunCycle_ShapeErrorsDoNotNotify(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"homeworks null", `{"homeworks":null,"current_date":1}`, model.ErrMissingKey},
		{"homeworks absent", `{"current_date":1}`, model.ErrMissingKey},
		{"homeworks not a list", `{"homeworks":{"homework_name":"a","status":"approved"},"current_date":1}`, model.ErrShape},
		{"not an object", `[1,2]`, model.ErrTypeMismatch},
		{"unknown status", `{"homeworks":[{"homework_name":"a","status":"lost"}],"current_date":1}`, model.ErrUnknownStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &collector.MockFetcher{Responses: []string{tt.raw}}
			n := &fakeNotifier{}
			p, rec := newTestPoller(t, fetcher, n)

			err := p.RunCycle(context.Background())
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, n.Texts())
			require.Len(t, rec.cycles, 1)
			assert.Equal(t, OutcomeFailed, rec.cycles[0].Outcome)
		})
	}
}

func TestRunCycle_TransportFailureAlertsOnce(t *testing.T) {
	cause := &model.OperationError{Op: "get homework statuses", Err: errors.New("connection refused")}
	fetcher := &collector.MockFetcher{Errs: []error{cause}}
	n := &fakeNotifier{}
	p, rec := newTestPoller(t, fetcher, n)

	assert.ErrorIs(t, p.RunCycle(context.Background()), model.ErrOperation)
	assert.ErrorIs(t, p.RunCycle(context.Background()), model.ErrOperation)

	texts := n.Texts()
	require.Len(t, texts, 1)
	assert.True(t, strings.HasPrefix(texts[0], "Сбой в работе программы: "))
	assert.Contains(t, texts[0], "connection refused")
	require.Len(t, rec.notifications, 1)
	assert.True(t, rec.notifications[0].Alert)
	assert.Equal(t, "transport", rec.cycles[0].ErrorKind)
	assert.Equal(t, int64(0), p.Cursor())
}

func TestRunCycle_AnswerErrorAlerts(t *testing.T) {
	fetcher := &collector.MockFetcher{Errs: []error{&model.AnswerError{StatusCode: 503, Reason: "Service Unavailable", Endpoint: "https://example.test/"}}}
	n := &fakeNotifier{}
	p, _ := newTestPoller(t, fetcher, n)

	assert.ErrorIs(t, p.RunCycle(context.Background()), model.ErrAnswer)
	require.Len(t, n.Texts(), 1)
	assert.Contains(t, n.Texts()[0], "503")
}

func TestRunCycle_AlertFailureIsSwallowed(t *testing.T) {
	fetcher := &collector.MockFetcher{Errs: []error{errors.New("unexpected")}}
	n := &fakeNotifier{err: &model.DeliveryError{ChatID: "42", Attempts: 2, Err: errors.New("blocked")}}
	p, rec := newTestPoller(t, fetcher, n)

	err := p.RunCycle(context.Background())
	assert.EqualError(t, err, "fetch from mock: unexpected")
	assert.Len(t, n.Texts(), 1)
	assert.Empty(t, rec.notifications)
	assert.Empty(t, p.LastMessage())
}

func TestRunCycle_DeliveryFailureIsNotRelayed(t *testing.T) {
	fetcher := &collector.MockFetcher{Responses: []string{
		`{"homeworks":[{"homework_name":"proj1","status":"approved"}],"current_date":1000}`,
	}}
	n := &fakeNotifier{err: &model.DeliveryError{ChatID: "42", Attempts: 2, Err: errors.New("blocked")}}
	p, _ := newTestPoller(t, fetcher, n)

	err := p.RunCycle(context.Background())
	assert.ErrorIs(t, err, model.ErrDelivery)
	assert.Equal(t, []string{approvedMessage}, n.Texts())
	assert.Empty(t, p.LastMessage())
	assert.Equal(t, int64(1000), p.Cursor())

	// The message was never delivered, so the next cycle tries again.
	n.err = nil
	require.NoError(t, p.RunCycle(context.Background()))
	assert.Equal(t, []string{approvedMessage, approvedMessage}, n.Texts())
}

func TestRunCycle_RecoveryAfterAlertResendsStatus(t *testing.T) {
	fetcher := &collector.MockFetcher{
		Responses: []string{
			`{"homeworks":[{"homework_name":"proj1","status":"approved"}],"current_date":1000}`,
		},
		Errs: []error{nil, errors.New("outage"), nil},
	}
	n := &fakeNotifier{}
	p, _ := newTestPoller(t, fetcher, n)

	require.NoError(t, p.RunCycle(context.Background()))
	require.Error(t, p.RunCycle(context.Background()))
	require.NoError(t, p.RunCycle(context.Background()))

	texts := n.Texts()
	require.Len(t, texts, 3)
	assert.Equal(t, approvedMessage, texts[0])
	assert.Contains(t, texts[1], "outage")
	assert.Equal(t, approvedMessage, texts[2])
}

func TestRunCycle_ShutdownDuringFetchIsSilent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()

	fetcher := collector.NewPracticumFetcher(server.URL, "practicum", "", 10*time.Second)
	rec := &spyRecorder{}
	n := &fakeNotifier{}
	p, err := NewPoller(testConfig(0), collector.NewCollector(fetcher), n, rec)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err = p.RunCycle(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, n.Texts())
	assert.Empty(t, rec.cycles)
	assert.Empty(t, rec.notifications)
}

func TestRunCycle_ShutdownDuringSendIsSilent(t *testing.T) {
	fetcher := &collector.MockFetcher{Responses: []string{
		`{"homeworks":[{"homework_name":"proj1","status":"approved"}],"current_date":1000}`,
	}}
	n := &fakeNotifier{err: &model.DeliveryError{ChatID: "42", Attempts: 1, Err: context.Canceled}}
	p, rec := newTestPoller(t, fetcher, n)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.RunCycle(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{approvedMessage}, n.Texts())
	assert.Empty(t, rec.cycles)
	assert.Empty(t, p.LastMessage())
}

// stopAfter is a zero-delay schedule that cancels the run after n cycles.
type stopAfter struct {
	n      int
	cancel context.CancelFunc
}

func (s *stopAfter) Next(t time.Time) time.Time {
	s.n--
	if s.n <= 0 {
		s.cancel()
	}
	return t
}

func TestRun_SleepsBetweenCyclesAndStops(t *testing.T) {
	fetcher := &collector.MockFetcher{Responses: []string{
		`{"homeworks":[{"homework_name":"proj1","status":"approved"}],"current_date":1000}`,
	}}
	n := &fakeNotifier{}
	p, _ := newTestPoller(t, fetcher, n)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Schedule = &stopAfter{n: 3, cancel: cancel}

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
	assert.Len(t, fetcher.Calls(), 3)
	assert.Len(t, n.Texts(), 1)
}
