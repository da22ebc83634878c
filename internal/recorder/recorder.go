package recorder

// CycleEvent describes the outcome of one polling cycle.
type CycleEvent struct {
	CycleID   string
	FromDate  int64
	NewCursor int64
	Outcome   string // "NOTIFIED", "UNCHANGED", "FAILED"
	ErrorKind string
	Error     string
}

// NotificationEvent records a message delivered to the chat.
type NotificationEvent struct {
	CycleID      string
	HomeworkName string
	Status       string
	Message      string
	Alert        bool
}

// Recorder keeps an append-only audit trail of the bot's activity.
// Nothing is read back into the polling loop.
type Recorder interface {
	RecordCycle(evt *CycleEvent) error
	RecordNotification(evt *NotificationEvent) error
	Close() error
}
