package chatlog

import (
	"html/template"
	"slices"
	"sync"
	"time"

	"github.com/julez-dev/chatoverlay/relay"
)

const (
	DefaultHistory = 500

	subscriberBuffer = 128
)

type Kind string

const (
	KindChat        Kind = "chat"
	KindNotice      Kind = "notice"
	KindError       Kind = "error"
	KindSystemEvent Kind = "system_event"
)

// Entry is one rendered line of the log. HTML is safe to insert into the page as is.
type Entry struct {
	ID        string        `json:"id"`
	Kind      Kind          `json:"kind"`
	HTML      template.HTML `json:"html"`
	CreatedAt time.Time     `json:"created_at"`
}

type UpdateType string

const (
	UpdateEntry      UpdateType = "entry"
	UpdateConnection UpdateType = "connection"
	UpdateFontSize   UpdateType = "font_size"
)

type Update struct {
	Type     UpdateType `json:"type"`
	Entry    *Entry     `json:"entry,omitempty"`
	State    string     `json:"state,omitempty"`
	FontSize int        `json:"font_size,omitempty"`
}

// Snapshot is everything a freshly opened page needs before it can follow updates.
type Snapshot struct {
	State    string  `json:"state"`
	FontSize int     `json:"font_size"`
	Entries  []Entry `json:"entries"`
}

// Log is the append-only scroll log shared by every open overlay page, together with the
// connection indicator and the font size. Only the newest entries are kept for replay.
type Log struct {
	mu          sync.Mutex
	history     int
	entries     []Entry
	state       relay.State
	fontSize    int
	subscribers map[chan Update]struct{}
}

func NewLog(history int, fontSize int) *Log {
	if history <= 0 {
		history = DefaultHistory
	}

	return &Log{
		history:     history,
		fontSize:    fontSize,
		subscribers: map[chan Update]struct{}{},
	}
}

func (l *Log) Append(entry Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, entry)
	if over := len(l.entries) - l.history; over > 0 {
		l.entries = slices.Delete(l.entries, 0, over)
	}

	l.publishLocked(Update{Type: UpdateEntry, Entry: &entry})
}

// SetConnectionState drives the connection indicator, it matches relay.WithStateListener.
func (l *Log) SetConnectionState(state relay.State) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.state = state
	l.publishLocked(Update{Type: UpdateConnection, State: state.String()})
}

func (l *Log) SetFontSize(size int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.fontSize = size
	l.publishLocked(Update{Type: UpdateFontSize, FontSize: size})
}

func (l *Log) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.snapshotLocked()
}

// Subscribe returns the current snapshot and a channel carrying every later update.
// A subscriber that falls too far behind gets its channel closed and has to subscribe again.
// The returned cancel func must be called once the subscriber is done.
func (l *Log) Subscribe() (Snapshot, <-chan Update, func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch := make(chan Update, subscriberBuffer)
	l.subscribers[ch] = struct{}{}

	cancel := func() {
		l.mu.Lock()
		defer l.mu.Unlock()

		if _, ok := l.subscribers[ch]; ok {
			delete(l.subscribers, ch)
			close(ch)
		}
	}

	return l.snapshotLocked(), ch, cancel
}

func (l *Log) snapshotLocked() Snapshot {
	return Snapshot{
		State:    l.state.String(),
		FontSize: l.fontSize,
		Entries:  slices.Clone(l.entries),
	}
}

func (l *Log) publishLocked(update Update) {
	for ch := range l.subscribers {
		select {
		case ch <- update:
		default:
			delete(l.subscribers, ch)
			close(ch)
		}
	}
}
