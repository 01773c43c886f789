package stopwatch

import (
	"io"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zgpcy/stopwatch/internal/clock"
	"github.com/zgpcy/stopwatch/internal/logger"
)

const (
	// DefaultInterval is the tick period of the plain stopwatch
	DefaultInterval = time.Second

	// AnimatedInterval is the tick period used when the ring is animated
	AnimatedInterval = 80 * time.Millisecond

	// subscriberBuffer is the number of events held for a subscriber that is not reading
	subscriberBuffer = 16
)

// State is the lifecycle state of a Stopwatch
type State int

const (
	StateIdle State = iota
	StateActive
	StatePaused
)

// States lists every state in declaration order
var States = []State{StateIdle, StateActive, StatePaused}

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON and logs
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// EventKind names what caused a change notification
type EventKind string

const (
	EventStart  EventKind = "start"
	EventPause  EventKind = "pause"
	EventResume EventKind = "resume"
	EventReset  EventKind = "reset"
	EventTick   EventKind = "tick"
)

// Event is published to subscribers whenever the state or the elapsed time changes
type Event struct {
	Kind      EventKind `json:"kind"`
	State     State     `json:"state"`
	Elapsed   TimerTime `json:"elapsed"`
	Formatted Formatted `json:"formatted"`
	At        time.Time `json:"at"`
}

// Snapshot is a consistent view of a Stopwatch at one instant
type Snapshot struct {
	State       State
	Elapsed     TimerTime
	Formatted   Formatted
	Interval    time.Duration
	Ticks       uint64
	Subscribers int
	Closed      bool
}

// Stopwatch advances a TimerTime on a fixed interval while active.
// It owns at most one scheduled tick task at any time.
type Stopwatch struct {
	interval time.Duration
	step     int64
	clock    clock.Clock
	logger   *logger.Logger

	mu      sync.Mutex
	state   State
	current TimerTime
	ticks   uint64
	task    *tickTask
	subs    map[string]*Subscription
	closed  bool
}

// tickTask is the handle of one scheduled periodic callback
type tickTask struct {
	ticker clock.Ticker
	done   chan struct{}
	exited chan struct{}
}

// cancel stops the ticker and waits for the tick goroutine to return
func (t *tickTask) cancel() {
	t.ticker.Stop()
	close(t.done)
	<-t.exited
}

// New creates an idle Stopwatch ticking every interval. A non-positive interval
// falls back to DefaultInterval, a nil clock to the system clock.
func New(interval time.Duration, clk clock.Clock, log *logger.Logger) *Stopwatch {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	if log == nil {
		log = logger.NewWithWriter(io.Discard, "error")
	}

	return &Stopwatch{
		interval: interval,
		step:     StepMilliseconds(interval),
		clock:    clk,
		logger:   log.Component("stopwatch"),
		subs:     make(map[string]*Subscription),
	}
}

// StepMilliseconds is the increment applied per tick: round(1000 * interval in seconds)
func StepMilliseconds(interval time.Duration) int64 {
	return int64(math.Round(float64(interval) / float64(time.Millisecond)))
}

// Start enters the active state and schedules the tick task. Any task that is
// already scheduled is cancelled first, so repeated calls never stack.
// It reports false when the stopwatch is closed and nothing changed.
func (s *Stopwatch) Start() bool {
	return s.activate(EventStart)
}

// Resume is identical to Start apart from the kind of the published event.
func (s *Stopwatch) Resume() bool {
	return s.activate(EventResume)
}

func (s *Stopwatch) activate(kind EventKind) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Debug("Ignoring operation on closed stopwatch", "operation", string(kind))
		return false
	}

	previous := s.task
	task := &tickTask{
		ticker: s.clock.NewTicker(s.interval),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	s.task = task
	s.state = StateActive
	go s.run(task)
	s.publishLocked(kind)
	s.mu.Unlock()

	if previous != nil {
		previous.cancel()
		s.logger.Debug("Replaced scheduled tick task")
	}

	s.logger.Info("Stopwatch active",
		"operation", string(kind),
		"interval_ms", s.interval.Milliseconds())
	return true
}

// Pause enters the paused state and cancels the tick task. When Pause returns
// no further increments happen until the next Start or Resume. It reports false
// when the stopwatch is closed.
func (s *Stopwatch) Pause() bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Debug("Ignoring operation on closed stopwatch", "operation", string(EventPause))
		return false
	}

	task := s.task
	s.task = nil
	s.state = StatePaused
	s.publishLocked(EventPause)
	elapsed := s.current
	s.mu.Unlock()

	if task != nil {
		task.cancel()
	}
	s.logger.Info("Stopwatch paused", "elapsed", elapsed.String())
	return true
}

// Reset zeroes the elapsed time. The state and any scheduled task are left as they are.
// It reports false when the stopwatch is closed.
func (s *Stopwatch) Reset() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}

	s.current.Reset()
	s.publishLocked(EventReset)
	s.logger.Info("Stopwatch reset", "state", s.state.String())
	return true
}

// Close cancels the tick task and closes every subscription. Operations after
// Close are ignored.
func (s *Stopwatch) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	task := s.task
	s.task = nil
	for id, sub := range s.subs {
		close(sub.ch)
		delete(s.subs, id)
	}
	s.mu.Unlock()

	if task != nil {
		task.cancel()
	}
	s.logger.Info("Stopwatch closed")
}

func (s *Stopwatch) run(task *tickTask) {
	defer close(task.exited)
	for {
		select {
		case <-task.done:
			return
		case <-task.ticker.C():
			s.tick(task)
		}
	}
}

func (s *Stopwatch) tick(task *tickTask) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A tick that was already in flight when its task got replaced is dropped.
	if s.task != task {
		return
	}

	s.current.IncrementMilliseconds(s.step)
	s.ticks++
	s.publishLocked(EventTick)
	s.logger.Debug("Tick", "elapsed", s.current.String(), "ticks", s.ticks)
}

// State returns the current lifecycle state
func (s *Stopwatch) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Elapsed returns a copy of the accumulated time
func (s *Stopwatch) Elapsed() TimerTime {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// FormattedTime returns the display form of the accumulated time
func (s *Stopwatch) FormattedTime() Formatted {
	return s.Elapsed().Format()
}

// Interval returns the configured tick period
func (s *Stopwatch) Interval() time.Duration {
	return s.interval
}

// Snapshot returns state, time and counters read under one lock
func (s *Stopwatch) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		State:       s.state,
		Elapsed:     s.current,
		Formatted:   s.current.Format(),
		Interval:    s.interval,
		Ticks:       s.ticks,
		Subscribers: len(s.subs),
		Closed:      s.closed,
	}
}

// Subscription receives change notifications from a Stopwatch
type Subscription struct {
	ID string
	ch chan Event
	sw *Stopwatch
}

// C returns the event channel. It is closed by Close on either the
// subscription or the stopwatch.
func (sub *Subscription) C() <-chan Event {
	return sub.ch
}

// Close stops delivery and closes the channel. It is safe to call more than once.
func (sub *Subscription) Close() {
	sub.sw.unsubscribe(sub)
}

// Subscribe registers a new listener. A subscriber that falls behind loses its
// oldest buffered events, the tick loop never waits for it. Subscribing to a
// closed stopwatch returns a subscription whose channel is already closed.
func (s *Stopwatch) Subscribe() *Subscription {
	sub := &Subscription{
		ID: uuid.New().String(),
		ch: make(chan Event, subscriberBuffer),
		sw: s,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(sub.ch)
		return sub
	}
	s.subs[sub.ID] = sub
	s.logger.Debug("Subscriber added", "subscription_id", sub.ID, "subscribers", len(s.subs))
	return sub
}

func (s *Stopwatch) unsubscribe(sub *Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[sub.ID]; !ok {
		return
	}
	delete(s.subs, sub.ID)
	close(sub.ch)
	s.logger.Debug("Subscriber removed", "subscription_id", sub.ID, "subscribers", len(s.subs))
}

// publishLocked must be called with s.mu held
func (s *Stopwatch) publishLocked(kind EventKind) {
	ev := Event{
		Kind:      kind,
		State:     s.state,
		Elapsed:   s.current,
		Formatted: s.current.Format(),
		At:        s.clock.Now(),
	}

	for _, sub := range s.subs {
		select {
		case sub.ch <- ev:
			continue
		default:
		}
		// Drop the oldest event to make room for the newest.
		select {
		case <-sub.ch:
		default:
		}
		select {
		case sub.ch <- ev:
		default:
		}
	}
}
