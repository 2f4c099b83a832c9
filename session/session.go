// Package session implements logical session tracking and minimal
// transaction scaffolding for the admin command surface (startSession,
// commitTransaction, etc.), backed by a mutex-guarded map and a sweep
// ticker for idle/expired transitions.
package session

import (
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is a session's lifecycle stage.
type State int

const (
	StateActive State = iota
	StateIdle
	StateTxnInProgress
	StateTxnCommitted
	StateTxnAborted
	StateExpired
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateIdle:
		return "idle"
	case StateTxnInProgress:
		return "txn-in-progress"
	case StateTxnCommitted:
		return "txn-committed"
	case StateTxnAborted:
		return "txn-aborted"
	case StateExpired:
		return "expired"
	case StateEnded:
		return "ended"
	}
	return "unknown"
}

// Defaults.
const (
	DefaultIdleTimeout     = 10 * time.Minute
	DefaultAbsoluteTimeout = 30 * time.Minute
	sweepInterval          = 60 * time.Second
)

// ID is a session's 16-byte identifier; admin replies carry it as UUID
// binary, and Hex renders it as a string.
type ID [16]byte

// NewID generates a random session ID via google/uuid.
func NewID() ID {
	var id ID
	copy(id[:], uuid.New()[:])
	return id
}

// Hex renders id as a lowercase hex string.
func (id ID) Hex() string {
	return hex.EncodeToString(id[:])
}

// Op is one recorded operation in a transaction's operation log — kept for
// observability only; there is no real atomicity or rollback of backend
// state.
type Op struct {
	Description string
	At          time.Time
}

// Session tracks one logical session's lifecycle and optional in-progress
// transaction.
type Session struct {
	ID          ID
	CreatedAt   time.Time
	LastUsed    time.Time
	State       State
	TxnNumber   int64
	TxnOps      []Op
	idleTimeout time.Duration
	absTimeout  time.Duration
}

// Manager tracks all active sessions under a single mutex, with a
// background ticker sweeping idle/expired transitions.
type Manager struct {
	mu              sync.Mutex
	sessions        map[ID]*Session
	idleTimeout     time.Duration
	absoluteTimeout time.Duration

	stop chan struct{}
	once sync.Once
}

// NewManager returns a Manager with the given timeouts and starts its
// sweep ticker. Call Close to stop the ticker.
func NewManager(idleTimeout, absoluteTimeout time.Duration) *Manager {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	if absoluteTimeout <= 0 {
		absoluteTimeout = DefaultAbsoluteTimeout
	}
	m := &Manager{
		sessions:        make(map[ID]*Session),
		idleTimeout:     idleTimeout,
		absoluteTimeout: absoluteTimeout,
		stop:            make(chan struct{}),
	}
	go m.sweepLoop()
	return m
}

func (m *Manager) sweepLoop() {
	t := time.NewTicker(sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			m.sweep(time.Now())
		case <-m.stop:
			return
		}
	}
}

func (m *Manager) sweep(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.State == StateEnded || s.State == StateExpired {
			continue
		}
		if now.Sub(s.CreatedAt) >= m.absoluteTimeout {
			s.State = StateExpired
			continue
		}
		if now.Sub(s.LastUsed) >= m.idleTimeout && s.State == StateActive {
			s.State = StateIdle
		}
	}
}

// Close stops the sweep ticker.
func (m *Manager) Close() {
	m.once.Do(func() { close(m.stop) })
}

// Start creates and registers a new session.
func (m *Manager) Start() *Session {
	now := time.Now()
	s := &Session{
		ID:          NewID(),
		CreatedAt:   now,
		LastUsed:    now,
		State:       StateActive,
		idleTimeout: m.idleTimeout,
		absTimeout:  m.absoluteTimeout,
	}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

// Touch marks id as recently used, reviving it from idle to active if it
// has not yet expired.
func (m *Manager) Touch(id ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.State == StateExpired || s.State == StateEnded {
		return
	}
	s.LastUsed = time.Now()
	if s.State == StateIdle {
		s.State = StateActive
	}
}

// End marks one or more sessions as ended (endSessions admin command).
func (m *Manager) End(ids []ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if s, ok := m.sessions[id]; ok {
			s.State = StateEnded
		}
	}
}

// Get returns the session for id, if tracked.
func (m *Manager) Get(id ID) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// StartTransaction begins a transaction on the session, recording the
// caller-supplied txnNumber.
func (m *Manager) StartTransaction(id ID, txnNumber int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return false
	}
	s.State = StateTxnInProgress
	s.TxnNumber = txnNumber
	s.TxnOps = nil
	return true
}

// RecordOp appends an operation to the session's in-progress transaction
// log, for observability only.
func (m *Manager) RecordOp(id ID, description string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.State != StateTxnInProgress {
		return
	}
	s.TxnOps = append(s.TxnOps, Op{Description: description, At: time.Now()})
}

// CommitTransaction marks the session's transaction committed.
func (m *Manager) CommitTransaction(id ID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.State != StateTxnInProgress {
		return false
	}
	s.State = StateTxnCommitted
	return true
}

// AbortTransaction marks the session's transaction aborted, discarding its
// operation log (no backend rollback occurs — see Op).
func (m *Manager) AbortTransaction(id ID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.State != StateTxnInProgress {
		return false
	}
	s.State = StateTxnAborted
	s.TxnOps = nil
	return true
}
