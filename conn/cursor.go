package conn

import (
	"crypto/rand"
	"encoding/binary"
	"sync"
	"time"

	"github.com/solatis/mongofront/bsondoc"
	"github.com/solatis/mongofront/crud"
)

// Cursor tracks an open getMore-able result set.
type Cursor struct {
	ID         int64
	Namespace  crud.Namespace
	Query      *bsondoc.Document
	Projection *bsondoc.Document
	Batch      []*bsondoc.Document // full result set; Position indexes the next unreturned document
	Position   int
	ClosedAt   time.Time
}

// CursorRegistry tracks a connection's open cursors under a single mutex,
// the same shape used for the namespace model map in storage.
type CursorRegistry struct {
	mu      sync.Mutex
	cursors map[int64]*Cursor
}

// NewCursorRegistry returns an empty registry.
func NewCursorRegistry() *CursorRegistry {
	return &CursorRegistry{cursors: make(map[int64]*Cursor)}
}

// NewCursorID generates a cursor ID as now_ms*1000 + random(0..999), giving
// roughly-sortable, collision-resistant IDs without a global counter.
func NewCursorID() int64 {
	var buf [2]byte
	_, _ = rand.Read(buf[:])
	r := int64(binary.BigEndian.Uint16(buf[:])) % 1000
	return time.Now().UnixMilli()*1000 + r
}

// Register stores c under its ID, replacing any cursor already registered
// with that ID.
func (r *CursorRegistry) Register(c *Cursor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cursors[c.ID] = c
}

// Get returns the cursor for id, if open.
func (r *CursorRegistry) Get(id int64) (*Cursor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cursors[id]
	return c, ok
}

// Kill closes the given cursor IDs, returning how many were actually open.
func (r *CursorRegistry) Kill(ids []int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, id := range ids {
		if _, ok := r.cursors[id]; ok {
			delete(r.cursors, id)
			n++
		}
	}
	return n
}

// Len reports how many cursors are currently open.
func (r *CursorRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cursors)
}

// CloseAll removes every cursor, used when a connection closes.
func (r *CursorRegistry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cursors = make(map[int64]*Cursor)
}
