package bsondoc

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"sync"
	"sync/atomic"
	"time"
)

// ObjectID is a 12-byte identifier: 4-byte big-endian seconds-since-epoch,
// 5 random bytes, and a 3-byte big-endian per-process monotonically
// increasing counter seeded randomly at first use.
type ObjectID [12]byte

var (
	counterOnce sync.Once
	counter     atomic.Uint32
)

// nextCounter returns the next value of the process-wide counter, masked
// to 24 bits, safe for concurrent callers.
func nextCounter() uint32 {
	counterOnce.Do(func() {
		var seed [4]byte
		_, _ = rand.Read(seed[:])
		counter.Store(binary.BigEndian.Uint32(seed[:]) & 0x00FFFFFF)
	})
	return counter.Add(1) & 0x00FFFFFF
}

// NewObjectID generates a fresh ObjectID.
func NewObjectID() ObjectID {
	var id ObjectID
	binary.BigEndian.PutUint32(id[0:4], uint32(time.Now().Unix()))
	_, _ = rand.Read(id[4:9])
	c := nextCounter()
	id[9] = byte(c >> 16)
	id[10] = byte(c >> 8)
	id[11] = byte(c)
	return id
}

// Hex returns the lowercase hex encoding of the id.
func (id ObjectID) Hex() string {
	return hex.EncodeToString(id[:])
}

func (id ObjectID) String() string {
	return id.Hex()
}

// Counter returns the id's 24-bit counter field, mostly useful for tests
// asserting monotonicity.
func (id ObjectID) Counter() uint32 {
	return uint32(id[9])<<16 | uint32(id[10])<<8 | uint32(id[11])
}
