package correlator

import (
	"time"

	"github.com/potooio/sentinel/internal/types"
)

const minRingSize = 16

// ring is a timestamp-ordered circular buffer of records. Index 0 is the oldest.
type ring struct {
	buf  []types.Record
	head int
	n    int
}

func (r *ring) len() int { return r.n }

func (r *ring) at(i int) types.Record {
	return r.buf[(r.head+i)%len(r.buf)]
}

func (r *ring) set(i int, rec types.Record) {
	r.buf[(r.head+i)%len(r.buf)] = rec
}

// grow doubles the capacity, up to max, laying entries out from index 0.
func (r *ring) grow(max int) bool {
	size := len(r.buf) * 2
	if size < minRingSize {
		size = minRingSize
	}
	if size > max {
		size = max
	}
	if size <= len(r.buf) {
		return false
	}
	buf := make([]types.Record, size)
	for i := 0; i < r.n; i++ {
		buf[i] = r.at(i)
	}
	r.buf = buf
	r.head = 0
	return true
}

// insert places rec by timestamp, after any entries with an equal timestamp.
// When the ring is full at max capacity the oldest entry is overwritten and
// insert reports an overflow.
func (r *ring) insert(rec types.Record, max int) (overflow bool) {
	if r.n == len(r.buf) && !r.grow(max) {
		if r.n == 0 {
			return true
		}
		r.popFront()
		overflow = true
	}

	// Walk back from the tail; in-order arrivals stop immediately.
	pos := r.n
	for pos > 0 && r.at(pos-1).Timestamp.After(rec.Timestamp) {
		pos--
	}
	r.n++
	for i := r.n - 1; i > pos; i-- {
		r.set(i, r.at(i-1))
	}
	r.set(pos, rec)
	return overflow
}

func (r *ring) popFront() {
	r.buf[r.head] = types.Record{}
	r.head = (r.head + 1) % len(r.buf)
	r.n--
}

// evictBefore drops head entries strictly older than cutoff and returns how many.
func (r *ring) evictBefore(cutoff time.Time) int {
	evicted := 0
	for r.n > 0 && r.at(0).Timestamp.Before(cutoff) {
		r.popFront()
		evicted++
	}
	return evicted
}

// last returns copies of the newest limit entries, oldest first.
func (r *ring) last(limit int) []types.Record {
	if r.n == 0 {
		return nil
	}
	if limit <= 0 || limit > r.n {
		limit = r.n
	}
	out := make([]types.Record, 0, limit)
	for i := r.n - limit; i < r.n; i++ {
		out = append(out, r.at(i))
	}
	return out
}

// between returns copies of entries with from <= ts <= to, oldest first.
func (r *ring) between(from, to time.Time) []types.Record {
	var out []types.Record
	for i := 0; i < r.n; i++ {
		rec := r.at(i)
		if rec.Timestamp.Before(from) {
			continue
		}
		if rec.Timestamp.After(to) {
			break
		}
		out = append(out, rec)
	}
	return out
}
