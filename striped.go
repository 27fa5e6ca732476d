// Copyright (c) 2014 Utkan Güngördü <utkan@freeconsole.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package cuckoo

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// StripedSet is a Set protected by a fixed-width lock array: stripeCount
// mutexes per table, chosen once at construction and never resized. Resize
// takes a global barrier (every mtx1 entry, in index order) before doubling
// the table. See §4.4 of the specification.
type StripedSet[K comparable] struct {
	hasher Hasher[K]
	cfg    Config

	capacity atomic.Uint64
	size     atomic.Uint64

	mtx1, mtx2 []sync.Mutex // fixed length == cfg.StripeCount
	resizeMu   sync.Mutex   // serializes entry into resize()

	tbl *tables[K] // mutated only while holding the stripe(s) that cover it
}

var _ Set[int] = (*StripedSet[int])(nil)

// NewStripedSet constructs a StripedSet using hasher to derive the two
// candidate cells for each key.
func NewStripedSet[K comparable](hasher Hasher[K], opts ...Option) *StripedSet[K] {
	cfg := buildConfig(opts)
	if cfg.StripeCount > cfg.InitialCapacity {
		// The stripe mask must be a sub-mask of the capacity mask (see
		// peekHead); clamp rather than silently misbehave.
		cfg.StripeCount = cfg.InitialCapacity
	}
	s := &StripedSet[K]{
		hasher: hasher,
		cfg:    cfg,
		mtx1:   make([]sync.Mutex, cfg.StripeCount),
		mtx2:   make([]sync.Mutex, cfg.StripeCount),
		tbl:    newTables[K](cfg.InitialCapacity),
	}
	s.capacity.Store(cfg.InitialCapacity)
	return s
}

func (s *StripedSet[K]) stripeMask() uint64 { return uint64(len(s.mtx1)) - 1 }

// lockPair acquires M1 then M2, the total lock order required by §5, and
// returns a function that releases both in reverse order.
func (s *StripedSet[K]) lockPair(h1, h2 uint64) func() {
	mask := s.stripeMask()
	i1 := h1 & mask
	i2 := h2 & mask
	s.mtx1[i1].Lock()
	s.mtx2[i2].Lock()
	return func() {
		s.mtx2[i2].Unlock()
		s.mtx1[i1].Unlock()
	}
}

// peekHead takes a short-lived lock on the single stripe covering side i's
// bucket h (h already masked by the current capacity) and returns its head
// key, if any. Because the stripe mask is always a sub-mask of the
// capacity mask (enforced at construction), this is the exact stripe that
// Add, Remove and Contains take for that cell.
func (s *StripedSet[K]) peekHead(i int, h uint64) (K, bool) {
	mask := s.stripeMask()
	var mtx *sync.Mutex
	if i == 0 {
		mtx = &s.mtx1[h&mask]
	} else {
		mtx = &s.mtx2[h&mask]
	}
	mtx.Lock()
	defer mtx.Unlock()

	c := &s.tbl.side(i)[h]
	if c.len() == 0 {
		var zero K
		return zero, false
	}
	return c.head(), true
}

// Add implements §4.3.
func (s *StripedSet[K]) Add(k K) bool {
	for {
		h1, h2 := hashPair(s.hasher, k)
		unlock := s.lockPair(h1, h2)

		capacity := s.capacity.Load()
		b1 := h1 & (capacity - 1)
		b2 := h2 & (capacity - 1)
		tbl := s.tbl

		if tbl.present(k, b1, b2) {
			unlock()
			return false
		}

		s1 := &tbl.t1[b1]
		s2 := &tbl.t2[b2]

		switch classifyInsert(s1.len(), s2.len(), s.cfg.Threshold, s.cfg.ProbeSize) {
		case insertIntoFirst:
			s1.append(k)
			s.size.Add(1)
			unlock()
			return true
		case insertIntoSecond:
			s2.append(k)
			s.size.Add(1)
			unlock()
			return true
		case parkInFirst:
			s1.append(k)
			unlock()
			if s.relocate(0, b1, capacity) {
				s.size.Add(1)
			} else {
				s.resize()
			}
			return true
		case parkInSecond:
			s2.append(k)
			unlock()
			if s.relocate(1, b2, capacity) {
				s.size.Add(1)
			} else {
				s.resize()
			}
			return true
		default: // both cells full
			unlock()
			s.resize()
			// retry from the top per §4.3 step 3
		}
	}
}

// relocate implements the displacement engine of §4.6. i/h identify the
// over-threshold cell that just received an insert; startCapacity is the
// capacity snapshot under which h was computed.
func (s *StripedSet[K]) relocate(i int, h uint64, startCapacity uint64) bool {
	for round := 0; round < s.cfg.DisplacementLimit; round++ {
		if s.capacity.Load() != startCapacity {
			// A resize interleaved; h may no longer even be a valid index
			// into the (now larger) tables. Fail the round and let the
			// caller's resize() fallback restore the invariant; that is
			// always safe, though it doubles the table once more.
			return false
		}

		j := 1 - i
		y, ok := s.peekHead(i, h)
		if !ok {
			return true // cell already empty; original offender is gone
		}

		hy1, hy2 := hashPair(s.hasher, y)
		unlock := s.lockPair(hy1, hy2)

		capacity := s.capacity.Load()
		if capacity != startCapacity {
			unlock()
			return false
		}

		tbl := s.tbl
		iCell := &tbl.side(i)[h]

		var jh uint64
		if j == 0 {
			jh = hy1 & (capacity - 1)
		} else {
			jh = hy2 & (capacity - 1)
		}
		jCell := &tbl.side(j)[jh]

		switch {
		case iCell.remove(y):
			if jCell.len() < s.cfg.Threshold {
				jCell.append(y)
				unlock()
				return true
			}
			if jCell.len() < s.cfg.ProbeSize {
				jCell.append(y)
				unlock()
				i, h = j, jh
				continue
			}
			iCell.append(y) // put it back; caller will resize
			unlock()
			return false
		case iCell.len() >= s.cfg.Threshold:
			unlock()
			continue // the original offender is gone but the cell is still full
		default:
			unlock()
			return true // cell is safe now
		}
	}
	return false
}

// resize implements the global-barrier protocol of §4.4. resizeMu only
// guards the decide-and-swap step: it is released before replaying old
// keys through Add so that reinsertion never recurses while holding a
// stripe (see DESIGN.md's "recursive locking" resolution), and so a
// resize triggered by reinsertion itself can make independent progress
// rather than deadlocking on resizeMu.
func (s *StripedSet[K]) resize() {
	oldCapacity := s.capacity.Load()

	s.resizeMu.Lock()
	if s.capacity.Load() != oldCapacity {
		s.resizeMu.Unlock()
		s.cfg.Logger.Warn("cuckoo: striped resize lost race, another goroutine already grew the table",
			zap.Uint64("observed_capacity", s.capacity.Load()))
		return
	}

	for i := range s.mtx1 {
		s.mtx1[i].Lock()
	}

	newCapacity := oldCapacity * 2
	if newCapacity > uint64(1)<<MaxCapacityLog2 {
		for i := range s.mtx1 {
			s.mtx1[i].Unlock()
		}
		s.resizeMu.Unlock()
		panicCapacityExceeded(newCapacity)
	}

	s.cfg.Logger.Debug("cuckoo: striped resize start",
		zap.Uint64("old_capacity", oldCapacity),
		zap.Uint64("new_capacity", newCapacity))

	old := s.tbl
	s.tbl = newTables[K](newCapacity)
	s.capacity.Store(newCapacity)
	s.size.Store(0) // reinsertion below increments it back up

	for i := range s.mtx1 {
		s.mtx1[i].Unlock()
	}
	s.resizeMu.Unlock()

	for bi := range old.t1 {
		for _, k := range old.t1[bi].keys {
			s.Add(k)
		}
	}
	for bi := range old.t2 {
		for _, k := range old.t2[bi].keys {
			s.Add(k)
		}
	}

	s.cfg.Logger.Debug("cuckoo: striped resize finish",
		zap.Uint64("new_capacity", newCapacity),
		zap.Uint64("size", s.size.Load()))
}

// Remove implements §4.3.
func (s *StripedSet[K]) Remove(k K) bool {
	h1, h2 := hashPair(s.hasher, k)
	unlock := s.lockPair(h1, h2)
	defer unlock()

	capacity := s.capacity.Load()
	b1 := h1 & (capacity - 1)
	b2 := h2 & (capacity - 1)
	tbl := s.tbl

	if tbl.t1[b1].remove(k) {
		s.size.Add(^uint64(0))
		return true
	}
	if tbl.t2[b2].remove(k) {
		s.size.Add(^uint64(0))
		return true
	}
	return false
}

// Contains implements §4.3.
func (s *StripedSet[K]) Contains(k K) bool {
	h1, h2 := hashPair(s.hasher, k)
	unlock := s.lockPair(h1, h2)
	defer unlock()

	capacity := s.capacity.Load()
	return s.tbl.present(k, h1&(capacity-1), h2&(capacity-1))
}

// Size implements §4.3.
func (s *StripedSet[K]) Size() uint64 { return s.size.Load() }

// Capacity returns the current number of cells per table.
func (s *StripedSet[K]) Capacity() uint64 { return s.capacity.Load() }

// Populate implements §4.3: sequentially Add every element of batch.
func (s *StripedSet[K]) Populate(batch []K) {
	for _, k := range batch {
		s.Add(k)
	}
}
