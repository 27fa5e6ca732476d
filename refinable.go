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
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// lockArray is the refinable lock manager's per-table stripe arrays; its
// length always equals the current capacity, unlike StripedSet's fixed
// stripe count. Swapped wholesale on resize behind an atomic.Pointer.
type lockArray struct {
	mtx1, mtx2 []sync.Mutex
}

// RefinableSet is a Set whose lock array is co-resized with the table,
// guarded by a single-writer ownership word rather than a global barrier.
// See §4.5 of the specification.
type RefinableSet[K comparable] struct {
	hasher Hasher[K]
	cfg    Config

	capacity atomic.Uint64
	size     atomic.Uint64
	owner    atomic.Uint64 // bit 0 = resizing; remaining bits = owner token

	tokenCounter atomic.Uint64

	locks atomic.Pointer[lockArray]
	tbl   *tables[K] // mutated only under the stripe(s) acquire() hands out
}

var _ Set[int] = (*RefinableSet[int])(nil)

// NewRefinableSet constructs a RefinableSet using hasher to derive the two
// candidate cells for each key.
func NewRefinableSet[K comparable](hasher Hasher[K], opts ...Option) *RefinableSet[K] {
	cfg := buildConfig(opts)
	s := &RefinableSet[K]{
		hasher: hasher,
		cfg:    cfg,
		tbl:    newTables[K](cfg.InitialCapacity),
	}
	s.capacity.Store(cfg.InitialCapacity)
	s.locks.Store(&lockArray{
		mtx1: make([]sync.Mutex, cfg.InitialCapacity),
		mtx2: make([]sync.Mutex, cfg.InitialCapacity),
	})
	return s
}

// newToken mints a value unique to this call, used as the owner identity
// in place of the C++ source's thread_local sentinel address — Go has no
// goroutine-local storage, but the protocol only needs an identity unique
// per in-flight resize attempt, which a per-call counter gives for free.
// Bit 0 is always 0 here, leaving it free for the resizing flag.
func (s *RefinableSet[K]) newToken() uint64 {
	return s.tokenCounter.Add(1) << 1
}

// acquire implements the §4.5 optimistic acquire protocol: snapshot
// capacity and owner, lock the stripe pair they imply, then re-check both
// haven't changed before proceeding. marked-and-not-self spins until the
// in-flight resize clears its mark.
func (s *RefinableSet[K]) acquire(h1, h2, token uint64) (b1, b2, capacity uint64, unlock func()) {
	for {
		w := s.owner.Load()
		marked := w&1 == 1
		who := w &^ 1
		if marked && who != token {
			runtime.Gosched()
			continue
		}

		oldCapacity := s.capacity.Load()
		la := s.locks.Load()
		mask := oldCapacity - 1
		i1 := h1 & mask
		i2 := h2 & mask

		la.mtx1[i1].Lock()
		la.mtx2[i2].Lock()

		w2 := s.owner.Load()
		marked2 := w2&1 == 1
		who2 := w2 &^ 1
		cur := s.locks.Load()
		if (!marked2 || who2 == token) && cur == la && uint64(len(la.mtx1)) == oldCapacity {
			return i1, i2, oldCapacity, func() {
				la.mtx2[i2].Unlock()
				la.mtx1[i1].Unlock()
			}
		}

		la.mtx1[i1].Unlock()
		la.mtx2[i2].Unlock()
	}
}

// peekHead is acquire's single-stripe counterpart, used to snapshot a
// cell's head before identifying which key to displace (the C++ source
// reads this head without any lock at all, which is not memory-safe in
// Go; this is the minimal safe substitute). stale reports
// that expectCapacity no longer matches, so the caller should abandon the
// round and fall back to resize.
func (s *RefinableSet[K]) peekHead(i int, h, expectCapacity, token uint64) (key K, found bool, stale bool) {
	for {
		w := s.owner.Load()
		marked := w&1 == 1
		who := w &^ 1
		if marked && who != token {
			runtime.Gosched()
			continue
		}

		la := s.locks.Load()
		if uint64(len(la.mtx1)) != expectCapacity {
			return key, false, true
		}

		var mtx *sync.Mutex
		if i == 0 {
			mtx = &la.mtx1[h]
		} else {
			mtx = &la.mtx2[h]
		}
		mtx.Lock()

		w2 := s.owner.Load()
		marked2 := w2&1 == 1
		who2 := w2 &^ 1
		cur := s.locks.Load()
		if (!marked2 || who2 == token) && cur == la {
			c := &s.tbl.side(i)[h]
			if c.len() > 0 {
				key, found = c.head(), true
			}
			mtx.Unlock()
			return key, found, false
		}
		mtx.Unlock()
	}
}

// Add implements §4.3.
func (s *RefinableSet[K]) Add(k K) bool {
	return s.addWithToken(k, s.newToken())
}

// addWithToken is Add's implementation, parameterized over the owner
// token so resize's reinsertion loop can reuse its own token instead of
// minting a fresh one (see DESIGN.md's "recursive locking" resolution).
func (s *RefinableSet[K]) addWithToken(k K, token uint64) bool {
	for {
		h1, h2 := hashPair(s.hasher, k)
		b1, b2, capacity, unlock := s.acquire(h1, h2, token)
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
			if s.relocate(0, b1, capacity, token) {
				s.size.Add(1)
			} else {
				s.resize(token)
			}
			return true
		case parkInSecond:
			s2.append(k)
			unlock()
			if s.relocate(1, b2, capacity, token) {
				s.size.Add(1)
			} else {
				s.resize(token)
			}
			return true
		default: // both cells full
			unlock()
			s.resize(token)
			// retry from the top per §4.3 step 3
		}
	}
}

// relocate implements the displacement engine of §4.6 against the
// refinable lock manager.
func (s *RefinableSet[K]) relocate(i int, h, startCapacity, token uint64) bool {
	for round := 0; round < s.cfg.DisplacementLimit; round++ {
		if s.capacity.Load() != startCapacity {
			return false
		}

		j := 1 - i
		y, found, stale := s.peekHead(i, h, startCapacity, token)
		if stale {
			return false
		}
		if !found {
			return true
		}

		hy1, hy2 := hashPair(s.hasher, y)
		_, _, capacity, unlock := s.acquire(hy1, hy2, token)
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
			iCell.append(y)
			unlock()
			return false
		case iCell.len() >= s.cfg.Threshold:
			unlock()
			continue
		default:
			unlock()
			return true
		}
	}
	return false
}

// resize implements the §4.5 single-writer CAS protocol. token identifies
// the caller: a fresh token for a top-level Add that hit a full pair, or
// the resizing thread's own token when its reinsertion loop needs to
// double again immediately (reentrant == true) — in that case the CAS,
// quiesce, and final owner-clear are skipped, since this goroutine already
// holds exclusive ownership and no other caller can be mid-resize.
func (s *RefinableSet[K]) resize(token uint64) {
	oldCapacity := s.capacity.Load()

	w := s.owner.Load()
	reentrant := w&1 == 1 && w&^uint64(1) == token

	if !reentrant {
		if !s.owner.CompareAndSwap(0, token|1) {
			s.cfg.Logger.Warn("cuckoo: refinable resize lost race, another goroutine is already resizing")
			return
		}
		if s.capacity.Load() != oldCapacity {
			s.owner.Store(0)
			s.cfg.Logger.Warn("cuckoo: refinable resize lost race, another goroutine already grew the table",
				zap.Uint64("observed_capacity", s.capacity.Load()))
			return
		}
		oldLocks := s.locks.Load()
		for i := range oldLocks.mtx1 {
			oldLocks.mtx1[i].Lock()
			oldLocks.mtx1[i].Unlock()
		}
	}

	newCapacity := oldCapacity * 2
	if newCapacity > uint64(1)<<MaxCapacityLog2 {
		if !reentrant {
			s.owner.Store(0)
		}
		panicCapacityExceeded(newCapacity)
	}

	s.cfg.Logger.Debug("cuckoo: refinable resize start",
		zap.Uint64("old_capacity", oldCapacity),
		zap.Uint64("new_capacity", newCapacity),
		zap.Bool("reentrant", reentrant))

	old := s.tbl
	s.tbl = newTables[K](newCapacity)
	s.locks.Store(&lockArray{
		mtx1: make([]sync.Mutex, newCapacity),
		mtx2: make([]sync.Mutex, newCapacity),
	})
	s.capacity.Store(newCapacity)
	s.size.Store(0) // reinsertion below increments it back up

	for bi := range old.t1 {
		for _, k := range old.t1[bi].keys {
			s.addWithToken(k, token)
		}
	}
	for bi := range old.t2 {
		for _, k := range old.t2[bi].keys {
			s.addWithToken(k, token)
		}
	}

	s.cfg.Logger.Debug("cuckoo: refinable resize finish",
		zap.Uint64("new_capacity", newCapacity),
		zap.Uint64("size", s.size.Load()))

	if !reentrant {
		s.owner.Store(0)
	}
}

// Remove implements §4.3.
func (s *RefinableSet[K]) Remove(k K) bool {
	token := s.newToken()
	h1, h2 := hashPair(s.hasher, k)
	b1, b2, _, unlock := s.acquire(h1, h2, token)
	defer unlock()

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
func (s *RefinableSet[K]) Contains(k K) bool {
	token := s.newToken()
	h1, h2 := hashPair(s.hasher, k)
	b1, b2, _, unlock := s.acquire(h1, h2, token)
	defer unlock()
	return s.tbl.present(k, b1, b2)
}

// Size implements §4.3.
func (s *RefinableSet[K]) Size() uint64 { return s.size.Load() }

// Capacity returns the current number of cells per table.
func (s *RefinableSet[K]) Capacity() uint64 { return s.capacity.Load() }

// Populate implements §4.3: sequentially Add every element of batch.
func (s *RefinableSet[K]) Populate(batch []K) {
	for _, k := range batch {
		s.Add(k)
	}
}
