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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripedSetStripeClamp(t *testing.T) {
	// StripeCount must never exceed InitialCapacity, else h & stripeMask
	// on a bucket index already masked by capacity would not recover the
	// correct stripe.
	s := NewStripedSet[int](HashInt, WithInitialCapacity(4), WithStripeCount(64))
	assert.LessOrEqual(t, uint64(len(s.mtx1)), s.Capacity())
}

func TestStripedSetStripeCountNeverChanges(t *testing.T) {
	s := NewStripedSet[int](HashInt, WithInitialCapacity(4))
	before := len(s.mtx1)
	for k := 0; k < 500; k++ {
		s.Add(k)
	}
	assert.Greater(t, s.Capacity(), uint64(4), "capacity should have grown")
	assert.Equal(t, before, len(s.mtx1), "stripe count must stay fixed across resizes")
}

func TestStripedSetCapacityMonotonic(t *testing.T) {
	s := NewStripedSet[int](HashInt, WithInitialCapacity(4))
	last := s.Capacity()
	for k := 0; k < 2000; k++ {
		s.Add(k)
		cur := s.Capacity()
		assert.GreaterOrEqual(t, cur, last)
		last = cur
	}
}

func TestStripedSetCapacityOverflowPanics(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected a panic on capacity overflow")
		}
		if _, ok := r.(*CapacityError); !ok {
			t.Fatalf("recovered %v (%T), want *CapacityError", r, r)
		}
	}()

	// A hasher collapsing every key onto one bucket pair forces
	// displacement failure at every capacity, driving resize past the
	// configured ceiling.
	collapsing := func(int) uint64 { return 0 }
	s := NewStripedSet[int](collapsing, WithInitialCapacity(2))
	for k := 0; k < 1<<20; k++ {
		s.Add(k)
	}
}
