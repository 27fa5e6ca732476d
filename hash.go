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
	"math"

	"github.com/cespare/xxhash/v2"
)

// Hasher produces a single base hash for a key. The set derives two
// de-correlated hashes from whatever this returns; Hasher itself does not
// need to be collision-resistant, just well distributed.
type Hasher[K comparable] func(key K) uint64

const (
	seed1 uint64 = 0x9e3779b97f4a7c15 // golden ratio, 2^64
	seed2 uint64 = 0xbf58476d1ce4e5b9 // splitmix64 constant
)

// mix64 is the MurmurHash3 fmix64 avalanche finalizer: three xor-shifts
// interleaved with two multiplies are enough to decorrelate the two seeded
// hashes derived from the same base hash. See original_source/include/hashes.h's mix64.
func mix64(x uint64) uint64 {
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33
	return x
}

// hashPair derives the two candidate-cell hashes for key from a single
// base hash, mixing in two distinct constants so h1 and h2 are almost
// never equal for the same key.
func hashPair[K comparable](h Hasher[K], key K) (h1, h2 uint64) {
	base := h(key)
	h1 = mix64(base ^ seed1)
	h2 = mix64(base ^ seed2)
	return
}

// HashUint64 is a ready-made Hasher for uint64 keys.
func HashUint64(v uint64) uint64 { return v }

// HashInt is a ready-made Hasher for int keys.
func HashInt(v int) uint64 { return uint64(v) }

// HashFloat64 is a ready-made Hasher for float64 keys. A given NaN bit
// pattern hashes equal to itself, but cells compare keys with ==, so a NaN
// key is never found: each Add(NaN) stores another copy and Contains(NaN)
// and Remove(NaN) always report false.
func HashFloat64(v float64) uint64 { return math.Float64bits(v) }

// HashString is a ready-made Hasher for string keys, built on xxhash.
func HashString(s string) uint64 { return xxhash.Sum64String(s) }

// HashBytes hashes a byte slice with xxhash. []byte is not a comparable
// type, so it cannot be used as K directly; HashBytes is a building block
// for Hasher[K] implementations over comparable key types that carry their
// byte representation some other way (a fixed-size array, or a string
// conversion, as HashString does).
func HashBytes(b []byte) uint64 { return xxhash.Sum64(b) }
