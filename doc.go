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

// Package cuckoo implements a concurrent, resizable set built on two-table
// cuckoo hashing with bounded per-bucket probe arrays.
//
// Two locking strategies are exported: StripedSet uses a fixed-width lock
// array and a global-barrier resize; RefinableSet co-resizes its lock array
// with the table behind a single-writer ownership flag. Both implement Set.
//
// The set supports arbitrary comparable keys given a Hasher that produces
// one base hash per key; two de-correlated hashes are derived from it
// internally. There is no key-to-value mapping, no iteration, and capacity
// only ever grows.
package cuckoo
