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

import "fmt"

// CapacityError is panicked when a resize would grow the table past
// 2^MaxCapacityLog2 cells. This only happens when the configured Hasher
// fails to spread keys across buckets; it is not a recoverable condition
// for the set that hit it.
type CapacityError struct {
	AttemptedCapacity uint64
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("cuckoo: cannot grow to %d cells; check hash quality", e.AttemptedCapacity)
}

func panicCapacityExceeded(attempted uint64) {
	panic(&CapacityError{AttemptedCapacity: attempted})
}
