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
	"context"

	"golang.org/x/sync/errgroup"
)

// PopulateConcurrently shards batch across workers goroutines and calls
// Add for each element, on whichever Set implementation is passed in. Each
// worker exercises the exact same Add path an independent caller would;
// this adds no new invariants over the sequential Populate in §4.3, just
// parallel fan-out for large batches. The batch is split into contiguous
// shards of equal size (the last may be shorter), one goroutine each;
// workers < 1 is treated as 1, which still runs the whole batch on a
// single new goroutine rather than the calling one.
func PopulateConcurrently[K comparable](ctx context.Context, s Set[K], batch []K, workers int) error {
	if workers < 1 {
		workers = 1
	}
	if len(batch) == 0 {
		return nil
	}
	if workers > len(batch) {
		workers = len(batch)
	}

	g, ctx := errgroup.WithContext(ctx)
	chunk := (len(batch) + workers - 1) / workers

	for start := 0; start < len(batch); start += chunk {
		end := start + chunk
		if end > len(batch) {
			end = len(batch)
		}
		shard := batch[start:end]
		g.Go(func() error {
			for _, k := range shard {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
				s.Add(k)
			}
			return nil
		})
	}
	return g.Wait()
}
