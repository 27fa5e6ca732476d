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

import "go.uber.org/zap"

// Tunable defaults, per §3 of the specification.
const (
	DefaultInitialCapacity = 16 // rounded up to the next power of two anyway
	DefaultThreshold       = 2  // insert directly below this many keys per cell
	DefaultProbeSize       = 4  // hard cap on keys per cell
	DefaultDisplacementLimit = 10 // relocation rounds before forcing a resize
	MaxCapacityLog2        = 25 // 2^25 cells; growing past this is fatal
)

// Config collects the tunables accepted by configure() in §6. Zero values
// are replaced by the defaults above; construct one via Option functions
// rather than directly.
type Config struct {
	InitialCapacity   uint64
	Threshold         int
	ProbeSize         int
	DisplacementLimit int
	StripeCount       uint64 // StripedSet only; 0 means "= InitialCapacity"
	Logger            *zap.Logger
}

// Option configures a Set at construction time.
type Option func(*Config)

// WithInitialCapacity sets the starting number of cells per table (rounded
// up to the next power of two).
func WithInitialCapacity(n uint64) Option {
	return func(c *Config) { c.InitialCapacity = n }
}

// WithThreshold overrides THRESHOLD: the per-cell count below which a
// direct insert is always allowed.
func WithThreshold(n int) Option {
	return func(c *Config) { c.Threshold = n }
}

// WithProbeSize overrides PROBE_SIZE: the hard per-cell cap.
func WithProbeSize(n int) Option {
	return func(c *Config) { c.ProbeSize = n }
}

// WithDisplacementLimit overrides LIMIT: the maximum number of relocation
// rounds attempted before an insert forces a resize.
func WithDisplacementLimit(n int) Option {
	return func(c *Config) { c.DisplacementLimit = n }
}

// WithStripeCount overrides the fixed stripe count used by StripedSet. It
// has no effect on RefinableSet, whose lock array tracks capacity.
func WithStripeCount(n uint64) Option {
	return func(c *Config) { c.StripeCount = n }
}

// WithLogger attaches a structured logger; resize start/finish are logged
// at Debug, a lost resize race at Warn. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

func buildConfig(opts []Option) Config {
	cfg := Config{
		InitialCapacity:   DefaultInitialCapacity,
		Threshold:         DefaultThreshold,
		ProbeSize:         DefaultProbeSize,
		DisplacementLimit: DefaultDisplacementLimit,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.InitialCapacity == 0 {
		cfg.InitialCapacity = DefaultInitialCapacity
	}
	cfg.InitialCapacity = nextPowerOfTwo(cfg.InitialCapacity)
	if cfg.StripeCount == 0 {
		cfg.StripeCount = cfg.InitialCapacity
	} else {
		cfg.StripeCount = nextPowerOfTwo(cfg.StripeCount)
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.ProbeSize <= 0 {
		cfg.ProbeSize = DefaultProbeSize
	}
	if cfg.DisplacementLimit <= 0 {
		cfg.DisplacementLimit = DefaultDisplacementLimit
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return cfg
}

func nextPowerOfTwo(n uint64) uint64 {
	if n == 0 {
		return 1
	}
	if n&(n-1) == 0 {
		return n
	}
	power := uint64(1)
	for power < n {
		power <<= 1
	}
	return power
}
