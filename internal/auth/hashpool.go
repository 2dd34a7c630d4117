// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fokus Contributors

package auth

import (
	"context"
	"runtime"
	"time"

	"github.com/samber/oops"
)

// HashPool bounds how many password hashes run at once. Callers beyond the
// limit wait for a slot or give up when their context ends.
type HashPool struct {
	hasher   PasswordHasher
	slots    chan struct{}
	observer func(op string, d time.Duration)
}

// HashPoolOption customizes a HashPool.
type HashPoolOption func(*HashPool)

// WithHashObserver registers a callback receiving the duration of every
// completed hash or verify. op is "hash" or "verify".
func WithHashObserver(fn func(op string, d time.Duration)) HashPoolOption {
	return func(p *HashPool) {
		p.observer = fn
	}
}

// NewHashPool wraps hasher with a pool of the given size.
// A size <= 0 uses GOMAXPROCS.
func NewHashPool(hasher PasswordHasher, size int, opts ...HashPoolOption) *HashPool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	p := &HashPool{
		hasher: hasher,
		slots:  make(chan struct{}, size),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Size returns the number of concurrent hashes the pool allows.
func (p *HashPool) Size() int {
	return cap(p.slots)
}

// Hash hashes password once a slot is free.
func (p *HashPool) Hash(ctx context.Context, password string) (string, error) {
	var (
		hash string
		err  error
	)
	runErr := p.run(ctx, "hash", func() {
		hash, err = p.hasher.Hash(password)
	})
	if runErr != nil {
		return "", runErr
	}
	return hash, err
}

// Verify checks password against hash once a slot is free.
func (p *HashPool) Verify(ctx context.Context, password, hash string) (bool, error) {
	var (
		ok  bool
		err error
	)
	runErr := p.run(ctx, "verify", func() {
		ok, err = p.hasher.Verify(password, hash)
	})
	if runErr != nil {
		return false, runErr
	}
	return ok, err
}

// NeedsUpgrade reports whether hash should be recomputed. It is cheap and
// does not take a slot.
func (p *HashPool) NeedsUpgrade(hash string) bool {
	return p.hasher.NeedsUpgrade(hash)
}

func (p *HashPool) run(ctx context.Context, op string, fn func()) error {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return oops.Code("AUTH_HASH_CANCELLED").
			With("operation", op).
			Wrap(ctx.Err())
	}
	defer func() { <-p.slots }()

	start := time.Now()
	fn()
	if p.observer != nil {
		p.observer(op, time.Since(start))
	}
	return nil
}
