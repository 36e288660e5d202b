package security

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/semaphore"

	"github.com/arklim/access-gateway/internal/core/port"
)

// HashPool runs Argon2id work on a bounded number of goroutines so request handlers never saturate
// every CPU with hashing. Callers wait on the result or on their context.
type HashPool struct {
	hasher *Argon2Hasher
	sem    *semaphore.Weighted
}

// NewHashPool bounds concurrent hashing to size; non-positive sizes use GOMAXPROCS.
func NewHashPool(hasher *Argon2Hasher, size int) *HashPool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	return &HashPool{
		hasher: hasher,
		sem:    semaphore.NewWeighted(int64(size)),
	}
}

type hashResult struct {
	digest string
	ok     bool
	err    error
}

// Hash produces an encoded digest for password.
func (p *HashPool) Hash(ctx context.Context, password string) (string, error) {
	res, err := p.run(ctx, func() hashResult {
		digest, err := p.hasher.Hash(password)
		return hashResult{digest: digest, err: err}
	})
	if err != nil {
		return "", err
	}
	return res.digest, res.err
}

// Verify checks password against encoded.
func (p *HashPool) Verify(ctx context.Context, password string, encoded string) (bool, error) {
	res, err := p.run(ctx, func() hashResult {
		ok, err := p.hasher.Verify(password, encoded)
		return hashResult{ok: ok, err: err}
	})
	if err != nil {
		return false, err
	}
	return res.ok, res.err
}

func (p *HashPool) run(ctx context.Context, work func() hashResult) (hashResult, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return hashResult{}, fmt.Errorf("acquire hashing slot: %w", err)
	}

	done := make(chan hashResult, 1)
	go func() {
		defer p.sem.Release(1)
		done <- work()
	}()

	select {
	case res := <-done:
		return res, nil
	case <-ctx.Done():
		return hashResult{}, ctx.Err()
	}
}

var _ port.PasswordHasher = (*HashPool)(nil)
