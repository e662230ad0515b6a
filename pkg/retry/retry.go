// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package retry runs collaborator calls under a per-attempt timeout and a
// bounded exponential backoff. Only errors classified as retryable
// collaborator failures are retried; input and domain errors return at once.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	xerrors "github.com/wongivan852/legal-ai-vault-sub000/pkg/errors"
)

// Policy bounds a single collaborator call.
type Policy struct {
	// Timeout applies to each attempt. Zero disables it.
	Timeout time.Duration `yaml:"timeout"`
	// MaxAttempts counts the first attempt. Values below 1 mean 1.
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		Timeout:         60 * time.Second,
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

// SetDefaults fills zero fields from DefaultPolicy.
func (p *Policy) SetDefaults() {
	d := DefaultPolicy()
	if p.Timeout == 0 {
		p.Timeout = d.Timeout
	}
	if p.MaxAttempts == 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.InitialInterval == 0 {
		p.InitialInterval = d.InitialInterval
	}
	if p.MaxInterval == 0 {
		p.MaxInterval = d.MaxInterval
	}
}

// Do calls fn until it succeeds, fails with a non-retryable error, or the
// attempt budget is spent. An attempt that exceeds the per-call timeout is
// reported as a timeout error; cancellation of ctx ends the loop with a
// cancelled error wrapping ctx's cause.
func Do[T any](ctx context.Context, p Policy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}

	attempt := 0
	operation := func() (T, error) {
		attempt++
		v, err := call(ctx, p.Timeout, op, fn)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil || !xerrors.IsRetryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	v, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.Warn("Retrying collaborator call",
				"op", op, "attempt", attempt, "max_attempts", attempts,
				"delay", next, "error", err)
		}),
	)
	if err == nil {
		return v, nil
	}

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Unwrap()
	}
	if ctx.Err() != nil && !errors.Is(err, xerrors.ErrCancelled) {
		err = xerrors.Wrap(xerrors.CodeCancelled, err, op+" cancelled")
	}
	return v, err
}

func call[T any](ctx context.Context, timeout time.Duration, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	v, err := fn(callCtx)
	if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return v, xerrors.Wrap(xerrors.CodeTimeout, err, op+" timed out after "+timeout.String())
	}
	return v, err
}
