// Copyright 2026 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package diag

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/multierr"

	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/config"
	"go.fuchsia.dev/ipcgen/tools/lib/logger"
)

// Reporter applies a Policy to diagnostics. Warnings are logged and counted;
// with WarningsAsErrors they are also retained as errors.
//
// A Reporter is safe for concurrent use.
type Reporter struct {
	ctx    context.Context
	policy config.Policy

	mu       sync.Mutex
	warnings int
	errs     error
}

func NewReporter(ctx context.Context, policy config.Policy) *Reporter {
	return &Reporter{ctx: ctx, policy: policy}
}

// Warn records a non-fatal diagnostic.
func (r *Reporter) Warn(err error) {
	logger.Warningf(r.ctx, "%s", err)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings++
	if r.policy.WarningsAsErrors {
		r.errs = multierr.Append(r.errs, err)
	}
}

// Error records a fatal diagnostic.
func (r *Reporter) Error(err error) {
	logger.Errorf(r.ctx, "%s", err)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = multierr.Append(r.errs, err)
}

// Collision records a CollisionError according to the collision policy and
// reports whether it is fatal.
func (r *Reporter) Collision(err *CollisionError) bool {
	if r.policy.Collisions == config.CollisionsWarn && err.Reason == "" {
		r.Warn(err)
		return false
	}
	r.Error(err)
	return true
}

// Clamp records an OverflowClamp if the policy asks for clamp warnings.
func (r *Reporter) Clamp(err *OverflowClamp) {
	if r.policy.WarnOnClamp {
		r.Warn(err)
	}
}

// Warnings returns the number of warnings recorded so far.
func (r *Reporter) Warnings() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.warnings
}

// Err returns every error recorded so far, combined, or nil.
func (r *Reporter) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errs
}

// Errors splits the combined error back into its parts.
func (r *Reporter) Errors() []error {
	return multierr.Errors(r.Err())
}

// IsLayoutFailure reports whether err contains one of the errors that abort
// the layout of an operation.
func IsLayoutFailure(err error) bool {
	for _, e := range multierr.Errors(err) {
		var (
			tre *TypeResolutionError
			mce *MissingCompanionError
			le  *LayoutError
		)
		if errors.As(e, &tre) || errors.As(e, &mce) || errors.As(e, &le) {
			return true
		}
	}
	return false
}
