// Package jobs schedules data-parallel work and the dependencies between it.
//
// A Handle is a completion fence. Work is scheduled behind a Handle and
// produces a new one; Combine joins several fences into one. The only place a
// caller blocks is Handle.Wait.
package jobs

import (
	"context"
	"errors"
	"reflect"
)

// Handle completes once the work it guards has finished.
type Handle struct {
	done chan struct{}
	err  error
}

var completed = func() *Handle {
	h := &Handle{done: make(chan struct{})}
	close(h.done)
	return h
}()

// Completed returns a handle that is already done.
func Completed() *Handle {
	return completed
}

// Done returns a channel closed when the handle completes.
func (h *Handle) Done() <-chan struct{} {
	if h == nil {
		return completed.done
	}
	return h.done
}

// Err returns the error of the guarded work. Only valid after Done is closed.
func (h *Handle) Err() error {
	if h == nil {
		return nil
	}
	return h.err
}

// Wait blocks until the handle completes or ctx is done.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.Done():
		return h.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Schedule runs fn once dep has completed. If dep failed, fn is skipped and
// the returned handle carries dep's error.
func Schedule(ctx context.Context, dep *Handle, fn func(ctx context.Context) error) *Handle {
	h := &Handle{done: make(chan struct{})}
	go func() {
		defer close(h.done)
		select {
		case <-dep.Done():
		case <-ctx.Done():
			h.err = ctx.Err()
			return
		}
		if err := dep.Err(); err != nil {
			h.err = err
			return
		}
		h.err = fn(ctx)
	}()
	return h
}

// Settle returns a handle that completes with h but never fails. It keeps
// later work ordered behind h once h's error has been reported.
func Settle(h *Handle) *Handle {
	if h == nil || h == completed {
		return completed
	}
	out := &Handle{done: make(chan struct{})}
	go func() {
		defer close(out.done)
		<-h.done
	}()
	return out
}

// Combine returns a handle that completes when all of hs have completed.
// Nil handles count as completed. An error carried by several of hs, such as
// a shared dependency's, is reported once.
func Combine(hs ...*Handle) *Handle {
	pending := make([]*Handle, 0, len(hs))
	for _, h := range hs {
		if h != nil && h != completed {
			pending = append(pending, h)
		}
	}
	switch len(pending) {
	case 0:
		return completed
	case 1:
		return pending[0]
	}

	out := &Handle{done: make(chan struct{})}
	go func() {
		defer close(out.done)
		var errs []error
		for _, h := range pending {
			<-h.done
			if h.err != nil && !seen(errs, h.err) {
				errs = append(errs, h.err)
			}
		}
		if len(errs) == 1 {
			out.err = errs[0]
			return
		}
		out.err = errors.Join(errs...)
	}()
	return out
}

// seen reports whether err is already in errs. Errors of uncomparable types
// are never equal.
func seen(errs []error, err error) bool {
	if !reflect.TypeOf(err).Comparable() {
		return false
	}
	for _, e := range errs {
		if reflect.TypeOf(e) == reflect.TypeOf(err) && e == err {
			return true
		}
	}
	return false
}
