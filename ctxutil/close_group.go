// Copyright (c) 2023 BVK Chaitanya

package ctxutil

import (
	"context"
	"os"
	"sync"
)

// CloseGroup runs background goroutines under a shared context that is
// canceled when the group is closed. Zero value is ready to use.
type CloseGroup struct {
	closeCtx  context.Context
	causeFunc context.CancelCauseFunc

	wg sync.WaitGroup

	once sync.Once
}

func (cg *CloseGroup) init() {
	cg.closeCtx, cg.causeFunc = context.WithCancelCause(context.Background())
}

// Close cancels the group context with os.ErrClosed and waits for all
// goroutines to return.
func (cg *CloseGroup) Close() {
	cg.CloseCause(os.ErrClosed)
}

// CloseCause is like Close, but uses the input error as the cancellation
// cause.
func (cg *CloseGroup) CloseCause(cause error) {
	cg.once.Do(cg.init)
	cg.causeFunc(cause)
	cg.wg.Wait()
}

func (cg *CloseGroup) Context() context.Context {
	cg.once.Do(cg.init)
	return cg.closeCtx
}

func (cg *CloseGroup) Go(f func(ctx context.Context)) {
	cg.once.Do(cg.init)

	cg.wg.Add(1)
	go func() {
		defer cg.wg.Done()
		f(cg.closeCtx)
	}()
}
