package application

import (
	"context"
	"testing"
	"time"
)

// blockingPool só libera quando o ctx encerra.
type blockingPool struct{}

func (p *blockingPool) Acquire(ctx context.Context) (func(), bool) {
	<-ctx.Done()
	return nil, false
}

type immediatePool struct {
	acquired    int
	hadDeadline bool
}

func (p *immediatePool) Acquire(ctx context.Context) (func(), bool) {
	p.acquired++
	_, p.hadDeadline = ctx.Deadline()
	return func() {}, true
}

func TestConcurrencyService_Acquire_AllowsWhenNoPool(t *testing.T) {
	svc := ConcurrencyService{}
	release, ok := svc.Acquire(context.Background())
	if !ok {
		t.Fatalf("expected ok")
	}
	release()
}

func TestConcurrencyService_Acquire_UsesTimeout(t *testing.T) {
	svc := ConcurrencyService{Pool: &blockingPool{}, AcquireTimeout: 10 * time.Millisecond}

	start := time.Now()
	_, ok := svc.Acquire(context.Background())
	if ok {
		t.Fatalf("expected timeout and ok=false")
	}
	if time.Since(start) > time.Second {
		t.Fatalf("acquire did not honour the timeout")
	}
}

func TestConcurrencyService_Acquire_NoTimeoutDelegatesToPool(t *testing.T) {
	pool := &immediatePool{}
	svc := ConcurrencyService{Pool: pool}

	_, ok := svc.Acquire(context.Background())
	if !ok {
		t.Fatalf("expected ok")
	}
	if pool.acquired != 1 {
		t.Fatalf("expected pool Acquire to be called once, got %d", pool.acquired)
	}
	if pool.hadDeadline {
		t.Fatalf("expected no deadline without AcquireTimeout")
	}
}
