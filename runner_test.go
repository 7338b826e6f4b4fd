package statements

import (
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestDefaultRunner(t *testing.T) {
	runner := DefaultRunner()

	if runner == nil {
		t.Fatal("DefaultRunner returned nil")
	}

	// Verify it's the expected concrete type
	_, ok := runner.(*errGroupRunner)
	if !ok {
		t.Errorf("DefaultRunner should return *errGroupRunner, got %T", runner)
	}
}

func TestErrGroupRunner_Go_Success(t *testing.T) {
	runner := NewLimitedRunner(3)

	var counter int32
	for i := 0; i < 5; i++ {
		runner.Go(func() error {
			atomic.AddInt32(&counter, 1)
			return nil
		})
	}

	if err := runner.Wait(); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if atomic.LoadInt32(&counter) != 5 {
		t.Errorf("Expected counter to be 5, got %d", atomic.LoadInt32(&counter))
	}
}

func TestErrGroupRunner_Go_WithError(t *testing.T) {
	runner := NewLimitedRunner(2)

	expectedErr := errors.New("test error")

	runner.Go(func() error {
		time.Sleep(10 * time.Millisecond)
		return nil
	})
	runner.Go(func() error {
		return expectedErr
	})

	err := runner.Wait()
	if !errors.Is(err, expectedErr) {
		t.Errorf("Expected %v, got %v", expectedErr, err)
	}
}

func TestErrGroupRunner_Limit(t *testing.T) {
	runner := NewLimitedRunner(3)

	var inFlight, peak int32
	for i := 0; i < 20; i++ {
		runner.Go(func() error {
			n := atomic.AddInt32(&inFlight, 1)
			defer atomic.AddInt32(&inFlight, -1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			return nil
		})
	}

	if err := runner.Wait(); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if p := atomic.LoadInt32(&peak); p > 3 {
		t.Errorf("Expected at most 3 concurrent tasks, got %d", p)
	}
}

func TestErrGroupRunner_Panic(t *testing.T) {
	runner := NewLimitedRunner(0)

	var finished int32
	runner.Go(func() error {
		panic("worker exploded")
	})
	runner.Go(func() error {
		atomic.AddInt32(&finished, 1)
		return nil
	})

	err := runner.Wait()
	if err == nil || !strings.Contains(err.Error(), "worker exploded") {
		t.Errorf("Expected panic to surface as error, got %v", err)
	}
	if atomic.LoadInt32(&finished) != 1 {
		t.Error("Other tasks should still run after a panic")
	}
}

func TestErrGroupRunner_EmptyRunner(t *testing.T) {
	runner := DefaultRunner()

	if err := runner.Wait(); err != nil {
		t.Errorf("Expected no error for empty runner, got %v", err)
	}
}

func BenchmarkErrGroupRunner(b *testing.B) {
	b.Run("Sequential", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			runner := DefaultRunner()
			runner.Go(func() error { return nil })
			_ = runner.Wait()
		}
	})

	b.Run("Limited", func(b *testing.B) {
		runner := NewLimitedRunner(8)

		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			runner.Go(func() error { return nil })
		}
		_ = runner.Wait()
	})
}
