package doorbell

import (
	"runtime"
	"testing"
	"time"
)

func waitReturns(t *testing.T, b Doorbell, within time.Duration) bool {
	t.Helper()
	done := make(chan struct{})
	go func() {
		b.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(within):
		return false
	}
}

func TestChanRingBeforeWait(t *testing.T) {
	b := NewChan()
	b.Ring()
	if !waitReturns(t, b, time.Second) {
		t.Fatal("Wait should return immediately after a prior Ring")
	}
}

func TestChanRingWakesWaiter(t *testing.T) {
	b := NewChan()
	go func() {
		time.Sleep(10 * time.Millisecond)
		b.Ring()
	}()
	if !waitReturns(t, b, time.Second) {
		t.Fatal("Wait should return once rung")
	}
}

func TestChanRingsCoalesce(t *testing.T) {
	b := NewChan()
	b.Ring()
	b.Ring()
	b.Ring()
	if !waitReturns(t, b, time.Second) {
		t.Fatal("first Wait should return")
	}
	// All rings collapsed into one token; another Wait must block until
	// the next Ring.
	if waitReturns(t, b, 50*time.Millisecond) {
		t.Fatal("second Wait should block with no new Ring")
	}
	b.Ring()
}

func TestFutexUnsupportedPlatforms(t *testing.T) {
	if runtime.GOOS == "linux" {
		t.Skip("futex is supported on linux")
	}
	var word uint32
	if _, err := NewFutex(&word); err == nil {
		t.Fatal("NewFutex should fail off linux")
	}
}

func TestFutexRingBeforeWait(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("futex doorbells only supported on linux")
	}
	var word uint32
	b, err := NewFutex(&word)
	if err != nil {
		t.Fatalf("NewFutex failed: %v", err)
	}
	b.Ring()
	if !waitReturns(t, b, time.Second) {
		t.Fatal("Wait should observe the moved sequence without sleeping")
	}
}

func TestFutexRingWakesWaiter(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("futex doorbells only supported on linux")
	}
	var word uint32
	waiter, err := NewFutex(&word)
	if err != nil {
		t.Fatalf("NewFutex failed: %v", err)
	}
	ringer, err := NewFutex(&word)
	if err != nil {
		t.Fatalf("NewFutex failed: %v", err)
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		ringer.Ring()
	}()
	if !waitReturns(t, waiter, time.Second) {
		t.Fatal("Wait should return once rung")
	}
}
