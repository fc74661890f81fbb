package core

import (
	"context"
	"testing"
	"time"
)

func TestResourceReady_NotifyThenWait(t *testing.T) {
	r := NewResourceReady()
	r.Notify("tid-1", 42)

	id, err := r.Wait(context.Background(), "tid-1")
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if id != 42 {
		t.Fatalf("id = %d, want 42", id)
	}
}

func TestResourceReady_WaitBlocksUntilNotify(t *testing.T) {
	r := NewResourceReady()
	done := make(chan int64, 1)
	go func() {
		id, err := r.Wait(context.Background(), "tid-2")
		if err != nil {
			t.Errorf("Wait: %v", err)
			return
		}
		done <- id
	}()

	time.Sleep(20 * time.Millisecond)
	r.Notify("tid-2", 7)

	select {
	case id := <-done:
		if id != 7 {
			t.Fatalf("id = %d, want 7", id)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not unblock after Notify")
	}
}

func TestResourceReady_WaitIgnoresOtherTIDs(t *testing.T) {
	r := NewResourceReady()
	r.Notify("someone-else", 1)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := r.Wait(ctx, "tid-3"); err == nil {
		t.Fatal("Wait should not return for a tid it was not notified about")
	}
}

func TestResourceReady_CanceledContext(t *testing.T) {
	r := NewResourceReady()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Wait(ctx, "tid-4"); err == nil {
		t.Fatal("Wait should return an error on a canceled context")
	}
}
