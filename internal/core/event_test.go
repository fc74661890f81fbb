package core

import (
	"context"
	"testing"
	"time"
)

func TestEvent_SetThenWaitReturnsImmediately(t *testing.T) {
	e := NewEvent()
	e.Set()
	if !e.Wait(context.Background(), time.Second) {
		t.Fatal("Wait returned false after Set")
	}
}

func TestEvent_CoalescesMultipleSets(t *testing.T) {
	e := NewEvent()
	e.Set()
	e.Set()
	e.Set()

	if !e.Wait(context.Background(), time.Second) {
		t.Fatal("first Wait should observe the coalesced signal")
	}
	if e.Wait(context.Background(), 20*time.Millisecond) {
		t.Fatal("second Wait should time out, signal already consumed")
	}
}

func TestEvent_WaitTimesOut(t *testing.T) {
	e := NewEvent()
	start := time.Now()
	if e.Wait(context.Background(), 20*time.Millisecond) {
		t.Fatal("Wait should return false on timeout")
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Fatal("Wait returned before the timeout elapsed")
	}
}

func TestEvent_WaitCanceledContext(t *testing.T) {
	e := NewEvent()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if e.Wait(ctx, time.Second) {
		t.Fatal("Wait should return false on an already-canceled context")
	}
}
