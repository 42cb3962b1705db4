package schedule

import (
	"reflect"
	"sync/atomic"
	"testing"
	"time"
)

func TestFake_FiresInDeadlineOrder(t *testing.T) {
	s := NewFake()
	var order []string

	s.AfterFunc(3*time.Second, func() { order = append(order, "c") })
	s.AfterFunc(1*time.Second, func() { order = append(order, "a") })
	s.AfterFunc(2*time.Second, func() { order = append(order, "b") })

	s.Advance(1500 * time.Millisecond)
	if !reflect.DeepEqual(order, []string{"a"}) {
		t.Fatalf("after 1.5s order = %v", order)
	}

	s.Advance(2 * time.Second)
	if !reflect.DeepEqual(order, []string{"a", "b", "c"}) {
		t.Errorf("order = %v", order)
	}
	if s.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", s.Pending())
	}
}

func TestFake_Stop(t *testing.T) {
	s := NewFake()
	var fired atomic.Bool

	timer := s.AfterFunc(time.Second, func() { fired.Store(true) })
	if !timer.Stop() {
		t.Error("Stop() = false on armed timer")
	}
	if timer.Stop() {
		t.Error("second Stop() = true")
	}

	s.Advance(time.Minute)
	if fired.Load() {
		t.Error("stopped timer fired")
	}
}

func TestFake_RearmInsideCallback(t *testing.T) {
	s := NewFake()
	count := 0

	var tick func()
	tick = func() {
		count++
		if count < 3 {
			s.AfterFunc(time.Second, tick)
		}
	}
	s.AfterFunc(time.Second, tick)

	s.Advance(10 * time.Second)
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
}

func TestReal_AfterFunc(t *testing.T) {
	done := make(chan struct{})
	Real{}.AfterFunc(time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("real timer did not fire")
	}
}
