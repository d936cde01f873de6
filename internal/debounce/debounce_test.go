package debounce_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrWong99/wavecue/internal/debounce"
)

func waitFor(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for debounced call")
		return ""
	}
}

func TestTask_NewestWins(t *testing.T) {
	t.Parallel()
	task := debounce.New(30 * time.Millisecond)
	got := make(chan string, 3)
	var runs atomic.Int32

	for _, v := range []string{"first", "second", "third"} {
		task.Schedule(func() {
			runs.Add(1)
			got <- v
		})
	}

	if v := waitFor(t, got); v != "third" {
		t.Errorf("ran %q, want third", v)
	}
	time.Sleep(60 * time.Millisecond)
	if n := runs.Load(); n != 1 {
		t.Errorf("runs = %d, want 1", n)
	}
	if task.Flush() {
		t.Error("Flush ran a function that had already fired")
	}
}

func TestTask_Cancel(t *testing.T) {
	t.Parallel()
	task := debounce.New(20 * time.Millisecond)
	var runs atomic.Int32
	task.Schedule(func() { runs.Add(1) })

	if !task.Cancel() {
		t.Error("Cancel should report a pending call")
	}
	if task.Cancel() {
		t.Error("second Cancel should report nothing pending")
	}
	time.Sleep(60 * time.Millisecond)
	if n := runs.Load(); n != 0 {
		t.Errorf("cancelled task ran %d times", n)
	}
}

func TestTask_Flush(t *testing.T) {
	t.Parallel()
	task := debounce.New(time.Hour)
	ran := false
	task.Schedule(func() { ran = true })

	if !task.Flush() {
		t.Fatal("Flush should run the pending call")
	}
	if !ran {
		t.Error("function did not run")
	}
	if task.Flush() {
		t.Error("second Flush should be a no-op")
	}
}
