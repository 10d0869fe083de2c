package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func writeLog(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func appendLog(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

// startWatcher runs w and returns a stop function that cancels and waits
// for Run to return.
func startWatcher(t *testing.T, w *Watcher) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	return func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run() = %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("Run did not return after cancel")
		}
	}
}

func TestWatchReportsChange(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "run.log")
	writeLog(t, path, "Starting TestCase 'A'\n")

	w, err := NewWatcher(WithDebounce(50 * time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Watch(path); err != nil {
		t.Fatal(err)
	}

	changed := make(chan string, 4)
	w.OnChange = func(_ context.Context, p string) error {
		changed <- p
		return nil
	}
	stop := startWatcher(t, w)
	defer stop()

	appendLog(t, path, "Buffer with name 'X' has been set to value '1'\n")

	select {
	case got := <-changed:
		want, _ := filepath.Abs(path)
		if got != want {
			t.Errorf("changed path = %q, want %q", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
}

func TestWatchDebouncesBursts(t *testing.T) {
	defer goleak.VerifyNone(t)

	path := filepath.Join(t.TempDir(), "run.log")
	writeLog(t, path, "")

	w, err := NewWatcher(WithDebounce(300 * time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Watch(path); err != nil {
		t.Fatal(err)
	}

	var calls atomic.Int32
	fired := make(chan struct{}, 8)
	w.OnChange = func(context.Context, string) error {
		calls.Add(1)
		fired <- struct{}{}
		return nil
	}
	stop := startWatcher(t, w)

	for i := 0; i < 5; i++ {
		appendLog(t, path, "line\n")
	}

	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		stop()
		t.Fatal("no change reported")
	}
	// give a second callback the chance to show up
	time.Sleep(600 * time.Millisecond)
	stop()

	if n := calls.Load(); n != 1 {
		t.Errorf("OnChange called %d times, want 1", n)
	}
}

func TestWatchIgnoresOtherFiles(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "run.log")
	writeLog(t, path, "")

	w, err := NewWatcher(WithDebounce(20 * time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Watch(path); err != nil {
		t.Fatal(err)
	}

	var calls atomic.Int32
	w.OnChange = func(context.Context, string) error {
		calls.Add(1)
		return nil
	}
	stop := startWatcher(t, w)

	writeLog(t, filepath.Join(dir, "other.log"), "noise")
	time.Sleep(200 * time.Millisecond)
	stop()

	if n := calls.Load(); n != 0 {
		t.Errorf("OnChange called %d times for an unwatched file", n)
	}
}

func TestWatchCallbackErrors(t *testing.T) {
	defer goleak.VerifyNone(t)

	path := filepath.Join(t.TempDir(), "run.log")
	writeLog(t, path, "")

	w, err := NewWatcher(WithDebounce(20 * time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Watch(path); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("parse failed")
	reported := make(chan error, 4)
	w.OnChange = func(context.Context, string) error { return boom }
	w.OnError = func(_ string, err error) { reported <- err }
	stop := startWatcher(t, w)
	defer stop()

	appendLog(t, path, "x\n")

	select {
	case err := <-reported:
		if !errors.Is(err, boom) {
			t.Errorf("reported %v, want %v", err, boom)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("error not reported")
	}
}

func TestWatchErrors(t *testing.T) {
	w, err := NewWatcher()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = w.Close() }()

	if err := w.Watch(filepath.Join(t.TempDir(), "missing.log")); err == nil {
		t.Error("expected error for missing file")
	}
	if err := w.Watch(t.TempDir()); err == nil {
		t.Error("expected error for a directory")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	w, err := NewWatcher()
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Run(ctx); err != nil {
		t.Errorf("Run() = %v, want nil", err)
	}
}
