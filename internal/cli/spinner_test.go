package cli

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

// syncBuffer guards a bytes.Buffer shared with the spinner goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSpinnerDrawsAndClears(t *testing.T) {
	var out syncBuffer
	s := newSpinnerTo(context.Background(), &out, "Probing python3")
	s.Start()
	time.Sleep(200 * time.Millisecond)
	s.SetMessage("Writing wheels 2/3")
	time.Sleep(200 * time.Millisecond)
	s.Stop()

	got := out.String()
	for _, want := range []string{"Probing python3", "Writing wheels 2/3"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q: %q", want, got)
		}
	}
	if !strings.HasSuffix(got, "\r") {
		t.Errorf("line not cleared at stop: %q", got)
	}
}

func TestSpinnerStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := newSpinnerTo(ctx, nil, "Generating")
	s.Start()
	cancel()

	select {
	case <-s.stopped:
	case <-time.After(time.Second):
		t.Fatal("spinner still running after cancel")
	}
	s.Stop()
}

func TestSpinnerStop(t *testing.T) {
	s := newSpinnerTo(context.Background(), nil, "idle")
	s.Stop() // before Start
	s.Start()
	s.Stop()

	s = newSpinnerTo(context.Background(), nil, "twice")
	s.Start()
	s.Stop()
	s.Stop()
}

func TestSpinnerNilWriterDrawsNothing(t *testing.T) {
	s := newSpinnerTo(context.Background(), nil, "quiet")
	s.draw("⠋")
	s.clearLine()
	if s.width != 0 {
		t.Errorf("width = %d, want 0", s.width)
	}
}
