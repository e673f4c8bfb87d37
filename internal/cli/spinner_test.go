package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestSpinnerSilentWhenNotATerminal(t *testing.T) {
	var buf bytes.Buffer
	s := newSpinner(context.Background(), &buf, "Loading...")
	s.Start()
	time.Sleep(100 * time.Millisecond)
	s.Stop()

	if buf.Len() != 0 {
		t.Errorf("spinner drew to a non-terminal: %q", buf.String())
	}
}

func TestSpinnerStopWithSuccess(t *testing.T) {
	var buf bytes.Buffer
	s := newSpinner(context.Background(), &buf, "Loading...")
	s.Start()
	s.StopWithSuccess("Loaded %s graph", "filtered")

	if !strings.Contains(buf.String(), "Loaded filtered graph") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestSpinnerStopWithError(t *testing.T) {
	var buf bytes.Buffer
	s := newSpinner(context.Background(), &buf, "Loading...")
	s.Start()
	s.StopWithError("Could not load %s graph", "full")

	if !strings.Contains(buf.String(), "Could not load full graph") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestSpinnerCancelledByParent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := newSpinner(ctx, &bytes.Buffer{}, "Loading...")
	s.Start()
	cancel()

	if !s.Cancelled() {
		t.Error("spinner should be cancelled after context cancellation")
	}
	s.Stop()
}

func TestSpinnerStopIsIdempotent(t *testing.T) {
	s := newSpinner(context.Background(), &bytes.Buffer{}, "Loading...")
	s.Stop() // before Start
	s.Start()
	s.Stop()
	s.Stop()
}
