package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestSpinner_Animates(t *testing.T) {
	var buf bytes.Buffer
	sp := startSpinner(context.Background(), &buf, true, "Querying gallery")
	time.Sleep(20 * time.Millisecond)
	sp.stop()

	out := buf.String()
	if !strings.Contains(out, "Querying gallery") {
		t.Errorf("no frame drawn: %q", out)
	}
	if !strings.HasSuffix(out, "\r") {
		t.Errorf("line not cleared after stop: %q", out)
	}
	if sp.cancelled() {
		t.Error("normal stop reported as cancelled")
	}
}

func TestSpinner_Quiet(t *testing.T) {
	var buf bytes.Buffer
	sp := startSpinner(context.Background(), &buf, false, "Querying gallery")
	sp.stop()
	sp.stop()
	if buf.Len() != 0 {
		t.Errorf("non-animated spinner wrote %q", buf.String())
	}
}

func TestSpinner_ParentCancel(t *testing.T) {
	var buf bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())
	sp := startSpinner(ctx, &buf, true, "Fetching")
	cancel()

	select {
	case <-sp.stopped:
	case <-time.After(time.Second):
		t.Fatal("spinner kept running after its context was cancelled")
	}
	if !sp.cancelled() {
		t.Error("cancelled() = false after parent cancel")
	}

	want := context.Canceled
	if err := sp.fail(want); !errors.Is(err, want) {
		t.Errorf("fail() = %v, want %v", err, want)
	}
}

func TestSpinner_FailReturnsError(t *testing.T) {
	var buf bytes.Buffer
	sp := startSpinner(context.Background(), &buf, true, "Querying gallery")
	want := errors.New("gallery down")
	if err := sp.fail(want); err != want {
		t.Errorf("fail() = %v, want %v", err, want)
	}
	sp.stop()
}
