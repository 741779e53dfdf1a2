package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func TestNewLogger_Level(t *testing.T) {
	tests := []struct {
		level     log.Level
		wantDebug bool
		wantInfo  bool
	}{
		{log.DebugLevel, true, true},
		{log.InfoLevel, false, true},
		{log.WarnLevel, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			var buf bytes.Buffer
			l := newLogger(&buf, tt.level)
			l.Debug("dbg-line")
			l.Info("info-line")

			out := buf.String()
			if got := strings.Contains(out, "dbg-line"); got != tt.wantDebug {
				t.Errorf("debug written = %v, want %v\n%s", got, tt.wantDebug, out)
			}
			if got := strings.Contains(out, "info-line"); got != tt.wantInfo {
				t.Errorf("info written = %v, want %v\n%s", got, tt.wantInfo, out)
			}
		})
	}
}

func TestStep(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, log.DebugLevel)

	st := startStep(l, "download")
	time.Sleep(5 * time.Millisecond)
	if st.elapsed() < 5*time.Millisecond {
		t.Errorf("elapsed = %v, want >= 5ms", st.elapsed())
	}
	st.done("package", "Az.Accounts")

	out := buf.String()
	for _, want := range []string{"starting", "step=download", "finished download", "elapsed=", "package=Az.Accounts"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestLoggerFromContext(t *testing.T) {
	if loggerFromContext(context.Background()) != log.Default() {
		t.Error("bare context should yield log.Default()")
	}

	var buf bytes.Buffer
	l := newLogger(&buf, log.InfoLevel)
	ctx := withLogger(context.Background(), l)
	if loggerFromContext(ctx) != l {
		t.Fatal("attached logger not returned")
	}
	loggerFromContext(ctx).Info("through context")
	if !strings.Contains(buf.String(), "through context") {
		t.Errorf("attached logger did not write: %q", buf.String())
	}
}
