package status

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestFormatBytes(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1536, "1.5 KB"},
		{10 * 1024 * 1024, "10.0 MB"},
	}
	for _, c := range cases {
		if got := formatBytes(c.in); got != c.want {
			t.Fatalf("formatBytes(%d) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	if got := formatDuration(0); got != "--:--" {
		t.Fatalf("formatDuration(0) = %q, want --:--", got)
	}
	if got := formatDuration(90 * time.Second); got != "01:30" {
		t.Fatalf("formatDuration(90s) = %q, want 01:30", got)
	}
	if got := formatDuration(90 * time.Minute); got != "1:30:00" {
		t.Fatalf("formatDuration(90m) = %q, want 1:30:00", got)
	}
}

func TestRenderIncludesLabelAndPercentComponents(t *testing.T) {
	r := New("out.bin")
	line := r.Render(500, 1000, 100, 5*time.Second)
	if !strings.Contains(line, "out.bin") {
		t.Fatalf("Render() = %q, missing label", line)
	}
	if !strings.Contains(line, "50%") {
		t.Fatalf("Render() = %q, missing percent", line)
	}
}

func TestRenderDoneAndError(t *testing.T) {
	r := New("out.bin")
	done := r.RenderDone(1000, time.Second)
	if !strings.Contains(done, "done") {
		t.Fatalf("RenderDone() = %q, missing 'done'", done)
	}
	failed := r.RenderError(errors.New("boom"))
	if !strings.Contains(failed, "failed") || !strings.Contains(failed, "boom") {
		t.Fatalf("RenderError() = %q, missing expected text", failed)
	}
}
