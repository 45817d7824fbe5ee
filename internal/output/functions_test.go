package output

import (
	"strings"
	"testing"
)

func TestFormatBytes(t *testing.T) {
	cases := []struct {
		in   uint64
		want string
	}{
		{512, "512 B"},
		{2048, "2.00 KB"},
		{5 * 1024 * 1024, "5.00 MB"},
		{3 * 1024 * 1024 * 1024, "3.00 GB"},
	}
	for _, tc := range cases {
		if got := FormatBytes(tc.in); got != tc.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatSpeed(t *testing.T) {
	if got := FormatSpeed(1024, 0); got != "0 B/s" {
		t.Errorf("zero elapsed: got %q", got)
	}
	if got := FormatSpeed(2048, 1); got != "2.00 KB/s" {
		t.Errorf("got %q", got)
	}
}

func TestRenderBarClamps(t *testing.T) {
	full := renderBar(200, 100, 10, "")
	if !strings.Contains(full, "100.0%") {
		t.Errorf("overshoot should clamp to 100%%, got %q", full)
	}
	empty := renderBar(-5, 100, 10, "")
	if !strings.Contains(empty, "0.0%") {
		t.Errorf("negative current should clamp to 0%%, got %q", empty)
	}
}

func TestShortenFilename(t *testing.T) {
	if got := shortenFilename("short.txt", 20); got != "short.txt" {
		t.Errorf("short name changed: %q", got)
	}
	long := "a-very-long-file-name-indeed.tar.gz"
	got := shortenFilename(long, 20)
	if len(got) != 20 || !strings.HasPrefix(got, "...") {
		t.Errorf("unexpected shortened name %q", got)
	}
}
