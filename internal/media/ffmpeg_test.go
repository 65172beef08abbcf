package media

import (
	"strings"
	"testing"
)

func TestClipSeconds(t *testing.T) {
	cases := []struct {
		audio float64
		want  int
	}{
		{0, 5},
		{3.2, 5},
		{6.9, 5},
		{7.0, 5},
		{7.1, 10},
		{9.8, 10},
		{24, 10},
	}
	for _, tc := range cases {
		if got := ClipSeconds(tc.audio); got != tc.want {
			t.Fatalf("ClipSeconds(%v) = %d, want %d", tc.audio, got, tc.want)
		}
	}
}

func TestParseProbeDuration(t *testing.T) {
	got, err := parseProbeDuration("7.429000\n")
	if err != nil {
		t.Fatalf("parseProbeDuration() unexpected error: %v", err)
	}
	if got != 7.429 {
		t.Fatalf("parseProbeDuration() = %v, want 7.429", got)
	}

	if _, err := parseProbeDuration("   \n"); err == nil {
		t.Fatalf("parseProbeDuration() expected error for empty output")
	}
	if _, err := parseProbeDuration("N/A"); err == nil {
		t.Fatalf("parseProbeDuration() expected error for N/A")
	}
}

func TestMuxArgs(t *testing.T) {
	args := muxArgs("in.mp4", "voice.mp3", "out/final.mp4")
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-i in.mp4 -i voice.mp3") {
		t.Fatalf("args = %q, want both inputs in order", joined)
	}
	if !strings.Contains(joined, "-shortest") {
		t.Fatalf("args = %q, want -shortest so the final cut stops at the shorter stream", joined)
	}
	if args[len(args)-1] != "out/final.mp4" {
		t.Fatalf("last arg = %q, want output path", args[len(args)-1])
	}
}
