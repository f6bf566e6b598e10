package logging_test

import (
	"testing"

	"lecturenotes/internal/logging"
)

func TestProgressSamplerBuckets(t *testing.T) {
	s := logging.NewProgressSampler(10)
	steps := []struct {
		percent int
		stage   string
		want    bool
	}{
		{40, "caption", true},
		{43, "caption", false},
		{50, "caption", true},
		{55, "caption", false},
		{65, "segment", true},
		{-1, "segment", true},
	}
	for i, step := range steps {
		if got := s.ShouldLog("job", step.percent, step.stage); got != step.want {
			t.Fatalf("step %d: ShouldLog(%d, %q) = %v, want %v", i, step.percent, step.stage, got, step.want)
		}
	}
}

func TestProgressSamplerTracksJobsIndependently(t *testing.T) {
	s := logging.NewProgressSampler(10)
	if !s.ShouldLog("a", 75, "notes") {
		t.Fatal("first event for a should log")
	}
	if !s.ShouldLog("b", 75, "notes") {
		t.Fatal("first event for b should log")
	}
	if s.ShouldLog("a", 77, "notes") {
		t.Fatal("same bucket should be suppressed")
	}
	s.Forget("a")
	if !s.ShouldLog("a", 77, "notes") {
		t.Fatal("forgotten job should log again")
	}
}
