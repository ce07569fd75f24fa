package logging

import "testing"

func TestNewProgressSamplerDefaults(t *testing.T) {
	tests := []struct {
		name       string
		bucketSize float64
		wantSize   float64
	}{
		{"zero uses default", 0, 10},
		{"negative uses default", -1, 10},
		{"custom", 25, 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewProgressSampler(tt.bucketSize)
			if s.bucketSize != tt.wantSize {
				t.Errorf("bucketSize = %v, want %v", s.bucketSize, tt.wantSize)
			}
		})
	}
}

func TestProgressSamplerNil(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog(1, 2, "frames") {
		t.Fatal("nil sampler should always log")
	}
}

func TestProgressSamplerBuckets(t *testing.T) {
	s := NewProgressSampler(25)
	steps := []struct {
		done, total int
		phase       string
		want        bool
	}{
		{0, 100, "frames", true},
		{10, 100, "frames", false},
		{25, 100, "frames", true},
		{30, 100, "frames", false},
		{100, 100, "frames", true},
		{120, 100, "frames", false},
		{0, 4, "render", true},
		{0, 0, "render", false},
		{0, 0, "copy", true},
	}
	for i, step := range steps {
		if got := s.ShouldLog(step.done, step.total, step.phase); got != step.want {
			t.Fatalf("step %d: ShouldLog(%d,%d,%q) = %v, want %v", i, step.done, step.total, step.phase, got, step.want)
		}
	}
}

func TestPercent(t *testing.T) {
	if got := Percent(1, 4); got != 25 {
		t.Fatalf("Percent(1,4) = %v", got)
	}
	if got := Percent(1, 0); got != -1 {
		t.Fatalf("Percent(1,0) = %v", got)
	}
}
