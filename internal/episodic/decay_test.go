package episodic

import (
	"math"
	"testing"
	"time"
)

func TestDecay_OneDay(t *testing.T) {
	now := time.Now()
	created := now.Add(-24 * time.Hour)

	got := Decay(0.8, created, now, DefaultDecayRate)
	expected := 0.8 * 0.95
	if math.Abs(got-expected) > 1e-9 {
		t.Errorf("expected %f, got %f", expected, got)
	}
}

func TestDecay_TenDays(t *testing.T) {
	now := time.Now()
	created := now.Add(-10 * 24 * time.Hour)

	got := Decay(1.0, created, now, DefaultDecayRate)
	expected := math.Pow(0.95, 10)
	if math.Abs(got-expected) > 1e-9 {
		t.Errorf("expected %f, got %f", expected, got)
	}
}

func TestDecay_FreshRecord(t *testing.T) {
	now := time.Now()
	if got := Decay(0.7, now, now, DefaultDecayRate); got != 0.7 {
		t.Errorf("expected no decay at age zero, got %f", got)
	}
}

func TestDecay_FutureCreatedAt(t *testing.T) {
	now := time.Now()
	created := now.Add(time.Hour)
	if got := Decay(0.7, created, now, DefaultDecayRate); got != 0.7 {
		t.Errorf("expected no decay for future timestamps, got %f", got)
	}
}

func TestDecay_Monotonic(t *testing.T) {
	now := time.Now()
	prev := math.Inf(1)
	for days := 0; days <= 30; days++ {
		created := now.Add(-time.Duration(days) * 24 * time.Hour)
		got := Decay(0.9, created, now, DefaultDecayRate)
		if got > prev {
			t.Fatalf("decay increased at day %d: %f > %f", days, got, prev)
		}
		prev = got
	}
}
