package outbox

import (
	"testing"
	"time"

	"github.com/Geralt1983/Project-Archangel/internal/config"
)

func TestBackoffRespectsCapAndJitterBounds(t *testing.T) {
	cfg := config.OutboxConfig{
		BackoffBase: 1 * time.Second,
		BackoffCap:  60 * time.Second,
		Jitter:      0.2,
	}
	for n := 0; n < 10; n++ {
		d := Backoff(n, cfg)
		if d < 0 {
			t.Fatalf("backoff(%d) went negative: %v", n, d)
		}
		maxAllowed := time.Duration(float64(cfg.BackoffCap) * (1 + cfg.Jitter))
		if d > maxAllowed {
			t.Fatalf("backoff(%d) = %v exceeds cap*jitter bound %v", n, d, maxAllowed)
		}
	}
}

func TestBackoffGrowsWithAttempt(t *testing.T) {
	cfg := config.OutboxConfig{
		BackoffBase: 1 * time.Second,
		BackoffCap:  60 * time.Second,
		Jitter:      0,
	}
	d0 := Backoff(0, cfg)
	d3 := Backoff(3, cfg)
	if d3 <= d0 {
		t.Fatalf("expected backoff to grow with attempt count: d0=%v d3=%v", d0, d3)
	}
}
