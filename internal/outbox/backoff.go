package outbox

import (
	"math"
	"math/rand"
	"time"

	"github.com/Geralt1983/Project-Archangel/internal/config"
)

// Backoff computes the delay before retry attempt n (0-indexed) under
// exponential backoff with proportional jitter: min(cap, base*2^n) scaled by a
// uniform factor in [1-jitter, 1+jitter].
func Backoff(n int, cfg config.OutboxConfig) time.Duration {
	raw := float64(cfg.BackoffBase) * math.Pow(2, float64(n))
	capped := math.Min(raw, float64(cfg.BackoffCap))

	jitter := cfg.Jitter
	if jitter < 0 {
		jitter = 0
	}
	factor := 1 - jitter + rand.Float64()*2*jitter
	return time.Duration(capped * factor)
}
