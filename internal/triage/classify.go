package triage

import (
	"sort"
	"strings"

	"github.com/Geralt1983/Project-Archangel/internal/config"
)

// fallbackType is used whenever no type's keywords match, or the
// config has no types configured — failure semantics say
// classification errors fall back rather than reject the intake.
const fallbackType = "general"

// Classify scores title+description against each configured type's
// keyword set and returns the strongest match, breaking ties by type
// name so the result is independent of map iteration order (Go gives
// no iteration guarantee over cfg.TaskTypes), satisfying the
// requirement that classification be deterministic and restartable.
func Classify(title, description string, cfg *config.Config) string {
	haystack := strings.ToLower(title + " " + description)

	names := make([]string, 0, len(cfg.TaskTypes))
	for name := range cfg.TaskTypes {
		names = append(names, name)
	}
	sort.Strings(names)

	best := fallbackType
	bestScore := 0
	for _, name := range names {
		if name == fallbackType {
			continue
		}
		tt := cfg.TaskTypes[name]
		score := 0
		for _, kw := range tt.ClassifyKeywords {
			if kw == "" {
				continue
			}
			if strings.Contains(haystack, strings.ToLower(kw)) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = tt.Name
		}
	}
	return best
}
