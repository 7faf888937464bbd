package triage

import (
	"github.com/Geralt1983/Project-Archangel/internal/config"
	"github.com/Geralt1983/Project-Archangel/internal/store"
)

// FillDefaults populates any unset effort/importance/labels from the
// task's type defaults, then applies the client's importance_bias
// multiplicatively, clamped to [1,5].
func FillDefaults(task *store.Task, cfg *config.Config) {
	tt, ok := cfg.TaskTypes[task.Type]
	if !ok {
		tt = cfg.TaskTypes[fallbackType]
	}

	if task.EffortHours <= 0 {
		task.EffortHours = tt.DefaultEffortHours
	}
	if task.Importance == 0 {
		task.Importance = tt.DefaultImportance
	}
	if len(task.Labels) == 0 {
		task.Labels = append([]string(nil), tt.Labels...)
	}

	if cl, ok := cfg.Clients[task.Client]; ok && cl.ImportanceBias != 0 {
		biased := float64(task.Importance) * cl.ImportanceBias
		task.Importance = clampImportance(biased)
	}
}

func clampImportance(v float64) int {
	i := int(v + 0.5) // round to nearest
	if i < 1 {
		return 1
	}
	if i > 5 {
		return 5
	}
	return i
}
