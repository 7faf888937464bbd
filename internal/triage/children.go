package triage

import (
	"strings"

	"github.com/Geralt1983/Project-Archangel/internal/config"
	"github.com/Geralt1983/Project-Archangel/internal/store"
)

// DeriveChildren instantiates the type's subtask/checklist templates,
// substituting {client} and {title} placeholders. The results are
// deterministic functions of (type, client, title); a Subtasks or
// Checklist list the caller already populated is left as it is.
func DeriveChildren(task *store.Task, cfg *config.Config) {
	tt, ok := cfg.TaskTypes[task.Type]
	if !ok {
		tt = cfg.TaskTypes[fallbackType]
	}

	if len(task.Subtasks) == 0 {
		task.Subtasks = instantiate(tt.SubtasksTemplate, task)
	}
	if len(task.Checklist) == 0 {
		task.Checklist = instantiate(tt.ChecklistTemplate, task)
	}
}

func instantiate(templates []string, task *store.Task) []string {
	if len(templates) == 0 {
		return nil
	}
	out := make([]string, len(templates))
	for i, tmpl := range templates {
		s := strings.ReplaceAll(tmpl, "{client}", task.Client)
		s = strings.ReplaceAll(s, "{title}", task.Title)
		out[i] = s
	}
	return out
}
