package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Geralt1983/Project-Archangel/internal/backend"
	"github.com/Geralt1983/Project-Archangel/internal/observability"
	"github.com/Geralt1983/Project-Archangel/internal/store"
	"github.com/Geralt1983/Project-Archangel/internal/triage"
	"github.com/Geralt1983/Project-Archangel/internal/webhook"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// intakeRequest is the Intake endpoint's input shape.
type intakeRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Client      string     `json:"client"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	Importance  *int       `json:"importance,omitempty"`
	EffortHours *float64   `json:"effort_hours,omitempty"`
	Labels      []string   `json:"labels,omitempty"`
}

type intakeResponse struct {
	ID             uuid.UUID `json:"id"`
	Score          *float64  `json:"score,omitempty"`
	RequiresReview bool      `json:"requires_review"`
}

func (a *API) handleIntake(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req intakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	raw := triage.RawIntake{
		Title:       req.Title,
		Description: req.Description,
		Client:      req.Client,
		Deadline:    req.Deadline,
		Importance:  req.Importance,
		EffortHours: req.EffortHours,
		Labels:      req.Labels,
	}

	result, err := triage.Run(r.Context(), raw, a.cfg, a.clk, a.adv)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := a.store.UpsertTask(r.Context(), result.Task); err != nil {
		http.Error(w, "failed to persist task", http.StatusInternalServerError)
		return
	}
	a.publish(r.Context(), "task.created", map[string]interface{}{"task_id": result.Task.ID.String(), "client": result.Task.Client})

	writeJSON(w, http.StatusCreated, intakeResponse{
		ID:             result.Task.ID,
		Score:          result.Task.Score,
		RequiresReview: result.Task.RequiresReview,
	})
}

type retriageRequest struct {
	ID uuid.UUID `json:"id"`
}

func (a *API) handleRetriage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req retriageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	task, err := a.store.GetTask(r.Context(), req.ID)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if task == nil {
		http.Error(w, "task not found", http.StatusNotFound)
		return
	}

	triage.Retriage(task, a.cfg, a.clk)
	if err := a.store.UpsertTask(r.Context(), task); err != nil {
		http.Error(w, "failed to persist task", http.StatusInternalServerError)
		return
	}
	a.publish(r.Context(), "task.retriaged", map[string]interface{}{"task_id": task.ID.String()})

	writeJSON(w, http.StatusOK, task)
}

type rebalanceRequest struct {
	AvailableHours float64            `json:"available_hours"`
	ClientHours    map[string]float64 `json:"client_recent_hours,omitempty"`
}

func (a *API) handleRebalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req rebalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ClientHours == nil {
		req.ClientHours = map[string]float64{}
	}

	sessionID := "on-demand-" + a.clk.Now().UTC().Format("20060102T150405")
	result, err := a.scheduler.RunRebalance(r.Context(), req.ClientHours, req.AvailableHours, sessionID)
	if err != nil {
		http.Error(w, "rebalance failed", http.StatusInternalServerError)
		return
	}
	a.publish(r.Context(), "task.rebalanced", map[string]interface{}{"session_id": sessionID, "assignment_count": len(result.Assignments)})

	writeJSON(w, http.StatusOK, result)
}

// handleListTasks serves GET /tasks/list/{backend}: a direct,
// un-queued call to the backend's list_tasks operation. A read has
// nothing to retry or replay, so it bypasses the outbox's durable
// mutation pipeline entirely rather than being forced through it.
func (a *API) handleListTasks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	backendName := strings.TrimPrefix(r.URL.Path, "/tasks/list/")
	if backendName == "" {
		http.Error(w, "backend name required", http.StatusBadRequest)
		return
	}

	adapter, ok := a.backends[backendName]
	if !ok {
		http.Error(w, "unknown backend", http.StatusBadRequest)
		return
	}

	resp, err := adapter.Dispatch(r.Context(), backend.Request{
		Operation: string(store.OpListTasks),
		Endpoint:  "/tasks",
	})
	if err != nil {
		http.Error(w, "list_tasks failed", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	w.Write(resp.Body)
}

// handleWebhook serves /webhook/{backend}: verifies the signature,
// dedups against the seen-delivery ledger, and applies the status
// transition the event carries.
func (a *API) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	backendName := strings.TrimPrefix(r.URL.Path, "/webhook/")
	if backendName == "" {
		http.Error(w, "backend name required", http.StatusBadRequest)
		return
	}

	cred, ok := a.cfg.Backends[backendName]
	if !ok {
		http.Error(w, "unknown backend", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	if err := webhook.Verify(cred, r.Header.Get(cred.WebhookHeader), body); err != nil {
		observability.WebhookDeliveries.WithLabelValues(backendName, "signature_failure").Inc()
		http.Error(w, "signature verification failed", http.StatusUnauthorized)
		return
	}

	var evt struct {
		DeliveryID string    `json:"delivery_id"`
		ExternalID string    `json:"external_id"`
		Status     string    `json:"status"`
		Timestamp  time.Time `json:"timestamp"`
	}
	if err := json.Unmarshal(body, &evt); err != nil {
		http.Error(w, "invalid event body", http.StatusBadRequest)
		return
	}

	fresh, err := a.dedup.Check(r.Context(), backendName, evt.DeliveryID)
	if err != nil {
		http.Error(w, "dedup check failed", http.StatusInternalServerError)
		return
	}
	if !fresh {
		observability.WebhookDeliveries.WithLabelValues(backendName, "duplicate").Inc()
		w.WriteHeader(http.StatusNoContent)
		return
	}

	applied, err := a.router.Apply(r.Context(), webhook.Event{
		Backend:    backendName,
		ExternalID: evt.ExternalID,
		DeliveryID: evt.DeliveryID,
		NewStatus:  store.TaskStatus(evt.Status),
		Timestamp:  evt.Timestamp,
	})
	if err == webhook.ErrInvalidStatus {
		observability.WebhookDeliveries.WithLabelValues(backendName, "invalid_status").Inc()
		http.Error(w, "event status is not a known task status", http.StatusBadRequest)
		return
	}
	if err == webhook.ErrUnmappedExternalID {
		observability.WebhookDeliveries.WithLabelValues(backendName, "unmapped").Inc()
		w.WriteHeader(http.StatusOK)
		return
	}
	if err != nil {
		http.Error(w, "failed to apply event", http.StatusInternalServerError)
		return
	}

	outcome := "accepted"
	if !applied {
		outcome = "ignored"
	}
	observability.WebhookDeliveries.WithLabelValues(backendName, outcome).Inc()
	w.WriteHeader(http.StatusOK)
}

func (a *API) handleOutboxStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	stats, err := a.store.OutboxStats(r.Context())
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleDeadLetterRequeue serves POST /outbox/dead-letter/{id}/requeue,
// an operator escape hatch: a dead-lettered row never retries on its
// own, so moving it back to pending requires an explicit call.
func (a *API) handleDeadLetterRequeue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/outbox/dead-letter/")
	path = strings.TrimSuffix(path, "/requeue")
	id, err := strconv.ParseInt(path, 10, 64)
	if err != nil {
		http.Error(w, "invalid row id", http.StatusBadRequest)
		return
	}

	if err := a.store.RequeueDeadLetter(r.Context(), id); err != nil {
		http.Error(w, "requeue failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleMappingLookup serves GET /mapping/{backend}/{external_id}.
func (a *API) handleMappingLookup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/mapping/"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		http.Error(w, "expected /mapping/{backend}/{external_id}", http.StatusBadRequest)
		return
	}

	taskID, ok, err := a.store.GetMappingInternalID(r.Context(), parts[0], parts[1])
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "mapping not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"id": taskID.String()})
}

func (a *API) handleAuditExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	from, err := time.Parse(time.RFC3339, q.Get("from"))
	if err != nil {
		http.Error(w, "from must be an RFC3339 timestamp", http.StatusBadRequest)
		return
	}
	to, err := time.Parse(time.RFC3339, q.Get("to"))
	if err != nil {
		http.Error(w, "to must be an RFC3339 timestamp", http.StatusBadRequest)
		return
	}

	traces, err := a.store.ListTraces(r.Context(), from, to)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, traces)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	deps := map[string]bool{}

	_, err := a.store.OutboxStats(r.Context())
	deps["store"] = err == nil

	_, err = a.ledger.CheckAndInsert(r.Context(), "healthcheck", time.Second)
	deps["ledger"] = err == nil

	ok := true
	for _, up := range deps {
		ok = ok && up
	}

	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]interface{}{"ok": ok, "dependencies": deps})
}

// handleDebugSnapshot serves GET /debug/outbox/snapshot: a point-in-time
// view of outbox backlog plus the dead-letter queue, for operators
// without direct database access.
func (a *API) handleDebugSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats, err := a.store.OutboxStats(r.Context())
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	deadLetters, err := a.store.ListDeadLetters(r.Context(), 50)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"outbox_stats": stats,
		"dead_letters": deadLetters,
	})
}
