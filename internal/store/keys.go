package store

import "fmt"

// Resource namespaces Redis keys by concern. Multi-tenancy here is the
// client tag carried on the Task itself, not a Redis key prefix.
type Resource string

const (
	ResourceSeenDelivery Resource = "seen"
	ResourceIdempotency  Resource = "idem"
	ResourceLock         Resource = "lock"
)

// Key builds a fully qualified Redis key: taskmw:{resource}:{id}.
func Key(resource Resource, id string) string {
	return fmt.Sprintf("taskmw:%s:%s", resource, id)
}
