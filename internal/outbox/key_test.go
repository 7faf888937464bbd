package outbox

import "testing"

func TestComputeIdempotencyKeyDeterministic(t *testing.T) {
	k1 := ComputeIdempotencyKey("jira", "create_task", "/rest/api/2/issue", []byte(`{"a":1}`))
	k2 := ComputeIdempotencyKey("jira", "create_task", "/rest/api/2/issue", []byte(`{"a":1}`))
	if k1 != k2 {
		t.Fatalf("expected identical key, got %s and %s", k1, k2)
	}
}

func TestComputeIdempotencyKeyDiffersByField(t *testing.T) {
	base := ComputeIdempotencyKey("jira", "create_task", "/issue", []byte(`{"a":1}`))
	cases := map[string]string{
		"backend":   ComputeIdempotencyKey("asana", "create_task", "/issue", []byte(`{"a":1}`)),
		"operation": ComputeIdempotencyKey("jira", "update_task", "/issue", []byte(`{"a":1}`)),
		"endpoint":  ComputeIdempotencyKey("jira", "create_task", "/other", []byte(`{"a":1}`)),
		"payload":   ComputeIdempotencyKey("jira", "create_task", "/issue", []byte(`{"a":2}`)),
	}
	for name, key := range cases {
		if key == base {
			t.Errorf("expected %s to change the key, but it matched the base", name)
		}
	}
}

func TestCanonicalizeStableAcrossKeyOrder(t *testing.T) {
	a, err := Canonicalize(map[string]interface{}{"b": 2, "a": 1})
	if err != nil {
		t.Fatal(err)
	}
	b, err := Canonicalize(map[string]interface{}{"a": 1, "b": 2})
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Fatalf("expected canonical forms to match, got %s vs %s", a, b)
	}
}
