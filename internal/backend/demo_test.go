package backend

import (
	"context"
	"testing"
)

func TestDemoCapabilityIdempotentCreate(t *testing.T) {
	d := NewDemoCapability()
	req := Request{Operation: "create_task", IdempotencyKey: "k1", Payload: []byte(`{"title":"x"}`)}

	first, err := d.Dispatch(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if first.ExternalID == "" {
		t.Fatal("expected an external ID on first create")
	}

	second, err := d.Dispatch(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if second.ExternalID != first.ExternalID {
		t.Fatalf("expected replayed create_task to return the same external ID, got %s vs %s", first.ExternalID, second.ExternalID)
	}
}

func TestDemoCapabilityDistinctKeysGetDistinctIDs(t *testing.T) {
	d := NewDemoCapability()
	a, _ := d.Dispatch(context.Background(), Request{Operation: "create_task", IdempotencyKey: "a", Payload: []byte(`{}`)})
	b, _ := d.Dispatch(context.Background(), Request{Operation: "create_task", IdempotencyKey: "b", Payload: []byte(`{}`)})
	if a.ExternalID == b.ExternalID {
		t.Fatal("expected distinct idempotency keys to mint distinct external IDs")
	}
}
