package events

import "testing"

func TestMarshalEvent(t *testing.T) {
	evt := Event{Name: NameStepComplete, Data: map[string]any{"step": 1}}
	data, err := MarshalEvent(evt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected non-empty JSON")
	}
}
