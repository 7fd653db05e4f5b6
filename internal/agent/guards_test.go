package agent

import (
	"encoding/json"
	"testing"
)

func TestLoopDetector_Threshold(t *testing.T) {
	t.Parallel()

	d := newLoopDetector(3)
	args := json.RawMessage(`{"q":"x"}`)

	if d.record("search", args) {
		t.Error("first call should not trip")
	}
	if d.record("search", args) {
		t.Error("second call should not trip")
	}
	if !d.record("search", args) {
		t.Error("third identical call should trip")
	}
}

func TestLoopDetector_DifferentArgsIndependent(t *testing.T) {
	t.Parallel()

	d := newLoopDetector(2)
	if d.record("search", json.RawMessage(`{"q":"a"}`)) {
		t.Error("should not trip")
	}
	if d.record("search", json.RawMessage(`{"q":"b"}`)) {
		t.Error("different args should count separately")
	}
}

func TestLoopDetector_KeyOrderNormalized(t *testing.T) {
	t.Parallel()

	d := newLoopDetector(2)
	d.record("search", json.RawMessage(`{"a":1,"b":2}`))
	if !d.record("search", json.RawMessage(`{"b":2,"a":1}`)) {
		t.Error("reordered keys should count as the same call")
	}
}

func TestLoopDetector_InvalidJSONFallback(t *testing.T) {
	t.Parallel()

	d := newLoopDetector(2)
	d.record("search", json.RawMessage(`not json`))
	if !d.record("search", json.RawMessage(`not json`)) {
		t.Error("identical invalid payloads should still match")
	}
}
