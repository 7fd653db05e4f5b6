package toolset

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/parleyhq/parley/internal/auth"
)

// fakeTool is a minimal tool for testing.
type fakeTool struct {
	name   string
	output Output
	err    error
}

func (t *fakeTool) Name() string            { return t.name }
func (t *fakeTool) Description() string     { return "fake " + t.name }
func (t *fakeTool) Schema() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }

func (t *fakeTool) Invoke(_ context.Context, _ json.RawMessage) (Output, error) {
	return t.output, t.err
}

// fakeSource returns fixed tools or an error.
type fakeSource struct {
	name  string
	tools []Tool
	err   error
	delay time.Duration
}

func (s *fakeSource) Name() string { return s.name }

func (s *fakeSource) Tools(ctx context.Context, _ auth.Principal) ([]Tool, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.tools, s.err
}

func TestAggregator_MergesSources(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(nil, 0,
		&fakeSource{name: "builtin", tools: []Tool{&fakeTool{name: "web_search"}}},
		&fakeSource{name: "mcp", tools: []Tool{&fakeTool{name: "read_docs"}, &fakeTool{name: "query_db"}}},
	)

	set, warnings := agg.Aggregate(context.Background(), auth.Principal{UserID: "u"})
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if set.Len() != 3 {
		t.Fatalf("set.Len() = %d, want 3", set.Len())
	}

	want := []string{"web_search", "read_docs", "query_db"}
	got := set.Names()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestAggregator_FailedSourceIsIsolated(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(nil, 0,
		&fakeSource{name: "broken", err: errors.New("connect refused")},
		&fakeSource{name: "builtin", tools: []Tool{&fakeTool{name: "web_search"}}},
	)

	set, warnings := agg.Aggregate(context.Background(), auth.Principal{})
	if set.Len() != 1 {
		t.Fatalf("set.Len() = %d, want 1", set.Len())
	}
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v, want exactly one", warnings)
	}
	if warnings[0].Source != "broken" {
		t.Errorf("warning source = %q, want broken", warnings[0].Source)
	}
}

func TestAggregator_SlowSourceTimesOut(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(nil, 20*time.Millisecond,
		&fakeSource{name: "slow", delay: time.Second, tools: []Tool{&fakeTool{name: "never"}}},
		&fakeSource{name: "fast", tools: []Tool{&fakeTool{name: "web_search"}}},
	)

	set, warnings := agg.Aggregate(context.Background(), auth.Principal{})
	if set.Len() != 1 {
		t.Fatalf("set.Len() = %d, want 1", set.Len())
	}
	if len(warnings) != 1 || warnings[0].Source != "slow" {
		t.Fatalf("warnings = %v, want timeout warning for slow", warnings)
	}
}

func TestAggregator_DuplicateNamesFirstWins(t *testing.T) {
	t.Parallel()

	first := &fakeTool{name: "search", output: Output{Content: "from-first"}}
	second := &fakeTool{name: "search", output: Output{Content: "from-second"}}

	agg := NewAggregator(nil, 0,
		&fakeSource{name: "a", tools: []Tool{first}},
		&fakeSource{name: "b", tools: []Tool{second}},
	)

	set, _ := agg.Aggregate(context.Background(), auth.Principal{})
	if set.Len() != 1 {
		t.Fatalf("set.Len() = %d, want 1", set.Len())
	}

	tool, err := set.Get("search")
	if err != nil {
		t.Fatal(err)
	}
	out, _ := tool.Invoke(context.Background(), nil)
	if out.Content != "from-first" {
		t.Errorf("duplicate resolution kept %q, want from-first", out.Content)
	}
}

func TestAggregator_NoSources(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(nil, 0)
	set, warnings := agg.Aggregate(context.Background(), auth.Principal{})
	if set.Len() != 0 || len(warnings) != 0 {
		t.Errorf("empty aggregation: len=%d warnings=%v", set.Len(), warnings)
	}
}

func TestSet_Definitions(t *testing.T) {
	t.Parallel()

	set := NewSet(
		&fakeTool{name: "b_tool"},
		&fakeTool{name: "a_tool"},
	)

	defs := set.Definitions()
	if len(defs) != 2 {
		t.Fatalf("len(defs) = %d", len(defs))
	}
	// Aggregation order, not alphabetical.
	if defs[0].Name != "b_tool" || defs[1].Name != "a_tool" {
		t.Errorf("defs order = %q, %q", defs[0].Name, defs[1].Name)
	}
	if defs[0].Description == "" || len(defs[0].Parameters) == 0 {
		t.Errorf("definition missing fields: %+v", defs[0])
	}
}

func TestSet_GetUnknown(t *testing.T) {
	t.Parallel()

	set := NewSet()
	if _, err := set.Get("nope"); !errors.Is(err, ErrToolNotFound) {
		t.Errorf("expected ErrToolNotFound, got %v", err)
	}
}
