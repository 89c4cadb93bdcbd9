package engine_test

import (
	"context"
	"sync"
	"testing"

	engine "github.com/Sdkwork-Cloud/sdkwork-agent-sub002"
)

func TestStoreBasics(t *testing.T) {
	s := engine.NewStore()

	if s.Has("missing") {
		t.Error("fresh store should have no keys")
	}
	if s.Len() != 0 {
		t.Errorf("fresh store length should be 0, got %d", s.Len())
	}

	s.Set("answer", 42)
	s.Set("name", "deep thought")

	if v, ok := s.Get("answer"); !ok || v != 42 {
		t.Errorf("Get(answer) = %v, %v", v, ok)
	}
	if !s.Has("name") {
		t.Error("Has(name) should be true")
	}
	if s.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", s.Len())
	}

	s.Set("answer", 43)
	if v, _ := s.Get("answer"); v != 43 {
		t.Errorf("Set should overwrite, got %v", v)
	}

	s.Delete("answer")
	if s.Has("answer") {
		t.Error("Delete should remove the key")
	}
	s.Delete("answer") // absent key is a no-op

	keys := s.Keys()
	if len(keys) != 1 || keys[0] != "name" {
		t.Errorf("expected keys [name], got %v", keys)
	}
}

func TestStoreTypedLoad(t *testing.T) {
	s := engine.NewStore()
	s.Set("count", 7)

	if v, ok := engine.LoadValue[int](s, "count"); !ok || v != 7 {
		t.Errorf("LoadValue[int] = %v, %v", v, ok)
	}
	if _, ok := engine.LoadValue[string](s, "count"); ok {
		t.Error("mismatched type should not load")
	}
	if _, ok := engine.LoadValue[int](s, "absent"); ok {
		t.Error("absent key should not load")
	}

	if got := engine.MustLoadValue[int](s, "count"); got != 7 {
		t.Errorf("MustLoadValue = %d", got)
	}
	defer func() {
		if recover() == nil {
			t.Error("MustLoadValue on an absent key should panic")
		}
	}()
	engine.MustLoadValue[string](s, "absent")
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := engine.NewStore()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i))
			for range 100 {
				s.Set(key, i)
				s.Get(key)
				s.Has(key)
				s.Keys()
			}
		}(i)
	}
	wg.Wait()

	if s.Len() != 8 {
		t.Errorf("expected 8 keys after concurrent writes, got %d", s.Len())
	}
}

func TestTaskContextNamespacesKeys(t *testing.T) {
	type leak struct {
		sawOther bool
		ownValue any
	}
	var mu sync.Mutex
	observed := map[string]leak{}

	body := func(_ context.Context, _ any, tc *engine.TaskContext) (any, error) {
		_, sawOther := tc.Get("shared")
		tc.Set("shared", tc.TaskID)
		v, _ := tc.Get("shared")
		mu.Lock()
		observed[tc.TaskID] = leak{sawOther: sawOther, ownValue: v}
		mu.Unlock()
		return nil, nil
	}

	res := mustExecute(t, engine.New(), &engine.Plan{
		ID:       "namespaced",
		Strategy: engine.StrategySequential,
		Tasks: []engine.Task{
			{ID: "first", Execute: body},
			{ID: "second", Execute: body},
		},
	}, nil)

	if res.Status != engine.RunCompleted {
		t.Fatalf("expected completed, got %q", res.Status)
	}
	mu.Lock()
	defer mu.Unlock()
	for id, l := range observed {
		if l.sawOther {
			t.Errorf("task %q read a sibling's entry through its own namespace", id)
		}
		if l.ownValue != id {
			t.Errorf("task %q read back %v for its own key", id, l.ownValue)
		}
	}
}

func TestRunsGetIsolatedStores(t *testing.T) {
	eng := engine.New()
	plan := singlePlan(engine.Task{
		ID: "writer",
		Execute: func(_ context.Context, _ any, tc *engine.TaskContext) (any, error) {
			if _, ok := tc.Get("marker"); ok {
				return nil, nil
			}
			tc.Set("marker", tc.ExecutionID)
			return "fresh", nil
		},
	})

	first := mustExecute(t, eng, plan, nil)
	second := mustExecute(t, eng, plan, nil)

	if taskResult(t, first, "writer").Output != "fresh" || taskResult(t, second, "writer").Output != "fresh" {
		t.Error("state must not leak across runs of the same plan")
	}
	if first.ExecutionID == second.ExecutionID {
		t.Error("each run should mint its own execution ID")
	}
}
