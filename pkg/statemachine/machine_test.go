package statemachine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestNewMachine(t *testing.T) {
	m := NewMachine(StagePending)
	if m.Current() != StagePending {
		t.Errorf("Expected initial stage pending, got %s", m.Current())
	}
	if len(m.History()) != 0 {
		t.Error("Expected empty history")
	}
}

func TestMachine_AddTransition_Duplicate(t *testing.T) {
	m := NewMachine("a")
	tr := Transition{From: "a", To: "b", Event: "go"}
	if err := m.AddTransition(tr); err != nil {
		t.Fatalf("AddTransition failed: %v", err)
	}
	if err := m.AddTransition(tr); err == nil {
		t.Error("Expected error when adding duplicate transition")
	}
}

func TestMachine_Trigger_NoTransition(t *testing.T) {
	m := NewMachine("a")
	err := m.Trigger(context.Background(), "go")
	if !errors.Is(err, ErrNoTransition) {
		t.Errorf("Expected ErrNoTransition, got %v", err)
	}
	if m.Current() != "a" {
		t.Errorf("Stage changed to %s", m.Current())
	}
}

func TestMachine_ExecutionOrder(t *testing.T) {
	m := NewMachine("a")
	var order []string
	m.AddStage(StageConfig{Name: "a", OnExit: func(context.Context, Stage) error {
		order = append(order, "exit a")
		return nil
	}})
	m.AddStage(StageConfig{Name: "b", OnEnter: func(context.Context, Stage) error {
		order = append(order, "enter b")
		return nil
	}})
	m.AddTransition(Transition{From: "a", To: "b", Event: "go",
		Guard: func(context.Context, Stage, Stage, Event) bool {
			order = append(order, "guard")
			return true
		},
		Action: func(context.Context, Stage, Stage, Event) error {
			order = append(order, "action")
			return nil
		},
	})
	m.OnTransition(func(_ context.Context, r Record) {
		order = append(order, "hook "+string(r.From)+"->"+string(r.To))
	})

	if err := m.Trigger(context.Background(), "go"); err != nil {
		t.Fatalf("Trigger failed: %v", err)
	}

	want := []string{"guard", "exit a", "action", "enter b", "hook a->b"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, order[i], want[i])
		}
	}
}

func TestMachine_ActionError(t *testing.T) {
	m := NewMachine("a")
	boom := errors.New("boom")
	m.AddTransition(Transition{From: "a", To: "b", Event: "go",
		Action: func(context.Context, Stage, Stage, Event) error { return boom },
	})

	if err := m.Trigger(context.Background(), "go"); !errors.Is(err, boom) {
		t.Errorf("Expected action error, got %v", err)
	}
	if m.Current() != "a" {
		t.Errorf("Failed action should keep stage a, got %s", m.Current())
	}
	if len(m.History()) != 0 {
		t.Error("Failed action should not be recorded")
	}
}

func TestRunLifecycle_WithVerify(t *testing.T) {
	ctx := context.Background()
	m := NewRunLifecycle(func() bool { return true })

	for _, ev := range []Event{EventStart, EventFitted, EventCombined, EventFinish} {
		if err := m.Trigger(ctx, ev); err != nil {
			t.Fatalf("%s: %v", ev, err)
		}
	}
	if m.Current() != StageDone || !m.Terminal() {
		t.Errorf("Expected terminal done, got %s", m.Current())
	}

	want := []Stage{StageFitting, StageCombining, StageVerifying, StageDone}
	for i, r := range m.History() {
		if r.To != want[i] {
			t.Errorf("history[%d].To = %s, want %s", i, r.To, want[i])
		}
	}
}

func TestRunLifecycle_SkipsVerify(t *testing.T) {
	ctx := context.Background()
	m := NewRunLifecycle(func() bool { return false })
	m.Trigger(ctx, EventStart)
	m.Trigger(ctx, EventFitted)

	if err := m.Trigger(ctx, EventCombined); !errors.Is(err, ErrGuardRejected) {
		t.Errorf("Expected guard rejection, got %v", err)
	}
	if err := m.Trigger(ctx, EventFinish); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if m.Current() != StageDone {
		t.Errorf("Expected done, got %s", m.Current())
	}
}

func TestRunLifecycle_Abort(t *testing.T) {
	ctx := context.Background()
	m := NewRunLifecycle(nil)
	m.Trigger(ctx, EventStart)

	if !m.Can(EventAbort) {
		t.Fatal("Expected abort from fitting")
	}
	if err := m.Trigger(ctx, EventAbort); err != nil {
		t.Fatalf("abort: %v", err)
	}
	if m.Current() != StageFailed || !m.Terminal() {
		t.Errorf("Expected terminal failed, got %s", m.Current())
	}
	if m.Can(EventAbort) {
		t.Error("Failed stage should not abort again")
	}
}

func TestMachine_Durations(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	now := start
	m := NewRunLifecycle(nil).WithClock(func() time.Time { return now })
	ctx := context.Background()

	now = start.Add(time.Second)
	m.Trigger(ctx, EventStart)
	now = start.Add(4 * time.Second)
	m.Trigger(ctx, EventFitted)
	now = start.Add(5 * time.Second)
	m.Trigger(ctx, EventFinish)

	d := m.Durations(start)
	if d[StagePending] != time.Second || d[StageFitting] != 3*time.Second || d[StageCombining] != time.Second {
		t.Errorf("durations = %v", d)
	}
	if _, ok := d[StageDone]; ok {
		t.Error("current stage should have no duration")
	}
}

func TestMachine_ConcurrentAccess(t *testing.T) {
	m := NewRunLifecycle(nil)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = m.Current()
				_ = m.Can(EventStart)
				_ = m.History()
			}
		}()
	}
	m.Trigger(context.Background(), EventStart)
	wg.Wait()
	if m.Current() != StageFitting {
		t.Errorf("Expected fitting, got %s", m.Current())
	}
}
