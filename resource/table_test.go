package resource

import (
	"sync"
	"testing"
)

type testObserver struct {
	events []Event
}

func (o *testObserver) OnResourceEvent(e Event) {
	o.events = append(o.events, e)
}

func TestTable_Basic(t *testing.T) {
	table := NewTable()

	h := table.Insert("test", 1)
	if h == 0 {
		t.Fatal("expected non-zero handle")
	}

	val, ok := table.Get(h)
	if !ok || val != "test" {
		t.Fatalf("Get = %v, %v", val, ok)
	}

	val, ok = table.Release(h)
	if !ok || val != "test" {
		t.Fatalf("Release = %v, %v", val, ok)
	}
	if table.Len() != 0 {
		t.Fatalf("Len() = %d after release", table.Len())
	}
	if _, ok := table.Get(h); ok {
		t.Fatal("released handle should be invalid")
	}
}

func TestTable_RefCounting(t *testing.T) {
	table := NewTable()

	h := table.Insert("shared", 5)
	for i := 0; i < 4; i++ {
		if _, freed := table.Release(h); freed {
			t.Fatalf("freed after %d releases, want 5", i+1)
		}
	}
	if v, freed := table.Release(h); !freed || v != "shared" {
		t.Fatalf("fifth release = %v, %v; want the freed value", v, freed)
	}
	if _, freed := table.Release(h); freed {
		t.Error("release of a freed handle should fail")
	}
}

func TestTable_ZeroRefs(t *testing.T) {
	table := NewTable()
	if h := table.Insert("x", 0); h != 0 {
		t.Errorf("Insert with zero refs = %d, want 0", h)
	}
}

func TestTable_NullHandle(t *testing.T) {
	table := NewTable()
	if _, ok := table.Get(0); ok {
		t.Error("handle 0 must never resolve")
	}
	if _, ok := table.Release(0); ok {
		t.Error("handle 0 cannot be released")
	}
}

func TestTable_HandleReuse(t *testing.T) {
	table := NewTable()

	h1 := table.Insert("a", 1)
	table.Release(h1)
	h2 := table.Insert("b", 1)

	if h2 != h1 {
		t.Errorf("expected freed handle %d to be reused, got %d", h1, h2)
	}
	if v, _ := table.Get(h2); v != "b" {
		t.Errorf("Get = %v, want b", v)
	}
}

func TestTable_Observer(t *testing.T) {
	table := NewTable()
	obs := &testObserver{}
	table.Subscribe(obs)

	h := table.Insert("test", 2)
	table.Release(h)
	table.Release(h)

	want := []EventType{EventCreated, EventReleased}
	if len(obs.events) != len(want) {
		t.Fatalf("events = %v, want %v", obs.events, want)
	}
	for i, typ := range want {
		if obs.events[i].Type != typ {
			t.Errorf("event %d = %s, want %s", i, obs.events[i].Type, typ)
		}
		if obs.events[i].Handle != h {
			t.Errorf("event %d handle = %d, want %d", i, obs.events[i].Handle, h)
		}
	}
	if obs.events[0].Refs != 2 {
		t.Errorf("created refs = %d, want 2", obs.events[0].Refs)
	}
	if obs.events[1].Value != "test" {
		t.Errorf("released value = %v, want test", obs.events[1].Value)
	}

	table.Unsubscribe(obs)
	table.Insert("other", 1)
	if len(obs.events) != len(want) {
		t.Error("unsubscribed observer still notified")
	}
}

func TestTable_Close(t *testing.T) {
	table := NewTable()
	h := table.Insert("held", 4)

	if err := table.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, ok := table.Get(h); ok {
		t.Error("Get after Close should fail")
	}
	if table.Len() != 0 {
		t.Errorf("Len() = %d after Close", table.Len())
	}
	if h := table.Insert("late", 1); h != 0 {
		t.Errorf("Insert after Close = %d, want 0", h)
	}
	if err := table.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestTable_Concurrent(t *testing.T) {
	table := NewTable()
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				h := table.Insert(i*1000+j, 1)
				if v, ok := table.Get(h); !ok || v != i*1000+j {
					t.Errorf("Get(%d) = %v, %v", h, v, ok)
				}
				table.Release(h)
			}
		}(i)
	}
	wg.Wait()

	if table.Len() != 0 {
		t.Errorf("Len() = %d after concurrent churn", table.Len())
	}
}
