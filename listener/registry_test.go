package listener_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/krisalay/cache-facade/listener"
	"github.com/krisalay/cache-facade/types"
)

type recorder struct {
	mu     sync.Mutex
	events []types.Event[string, int]
}

func (r *recorder) OnEvent(ev types.Event[string, int]) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) kinds() []types.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func ev(t types.EventType, key string, v int) types.Event[string, int] {
	return types.Event[string, int]{Type: t, Cache: "test", Key: key, Value: v}
}

func TestSyncDispatchAndUnregister(t *testing.T) {
	reg := listener.NewRegistry[string, int]("test", nil)
	rec := &recorder{}
	r := reg.Register(rec)

	reg.Dispatch(ev(types.Created, "a", 1))
	if got := rec.kinds(); len(got) != 1 || got[0] != types.Created {
		t.Fatalf("expected one created event, got %v", got)
	}

	if !reg.Unregister(r.ID) {
		t.Fatal("unregister did not find the listener")
	}
	if reg.Unregister(r.ID) {
		t.Fatal("second unregister should report false")
	}
	reg.Dispatch(ev(types.Removed, "a", 1))
	if len(rec.kinds()) != 1 {
		t.Fatal("unregistered listener still receives events")
	}
}

func TestFilter(t *testing.T) {
	reg := listener.NewRegistry[string, int]("test", nil)
	rec := &recorder{}
	reg.Register(rec, listener.OnlyTypes[string, int](types.Expired))

	reg.Dispatch(ev(types.Created, "a", 1))
	reg.Dispatch(ev(types.Expired, "a", 1))

	if got := rec.kinds(); len(got) != 1 || got[0] != types.Expired {
		t.Fatalf("filter let through %v", got)
	}
}

func TestListenerFailuresAreIsolated(t *testing.T) {
	var mu sync.Mutex
	var reports []*listener.Error
	reg := listener.NewRegistry[string, int]("test", func(e *listener.Error) {
		mu.Lock()
		reports = append(reports, e)
		mu.Unlock()
	})

	boom := errors.New("boom")
	failing := reg.Register(listener.Func[string, int](func(types.Event[string, int]) error { return boom }))
	reg.Register(listener.Func[string, int](func(types.Event[string, int]) error { panic("kaboom") }))
	rec := &recorder{}
	reg.Register(rec)

	reg.Dispatch(ev(types.Updated, "k", 2))

	if len(rec.kinds()) != 1 {
		t.Fatal("healthy listener missed the event")
	}
	if len(reports) != 2 {
		t.Fatalf("expected two reports, got %d", len(reports))
	}
	if !errors.Is(reports[0], boom) || reports[0].ListenerID != failing.ID || reports[0].Event != types.Updated {
		t.Fatalf("unexpected first report: %v", reports[0])
	}
	if reports[1].Key != "k" {
		t.Fatalf("report should carry the key, got %v", reports[1].Key)
	}
}

func TestAsyncPreservesOrder(t *testing.T) {
	reg := listener.NewRegistry[string, int]("test", nil)
	rec := &recorder{}
	r := reg.Register(rec, listener.Async[string, int](4))
	if !r.Async {
		t.Fatal("registration should be async")
	}

	for i := 0; i < 100; i++ {
		reg.Dispatch(ev(types.Updated, "k", i))
	}
	reg.Dispatch(ev(types.Removed, "k", 99))
	reg.Close()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.events) != 101 {
		t.Fatalf("close should drain the queue, got %d events", len(rec.events))
	}
	for i := 0; i < 100; i++ {
		if rec.events[i].Value != i {
			t.Fatalf("event %d out of order: %+v", i, rec.events[i])
		}
	}
	if rec.events[100].Type != types.Removed {
		t.Fatal("removed event was not last")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	reg := listener.NewRegistry[string, int]("test", nil)
	reg.Register(&recorder{}, listener.Async[string, int](0))
	reg.Close()
	reg.Close()

	if reg.Len() != 0 {
		t.Fatalf("expected no listeners after close, got %d", reg.Len())
	}
	reg.Dispatch(ev(types.Created, "a", 1))
}

func TestAsyncDispatchDoesNotWaitForListener(t *testing.T) {
	reg := listener.NewRegistry[string, int]("test", nil)
	release := make(chan struct{})
	var mu sync.Mutex
	seen := 0
	reg.Register(listener.Func[string, int](func(types.Event[string, int]) error {
		<-release
		mu.Lock()
		seen++
		mu.Unlock()
		return nil
	}), listener.Async[string, int](1))

	dispatched := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			reg.Dispatch(ev(types.Updated, "k", i))
		}
		close(dispatched)
	}()

	select {
	case <-dispatched:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch blocked on a listener that has not consumed its queue")
	}

	close(release)
	reg.Close()
	if seen != 50 {
		t.Fatalf("expected 50 delivered events, got %d", seen)
	}
}

func TestSyncListenerUnregistersItself(t *testing.T) {
	reg := listener.NewRegistry[string, int]("test", nil)
	calls := 0
	var r listener.Registration
	r = reg.Register(listener.Func[string, int](func(types.Event[string, int]) error {
		calls++
		reg.Unregister(r.ID)
		return nil
	}))
	other := &recorder{}
	reg.Register(other)

	done := make(chan struct{})
	go func() {
		reg.Dispatch(ev(types.Created, "a", 1))
		reg.Dispatch(ev(types.Created, "b", 2))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("unregistering from inside a listener blocked dispatch")
	}
	if calls != 1 {
		t.Fatalf("one-shot listener should run once, ran %d times", calls)
	}
	if len(other.kinds()) != 2 {
		t.Fatalf("remaining listener should see both events, got %v", other.kinds())
	}
	if reg.Len() != 1 {
		t.Fatalf("expected one listener left, got %d", reg.Len())
	}
}

func TestListenerRegistersAnother(t *testing.T) {
	reg := listener.NewRegistry[string, int]("test", nil)
	late := &recorder{}
	once := sync.Once{}
	reg.Register(listener.Func[string, int](func(types.Event[string, int]) error {
		once.Do(func() { reg.Register(late) })
		return nil
	}))

	reg.Dispatch(ev(types.Created, "a", 1))
	reg.Dispatch(ev(types.Updated, "a", 2))

	if got := late.kinds(); len(got) != 1 || got[0] != types.Updated {
		t.Fatalf("late listener should only see the second event, got %v", got)
	}
}

func TestAsyncListenerUnregistersItself(t *testing.T) {
	reg := listener.NewRegistry[string, int]("test", nil)
	delivered := make(chan int, 10)
	var r listener.Registration
	var mu sync.Mutex
	mu.Lock()
	r = reg.Register(listener.Func[string, int](func(e types.Event[string, int]) error {
		mu.Lock()
		id := r.ID
		mu.Unlock()
		reg.Unregister(id)
		delivered <- e.Value
		return nil
	}), listener.Async[string, int](0))
	mu.Unlock()

	reg.Dispatch(ev(types.Created, "a", 1))

	select {
	case v := <-delivered:
		if v != 1 {
			t.Fatalf("unexpected event value %d", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("async listener did not receive its event")
	}
	reg.Dispatch(ev(types.Created, "b", 2))
	reg.Close()

	if len(delivered) != 0 {
		t.Fatalf("unregistered listener received %d more events", len(delivered))
	}
}
