package shutdown

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type mockService struct {
	name       string
	shutdownFn func(ctx context.Context) error
	mu         sync.Mutex
	called     bool
}

func newMockService(name string) *mockService {
	return &mockService{name: name}
}

func (m *mockService) Name() string { return m.name }

func (m *mockService) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.called = true
	m.mu.Unlock()

	if m.shutdownFn != nil {
		return m.shutdownFn(ctx)
	}
	return nil
}

func (m *mockService) WasCalled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.called
}

func TestCoordinator_Register(t *testing.T) {
	coord := NewCoordinator(0, zap.NewNop())

	coord.Register(PhaseShutdown, newMockService("svc1"))
	coord.Register(PhaseShutdown, newMockService("svc2"))

	if len(coord.services[PhaseShutdown]) != 2 {
		t.Errorf("expected 2 services, got %d", len(coord.services[PhaseShutdown]))
	}
}

func TestCoordinator_Shutdown_PhasesRunInOrder(t *testing.T) {
	coord := NewCoordinator(5*time.Second, zap.NewNop())

	var mu sync.Mutex
	var order []Phase

	for _, phase := range []Phase{PhaseDrain, PhaseShutdown, PhaseCleanup} {
		p := phase
		coord.RegisterFunc(p, p.String(), func(ctx context.Context) error {
			mu.Lock()
			order = append(order, p)
			mu.Unlock()
			return nil
		})
	}

	if err := coord.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	expected := []Phase{PhaseDrain, PhaseShutdown, PhaseCleanup}
	if len(order) != len(expected) {
		t.Fatalf("expected %d phases, got %d", len(expected), len(order))
	}
	for i, p := range expected {
		if order[i] != p {
			t.Errorf("phase %d: expected %v, got %v", i, p, order[i])
		}
	}
}

func TestCoordinator_Shutdown_AllServicesCalled(t *testing.T) {
	coord := NewCoordinator(5*time.Second, zap.NewNop())

	services := []*mockService{
		newMockService("server"),
		newMockService("scheduler"),
		newMockService("database"),
	}
	coord.Register(PhaseDrain, services[0])
	coord.Register(PhaseShutdown, services[1])
	coord.Register(PhaseCleanup, services[2])

	if err := coord.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	for _, svc := range services {
		if !svc.WasCalled() {
			t.Errorf("service %s was not shut down", svc.Name())
		}
	}
}

func TestCoordinator_Shutdown_ContinuesAfterError(t *testing.T) {
	coord := NewCoordinator(5*time.Second, zap.NewNop())

	failing := newMockService("failing")
	failing.shutdownFn = func(ctx context.Context) error {
		return errors.New("shutdown failed")
	}
	later := newMockService("later")

	coord.Register(PhaseDrain, failing)
	coord.Register(PhaseCleanup, later)

	if err := coord.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	if !later.WasCalled() {
		t.Error("later phase should run even after an earlier failure")
	}
}

func TestCoordinator_Shutdown_Idempotent(t *testing.T) {
	coord := NewCoordinator(5*time.Second, zap.NewNop())

	var mu sync.Mutex
	calls := 0
	coord.RegisterFunc(PhaseShutdown, "counter", func(ctx context.Context) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil
	})

	coord.Shutdown(context.Background())
	coord.Shutdown(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("expected shutdown to run once, ran %d times", calls)
	}
}

func TestCoordinator_ShutdownCh(t *testing.T) {
	coord := NewCoordinator(time.Second, zap.NewNop())

	select {
	case <-coord.ShutdownCh():
		t.Fatal("shutdown channel closed before Shutdown")
	default:
	}

	coord.Shutdown(context.Background())

	select {
	case <-coord.ShutdownCh():
	default:
		t.Error("shutdown channel should be closed after Shutdown")
	}
}

func TestReadinessProbe(t *testing.T) {
	coord := NewCoordinator(time.Second, zap.NewNop())
	probe := NewReadinessProbe(coord)

	if !probe.IsReady() {
		t.Error("probe should be ready before shutdown")
	}

	coord.Shutdown(context.Background())

	deadline := time.After(time.Second)
	for probe.IsReady() {
		select {
		case <-deadline:
			t.Fatal("probe still ready after shutdown")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
