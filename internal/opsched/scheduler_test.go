package opsched

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// countingHandler counts every task it processes, per partition id and in
// total, so tests can assert affinity without reaching into scheduler
// internals.
type countingHandler struct {
	mu      sync.Mutex
	current Task
	counts  map[int]int // partitionID -> count, keyed -1 for generic
	total   atomic.Int64
}

func newCountingHandler() *countingHandler {
	return &countingHandler{counts: make(map[int]int)}
}

func (h *countingHandler) Process(ctx context.Context, task Task) error {
	h.mu.Lock()
	h.current = task
	h.counts[task.PartitionID()]++
	h.mu.Unlock()
	if r, ok := task.(*PartitionRunnable); ok && r.Run != nil {
		r.Run()
	}
	h.total.Add(1)
	h.mu.Lock()
	h.current = nil
	h.mu.Unlock()
	return nil
}

func (h *countingHandler) CurrentTask() (Task, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil {
		return nil, false
	}
	return h.current, true
}

type countingFactory struct {
	partitions *[]*countingHandler
	generic    *[]*countingHandler
	adhoc      *countingHandler
}

func newCountingFactory() (*countingFactory, *[]*countingHandler, *[]*countingHandler) {
	var ps, gs []*countingHandler
	return &countingFactory{partitions: &ps, generic: &gs, adhoc: newCountingHandler()}, &ps, &gs
}

func (f *countingFactory) CreatePartitionHandler(partitionID int) OperationHandler {
	h := newCountingHandler()
	*f.partitions = append(*f.partitions, h)
	return h
}

func (f *countingFactory) CreateGenericOperationHandler() OperationHandler {
	h := newCountingHandler()
	*f.generic = append(*f.generic, h)
	return h
}

func (f *countingFactory) CreateAdHocOperationHandler() OperationHandler {
	return f.adhoc
}

type noopResponseHandler struct {
	seen atomic.Int64
}

func (h *noopResponseHandler) Handle(ctx context.Context, packet *ResponsePacket) error {
	h.seen.Add(1)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitForCount(t *testing.T, get func() int64, want int64, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if get() >= want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for count >= %d, got %d", want, get())
}

// TestPartitionAffinity submits 1000 operations to each of 8 partitions
// served by 4 partition workers and checks every single one landed on the
// handler for its own partition, never a sibling's (§8 property 1).
func TestPartitionAffinity(t *testing.T) {
	factory, partitions, _ := newCountingFactory()
	s, err := NewScheduler(Config{
		PartitionCount:                8,
		PartitionOperationThreadCount: 4,
		GenericOperationThreadCount:   2,
	}, factory, &noopResponseHandler{}, testLogger())
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	defer s.Shutdown(context.Background())

	const perPartition = 1000
	for p := 0; p < 8; p++ {
		for i := 0; i < perPartition; i++ {
			if err := s.Execute(&Operation{PartitionID_: p}); err != nil {
				t.Fatalf("Execute: %v", err)
			}
		}
	}

	total := func() int64 {
		var n int64
		for _, h := range *partitions {
			h.mu.Lock()
			for _, c := range h.counts {
				n += int64(c)
			}
			h.mu.Unlock()
		}
		return n
	}
	waitForCount(t, total, int64(8*perPartition), 5*time.Second)

	for p := 0; p < 8; p++ {
		h := (*partitions)[p]
		h.mu.Lock()
		got := h.counts[p]
		other := 0
		for k, c := range h.counts {
			if k != p {
				other += c
			}
		}
		h.mu.Unlock()
		if got != perPartition {
			t.Errorf("partition %d: got %d tasks, want %d", p, got, perPartition)
		}
		if other != 0 {
			t.Errorf("partition %d handler saw %d tasks for other partitions", p, other)
		}
	}
}

// orderRecordingHandler records the arrival order of every task it
// processes, identifying urgent operations distinctly from everything
// else, so tests can assert priority ordering directly.
type orderRecordingHandler struct {
	mu      sync.Mutex
	current Task
	order   []string
}

func (h *orderRecordingHandler) Process(ctx context.Context, task Task) error {
	h.mu.Lock()
	h.current = task
	label := "normal"
	if op, ok := task.(*Operation); ok && op.Urgent_ {
		label = "urgent"
	}
	h.order = append(h.order, label)
	h.mu.Unlock()
	if r, ok := task.(*PartitionRunnable); ok && r.Run != nil {
		r.Run()
	}
	h.mu.Lock()
	h.current = nil
	h.mu.Unlock()
	return nil
}

func (h *orderRecordingHandler) CurrentTask() (Task, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil {
		return nil, false
	}
	return h.current, true
}

type singleHandlerFactory struct {
	partition OperationHandler
	generic   OperationHandler
	adhoc     OperationHandler
}

func (f *singleHandlerFactory) CreatePartitionHandler(int) OperationHandler     { return f.partition }
func (f *singleHandlerFactory) CreateGenericOperationHandler() OperationHandler { return f.generic }
func (f *singleHandlerFactory) CreateAdHocOperationHandler() OperationHandler   { return f.adhoc }

// TestPriorityJumpsQueue submits 10 normal operations followed by one
// urgent operation to a single-partition-worker scheduler, and checks the
// urgent one doesn't wait behind all ten normal ones (§8 property 2). The
// worker is held busy with a blocking first task so every subsequent
// Execute call is guaranteed to land in the queue before the worker
// drains it, making the resulting order deterministic.
func TestPriorityJumpsQueue(t *testing.T) {
	h := &orderRecordingHandler{}
	factory := &singleHandlerFactory{partition: h, generic: h, adhoc: h}
	s, err := NewScheduler(Config{
		PartitionCount:                1,
		PartitionOperationThreadCount: 1,
		GenericOperationThreadCount:   1,
	}, factory, &noopResponseHandler{}, testLogger())
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	defer s.Shutdown(context.Background())

	release := make(chan struct{})
	if err := s.Execute(&PartitionRunnable{PartitionID_: 0, Run: func() { <-release }}); err != nil {
		t.Fatalf("Execute blocker: %v", err)
	}
	// Give the worker a moment to pick up the blocker before queuing the
	// rest, so it's guaranteed to be busy (and thus queuing, not racing
	// straight to execution) for what follows.
	time.Sleep(20 * time.Millisecond)

	for i := 0; i < 10; i++ {
		if err := s.Execute(&Operation{PartitionID_: 0}); err != nil {
			t.Fatalf("Execute normal: %v", err)
		}
	}
	if err := s.Execute(&Operation{PartitionID_: 0, Urgent_: true}); err != nil {
		t.Fatalf("Execute urgent: %v", err)
	}

	close(release)

	waitForCount(t, func() int64 {
		h.mu.Lock()
		defer h.mu.Unlock()
		return int64(len(h.order))
	}, 12, 5*time.Second)

	h.mu.Lock()
	got := append([]string(nil), h.order...)
	h.mu.Unlock()
	if len(got) < 2 || got[1] != "urgent" {
		t.Fatalf("expected the urgent operation to run second (right after the in-flight blocker), got order=%v", got)
	}
}

// TestGenericLoadBalance submits 10,000 partition-less operations to a
// four-worker generic pool and checks each worker handled a meaningful
// share, none starved below 5% (§8 property 3).
func TestGenericLoadBalance(t *testing.T) {
	factory, _, generic := newCountingFactory()
	s, err := NewScheduler(Config{
		PartitionCount:                0,
		PartitionOperationThreadCount: 2,
		GenericOperationThreadCount:   4,
	}, factory, &noopResponseHandler{}, testLogger())
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	defer s.Shutdown(context.Background())

	const n = 10000
	for i := 0; i < n; i++ {
		if err := s.Execute(&Operation{PartitionID_: -1}); err != nil {
			t.Fatalf("Execute: %v", err)
		}
	}

	total := func() int64 {
		var sum int64
		for _, h := range *generic {
			sum += h.total.Load()
		}
		return sum
	}
	waitForCount(t, total, n, 10*time.Second)

	for i, h := range *generic {
		share := float64(h.total.Load()) / float64(n)
		if share < 0.05 {
			t.Errorf("generic worker %d handled only %.2f%% of tasks, want >= 5%%", i, share*100)
		}
	}
}

// TestMayRunHereDeniedOffWorker checks that RunOnCallingThread from a
// non-worker goroutine (a test's own goroutine) is rejected with a
// ThreadAffinityError, then that Execute successfully routes the same
// operation onto the correct partition worker (§8 property 4).
func TestMayRunHereDeniedOffWorker(t *testing.T) {
	factory, partitions, _ := newCountingFactory()
	s, err := NewScheduler(Config{
		PartitionCount:                2,
		PartitionOperationThreadCount: 2,
		GenericOperationThreadCount:   1,
	}, factory, &noopResponseHandler{}, testLogger())
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	defer s.Shutdown(context.Background())

	op := &Operation{PartitionID_: 1}
	err = s.RunOnCallingThread(context.Background(), op)
	if err == nil {
		t.Fatalf("expected ThreadAffinityError, got nil")
	}
	if _, ok := err.(*ThreadAffinityError); !ok {
		t.Fatalf("expected *ThreadAffinityError, got %T: %v", err, err)
	}

	if err := s.Execute(op); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	waitForCount(t, func() int64 {
		h := (*partitions)[1]
		h.mu.Lock()
		defer h.mu.Unlock()
		return int64(h.counts[1])
	}, 1, 5*time.Second)
}

// TestResponseIsolation checks a response packet is handled exclusively
// by the response worker and never observed by any partition or generic
// handler (§8 property 5).
func TestResponseIsolation(t *testing.T) {
	factory, partitions, generic := newCountingFactory()
	respHandler := &noopResponseHandler{}
	s, err := NewScheduler(Config{
		PartitionCount:                2,
		PartitionOperationThreadCount: 2,
		GenericOperationThreadCount:   2,
	}, factory, respHandler, testLogger())
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	defer s.Shutdown(context.Background())

	for i := 0; i < 50; i++ {
		if err := s.Execute(&ResponsePacket{PartitionID_: i % 2}); err != nil {
			t.Fatalf("Execute: %v", err)
		}
	}
	waitForCount(t, func() int64 { return respHandler.seen.Load() }, 50, 5*time.Second)

	for _, h := range *partitions {
		if h.total.Load() != 0 {
			t.Errorf("partition handler saw %d response-routed tasks, want 0", h.total.Load())
		}
	}
	for _, h := range *generic {
		if h.total.Load() != 0 {
			t.Errorf("generic handler saw %d response-routed tasks, want 0", h.total.Load())
		}
	}
}

// TestShutdownBounded checks Shutdown returns promptly and that every
// submitted task was either processed or cleanly abandoned, never
// double-counted (§8 property 6).
func TestShutdownBounded(t *testing.T) {
	factory, partitions, _ := newCountingFactory()
	s, err := NewScheduler(Config{
		PartitionCount:                4,
		PartitionOperationThreadCount: 2,
		GenericOperationThreadCount:   2,
	}, factory, &noopResponseHandler{}, testLogger())
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	for p := 0; p < 4; p++ {
		for i := 0; i < 100; i++ {
			if err := s.Execute(&Operation{PartitionID_: p}); err != nil {
				t.Fatalf("Execute: %v", err)
			}
		}
	}

	start := time.Now()
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 4*time.Second {
		t.Fatalf("Shutdown took %s, want <= ~3s bound", elapsed)
	}

	for p, h := range *partitions {
		h.mu.Lock()
		c := h.counts[p]
		h.mu.Unlock()
		if c > 100 {
			t.Errorf("partition %d processed %d tasks, more than the 100 submitted", p, c)
		}
	}
}

// TestExecuteRejectsInvalidTasks covers §8 property 5: every dispatch-time
// validation failure Execute is documented to reject is actually rejected,
// with the error the caller is told to expect, and none of it reaches a
// worker queue.
func TestExecuteRejectsInvalidTasks(t *testing.T) {
	factory, partitions, generic := newCountingFactory()
	s, err := NewScheduler(Config{
		PartitionCount:                4,
		PartitionOperationThreadCount: 2,
		GenericOperationThreadCount:   2,
	}, factory, &noopResponseHandler{}, testLogger())
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	defer s.Shutdown(context.Background())

	cases := []struct {
		name string
		task Task
		want error
	}{
		{"nil task", nil, ErrInvalidArgument},
		{"negative partition PartitionRunnable", &PartitionRunnable{PartitionID_: -1}, ErrInvalidArgument},
		{"out of range partition Operation", &Operation{PartitionID_: 4}, ErrInvalidArgument},
		{"out of range partition PartitionRunnable", &PartitionRunnable{PartitionID_: 99999}, ErrInvalidArgument},
		{"packet missing HeaderOp", &Packet{Header: 0, PartitionID_: 0}, ErrInvalidState},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := s.Execute(c.task)
			if err == nil {
				t.Fatalf("Execute(%v) = nil error, want %v", c.task, c.want)
			}
			if !errors.Is(err, c.want) {
				t.Fatalf("Execute(%v) = %v, want wrapping %v", c.task, err, c.want)
			}
		})
	}

	// None of the rejected tasks should have reached a worker queue. Give
	// the scheduler a moment to prove it, then check nothing was processed.
	time.Sleep(50 * time.Millisecond)
	var processed int64
	for _, h := range *partitions {
		h.mu.Lock()
		processed += int64(len(h.counts))
		h.mu.Unlock()
	}
	for _, h := range *generic {
		processed += h.total.Load()
	}
	if processed != 0 {
		t.Fatalf("rejected tasks still reached a handler: %d processed", processed)
	}
}
