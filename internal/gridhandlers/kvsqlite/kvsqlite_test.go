package kvsqlite

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/me/opsched/internal/gridhandlers"
	"github.com/me/opsched/internal/opsched"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestPartitionAffinityWithBlockingDiskIO proves the scheduler's affinity
// invariant holds even when the handler on each partition does real
// (albeit in-memory-file) disk I/O through its own SQLite connection: a
// write submitted for partition p is never visible through another
// partition's connection, and every write/read round-trips through the
// same partition's handler it was addressed to.
func TestPartitionAffinityWithBlockingDiskIO(t *testing.T) {
	const partitions = 8
	const writesPerPartition = 50

	factory := NewFactory("", testLogger())
	sched, err := opsched.NewScheduler(opsched.Config{
		PartitionCount:                partitions,
		PartitionOperationThreadCount: 4,
		GenericOperationThreadCount:   2,
	}, factory, gridhandlers.NewResponseHandler(testLogger()), testLogger())
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	defer sched.Shutdown(context.Background())
	defer factory.Close()

	for p := 0; p < partitions; p++ {
		for i := 0; i < writesPerPartition; i++ {
			result := make(chan string, 1)
			op := &opsched.Operation{
				PartitionID_: p,
				Payload: &gridhandlers.KVOperation{
					Key:    "k",
					Value:  fmt.Sprintf("partition-%d-write-%d", p, i),
					Result: result,
				},
			}
			if err := sched.Execute(op); err != nil {
				t.Fatalf("Execute write partition %d: %v", p, err)
			}
			select {
			case <-result:
			case <-time.After(2 * time.Second):
				t.Fatalf("timed out waiting for write on partition %d", p)
			}
		}
	}

	// Every partition's own connection must report only the last value
	// written to it, never a value written to a different partition's
	// database.
	for p := 0; p < partitions; p++ {
		result := make(chan string, 1)
		op := &opsched.Operation{
			PartitionID_: p,
			Payload: &gridhandlers.KVOperation{
				Key:    "k",
				IsRead: true,
				Result: result,
			},
		}
		if err := sched.Execute(op); err != nil {
			t.Fatalf("Execute read partition %d: %v", p, err)
		}
		want := fmt.Sprintf("partition-%d-write-%d", p, writesPerPartition-1)
		select {
		case got := <-result:
			if got != want {
				t.Errorf("partition %d read %q, want %q (cross-partition leakage)", p, got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for read on partition %d", p)
		}
	}
}

// TestBrokenPartitionDoesNotBlockOthers checks that when one partition's
// database can't be opened, an operation on a healthy partition still
// completes with the value it wrote.
func TestBrokenPartitionDoesNotBlockOthers(t *testing.T) {
	factory := &Factory{
		dbPath: func(partitionID int) string {
			if partitionID == 1 {
				return "/nonexistent/dir/that/cannot/be/created/partition.db"
			}
			return ":memory:"
		},
		logger: testLogger(),
		memory: gridhandlers.NewFactory(testLogger()),
	}

	sched, err := opsched.NewScheduler(opsched.Config{
		PartitionCount:                3,
		PartitionOperationThreadCount: 3,
		GenericOperationThreadCount:   1,
	}, factory, gridhandlers.NewResponseHandler(testLogger()), testLogger())
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	defer sched.Shutdown(context.Background())
	defer factory.Close()

	result := make(chan string, 1)
	good := &opsched.Operation{
		PartitionID_: 0,
		Payload:      &gridhandlers.KVOperation{Key: "k", Value: "v", Result: result},
	}
	if err := sched.Execute(good); err != nil {
		t.Fatalf("Execute on healthy partition: %v", err)
	}
	select {
	case v := <-result:
		if v != "v" {
			t.Errorf("healthy partition returned %q, want v", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for healthy partition")
	}
}
