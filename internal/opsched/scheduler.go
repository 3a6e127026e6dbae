package opsched

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"time"
)

// Config controls the shape of a Scheduler: how many partitions exist,
// how many dedicated partition worker threads serve them, and how many
// generic worker threads serve partition-less work.
type Config struct {
	// PartitionCount is the total number of partitions in the grid. Must
	// be >= 0; zero disables partition-affine dispatch entirely.
	PartitionCount int

	// PartitionOperationThreadCount is the number of partition worker
	// goroutines (P). Partition p is always served by worker p mod P.
	// <= 0 defaults to max(2, NumCPU) (§4.7 step 1).
	PartitionOperationThreadCount int

	// GenericOperationThreadCount is the number of generic worker
	// goroutines (G). <= 0 defaults to max(2, NumCPU/2).
	GenericOperationThreadCount int

	// ThreadNamePrefix is prepended to every worker goroutine's logical
	// name, mirroring the original's hz.<instance>. prefix convention.
	ThreadNamePrefix string

	// Extension receives BeforeProcess/AfterProcess hooks around every
	// task a worker runs. Nil is treated as NoopNodeExtension.
	Extension NodeExtension
}

// DefaultConfig returns a Config with PartitionOperationThreadCount and
// GenericOperationThreadCount resolved from runtime.NumCPU, and
// PartitionCount left at zero (callers building a real grid node set it
// explicitly).
func DefaultConfig() Config {
	return Config{
		PartitionOperationThreadCount: defaultThreadCount(1),
		GenericOperationThreadCount:   defaultThreadCount(2),
	}
}

func defaultThreadCount(divisor int) int {
	n := runtime.NumCPU() / divisor
	if n < 2 {
		n = 2
	}
	return n
}

func (c Config) resolve() Config {
	if c.PartitionOperationThreadCount <= 0 {
		c.PartitionOperationThreadCount = defaultThreadCount(1)
	}
	if c.GenericOperationThreadCount <= 0 {
		c.GenericOperationThreadCount = defaultThreadCount(2)
	}
	if c.Extension == nil {
		c.Extension = NoopNodeExtension{}
	}
	return c
}

// Scheduler owns every worker goroutine in the pool: PartitionOperationThreadCount
// partition workers, GenericOperationThreadCount generic workers, and one
// response worker. It is the sole entry point for dispatching Tasks; see
// dispatcher.go for Execute/RunOnCallingThread.
type Scheduler struct {
	cfg Config

	partitionWorkers []*partitionWorker
	genericWorkers   []*genericWorker
	responseWorker   *responseWorker

	// genericNormal and genericPriority are the one shared pair of queues
	// every generic worker drains from (§3: "Both queues are shared across
	// all generic workers"). Dispatch enqueues here once; whichever
	// generic worker is next free dequeues it.
	genericNormal   *normalQueue
	genericPriority *priorityQueue

	// partitionHandlers is indexed by partition id directly (length ==
	// PartitionCount); every partitionWorker shares this same slice and
	// only ever reads the entries it owns.
	partitionHandlers []OperationHandler

	adHocHandler OperationHandler

	logger *slog.Logger

	shuttingDown bool
}

// NewScheduler builds every handler and starts every worker goroutine,
// in the order the original documents (§4.7 step 2): handler tables
// first, then partition workers, then generic workers, then the response
// worker, then a log line naming the final counts.
func NewScheduler(cfg Config, factory OperationHandlerFactory, responseHandler ResponsePacketHandler, logger *slog.Logger) (*Scheduler, error) {
	if factory == nil {
		return nil, fmt.Errorf("opsched: factory must not be nil: %w", ErrInvalidArgument)
	}
	if responseHandler == nil {
		return nil, fmt.Errorf("opsched: responseHandler must not be nil: %w", ErrInvalidArgument)
	}
	if cfg.PartitionCount < 0 {
		return nil, fmt.Errorf("opsched: negative partition count: %w", ErrInvalidArgument)
	}
	cfg = cfg.resolve()
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "opsched")

	s := &Scheduler{
		cfg:               cfg,
		partitionHandlers: make([]OperationHandler, cfg.PartitionCount),
		logger:            logger,
	}

	for p := 0; p < cfg.PartitionCount; p++ {
		s.partitionHandlers[p] = factory.CreatePartitionHandler(p)
	}
	s.adHocHandler = factory.CreateAdHocOperationHandler()

	s.partitionWorkers = make([]*partitionWorker, cfg.PartitionOperationThreadCount)
	for t := 0; t < cfg.PartitionOperationThreadCount; t++ {
		name := fmt.Sprintf("%spartition-operation-%d", cfg.ThreadNamePrefix, t)
		s.partitionWorkers[t] = newPartitionWorker(t, name, s.partitionHandlers, cfg.Extension, logger)
	}

	s.genericNormal = newNormalQueue()
	s.genericPriority = newPriorityQueue()

	s.genericWorkers = make([]*genericWorker, cfg.GenericOperationThreadCount)
	for t := 0; t < cfg.GenericOperationThreadCount; t++ {
		name := fmt.Sprintf("%sgeneric-operation-%d", cfg.ThreadNamePrefix, t)
		s.genericWorkers[t] = newGenericWorker(t, name, factory.CreateGenericOperationHandler(), s.genericNormal, s.genericPriority, cfg.Extension, logger)
	}

	s.responseWorker = newResponseWorker(responseHandler, logger)

	for _, w := range s.partitionWorkers {
		w.start()
	}
	for _, w := range s.genericWorkers {
		w.start()
	}
	s.responseWorker.start()

	logger.Info("operation scheduler started",
		"partitionThreads", cfg.PartitionOperationThreadCount,
		"genericThreads", cfg.GenericOperationThreadCount,
		"partitionCount", cfg.PartitionCount,
	)

	return s, nil
}

// String mirrors the original's toString(), useful in log lines that
// identify which scheduler instance logged them.
func (s *Scheduler) String() string {
	return fmt.Sprintf("Scheduler{partitionThreads=%d, genericThreads=%d, partitionCount=%d}",
		s.cfg.PartitionOperationThreadCount, s.cfg.GenericOperationThreadCount, s.cfg.PartitionCount)
}

// Shutdown stops every worker and waits up to 3 seconds per worker for it
// to drain its current task and exit (§7). It never blocks indefinitely:
// a worker that misses its bound is abandoned and logged, not waited on
// forever, so a faulty handler can't hang process shutdown.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.shuttingDown = true
	const perWorkerBound = 3 * time.Second

	var faults []string

	for _, w := range s.partitionWorkers {
		w.stop()
	}
	for _, w := range s.genericWorkers {
		w.stop()
	}
	s.genericNormal.Close()
	s.responseWorker.stop()

	for _, w := range s.partitionWorkers {
		if !waitDone(w.done, perWorkerBound) {
			faults = append(faults, w.name)
		}
	}
	for _, w := range s.genericWorkers {
		if !waitDone(w.done, perWorkerBound) {
			faults = append(faults, w.name)
		}
	}
	if !waitDone(s.responseWorker.done, perWorkerBound) {
		faults = append(faults, "response")
	}

	if len(faults) > 0 {
		s.logger.Warn("workers did not stop within bound", "workers", faults)
	}
	s.logger.Info("operation scheduler stopped")
	return nil
}

func waitDone(done <-chan struct{}, bound time.Duration) bool {
	select {
	case <-done:
		return true
	case <-time.After(bound):
		return false
	}
}

// DumpPerformanceMetrics writes a human-readable snapshot of every
// worker's queue depth and processed-task count to w, mirroring the
// original's dumpPerformanceMetrics diagnostic. Errors writing to w are
// ignored, matching a best-effort diagnostic dump.
func (s *Scheduler) DumpPerformanceMetrics(w io.Writer) {
	fmt.Fprintf(w, "%s\n", s)
	for _, pw := range s.partitionWorkers {
		fmt.Fprintf(w, "  %s: normal=%d priority=%d processed=%d\n",
			pw.name, pw.pendingCount(), pw.priority.Size(), pw.processedCount.Load())
	}
	fmt.Fprintf(w, "  generic pool (shared): normal=%d priority=%d\n",
		s.genericNormal.Size(), s.genericPriority.Size())
	for _, gw := range s.genericWorkers {
		fmt.Fprintf(w, "  %s: processed=%d\n", gw.name, gw.processedCount.Load())
	}
	fmt.Fprintf(w, "  response: normal=%d processed=%d\n",
		s.responseWorker.pendingCount(), s.responseWorker.processedCount.Load())
}
