package opsched

// RunningOperationCount returns the number of partition and generic
// workers currently in the middle of processing a task (§6). Read
// without synchronization beyond each worker's own currentHandlerSlot;
// the result is a point-in-time estimate, consistent with the other
// metrics this scheduler exposes.
func (s *Scheduler) RunningOperationCount() int {
	n := 0
	for _, w := range s.partitionWorkers {
		if _, ok := w.current.get(); ok {
			n++
		}
	}
	for _, w := range s.genericWorkers {
		if _, ok := w.current.get(); ok {
			n++
		}
	}
	return n
}

// OperationExecutorQueueSize returns the total number of tasks waiting in
// every partition worker's normal queue plus the generic pool's one
// shared normal queue.
func (s *Scheduler) OperationExecutorQueueSize() int {
	n := s.genericNormal.Size()
	for _, w := range s.partitionWorkers {
		n += w.pendingCount()
	}
	return n
}

// PriorityOperationExecutorQueueSize returns the total number of tasks
// waiting in every partition worker's priority queue plus the generic
// pool's one shared priority queue.
func (s *Scheduler) PriorityOperationExecutorQueueSize() int {
	n := s.genericPriority.Size()
	for _, w := range s.partitionWorkers {
		n += w.priority.Size()
	}
	return n
}

// ResponseQueueSize returns the number of response packets waiting to be
// processed by the dedicated response worker.
func (s *Scheduler) ResponseQueueSize() int {
	return s.responseWorker.pendingCount()
}

// PartitionThreadCount returns the configured number of partition worker
// goroutines (P).
func (s *Scheduler) PartitionThreadCount() int {
	return len(s.partitionWorkers)
}

// GenericThreadCount returns the configured number of generic worker
// goroutines (G).
func (s *Scheduler) GenericThreadCount() int {
	return len(s.genericWorkers)
}
