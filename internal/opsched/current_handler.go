package opsched

import "sync/atomic"

// currentHandlerSlot is the single-writer, multi-reader current-handler
// slot described in §3/§5: written only by the worker that owns it while
// it is processing a task, read by any observer (CurrentThreadOperationHandler,
// RunningOperationCount). atomic.Pointer gives the release-on-set,
// acquire-on-read semantics Design Note 3 calls for without a lock.
type currentHandlerSlot struct {
	p atomic.Pointer[OperationHandler]
}

func (s *currentHandlerSlot) set(h OperationHandler) {
	s.p.Store(&h)
}

func (s *currentHandlerSlot) clear() {
	s.p.Store(nil)
}

func (s *currentHandlerSlot) get() (OperationHandler, bool) {
	v := s.p.Load()
	if v == nil {
		return nil, false
	}
	return *v, true
}
