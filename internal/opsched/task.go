// Package opsched schedules operations onto partition-affine and generic
// worker goroutines, and response packets onto a dedicated response worker.
//
// Correctness rests on one invariant: work for a given partition id always
// runs on the same worker. Handlers for the same partition never run
// concurrently, so they need no locking of their own.
package opsched

// Task is the unit of work the scheduler routes. It has four concrete
// implementations (Operation, PartitionRunnable, Packet, ResponsePacket)
// plus an unexported trigger task used only to wake a blocked worker.
type Task interface {
	// PartitionID returns the partition this task belongs to, or a
	// negative value if the task is not partition-specific.
	PartitionID() int

	// Urgent reports whether the task should jump the normal queue.
	Urgent() bool

	isTask()
}

// Operation is a key-value mutation, heartbeat, or other unit of work
// destined for a partition handler (PartitionID >= 0) or a generic handler
// (PartitionID < 0).
type Operation struct {
	PartitionID_ int
	Urgent_      bool
	Payload      any
}

func (o *Operation) PartitionID() int { return o.PartitionID_ }
func (o *Operation) Urgent() bool     { return o.Urgent_ }
func (o *Operation) isTask()          {}

// PartitionRunnable is partition-bound work with no urgency concept. Every
// PartitionRunnable must declare a non-negative partition id; the
// dispatcher rejects ones that don't (see Scheduler.Execute).
type PartitionRunnable struct {
	PartitionID_ int
	Run          func()
}

func (r *PartitionRunnable) PartitionID() int { return r.PartitionID_ }
func (r *PartitionRunnable) Urgent() bool     { return false }
func (r *PartitionRunnable) isTask()          {}

// Packet header bits, mirroring the wire envelope the network layer
// produces. HeaderOp distinguishes operation/response packets from
// everything else flowing through the same transport; HeaderResponse
// distinguishes a response packet from an operation packet.
const (
	HeaderOp = 1 << iota
	HeaderResponse
	HeaderUrgent
)

// Packet is an inbound wire envelope. Scheduler.Execute requires
// HeaderOp to be set; if HeaderResponse is also set the packet is routed
// to the response worker regardless of PartitionID.
type Packet struct {
	Header       int
	PartitionID_ int
	Payload      []byte
}

func (p *Packet) PartitionID() int { return p.PartitionID_ }
func (p *Packet) Urgent() bool     { return p.Header&HeaderUrgent != 0 }
func (p *Packet) isTask()          {}
func (p *Packet) isOperation() bool { return p.Header&HeaderOp != 0 }
func (p *Packet) isResponse() bool  { return p.Header&HeaderResponse != 0 }

// ResponsePacket is routed to the response worker, never to an operation
// queue, regardless of its partition id.
type ResponsePacket struct {
	PartitionID_ int
	Payload      []byte
}

func (r *ResponsePacket) PartitionID() int { return r.PartitionID_ }
func (r *ResponsePacket) Urgent() bool     { return false }
func (r *ResponsePacket) isTask()          {}

// triggerTask is a distinguished singleton enqueued to a normal queue
// purely to wake a worker blocked on it, after a priority enqueue (see
// queue.go and the priority signalling protocol in worker_partition.go /
// worker_generic.go). It carries no payload and is recognized by identity,
// not by value.
type triggerTask struct{}

func (*triggerTask) PartitionID() int { return -1 }
func (*triggerTask) Urgent() bool     { return false }
func (*triggerTask) isTask()          {}

// trigger is the well-known trigger task instance. Enqueuing it anywhere
// other than a normal queue immediately following a priority enqueue is a
// bug in the scheduler itself, never something callers do directly.
var trigger = &triggerTask{}

func isTrigger(t Task) bool {
	_, ok := t.(*triggerTask)
	return ok
}
