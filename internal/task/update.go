package task

import "time"

// DefaultLeaseDuration applies when a request does not carry its own.
const DefaultLeaseDuration = 30 * time.Second

// ApplyUpdate validates req against the current task and returns the
// mutated copy. It is deterministic apart from reading the wall clock
// and never touches its input. A nil error means the result is ready
// to be written back to the store.
func ApplyUpdate(t Task, req UpdateRequest) (Task, error) {
	switch req.Operation {
	case OpStatus:
		if err := validateStatus(&t, &req); err != nil {
			return Task{}, err
		}
		return prepareStatus(t.Clone(), &req), nil
	case OpHeartBeat:
		if err := validateHeartBeat(&t, &req); err != nil {
			return Task{}, err
		}
		return prepareHeartBeat(t.Clone(), &req), nil
	case OpYield:
		if err := validateYield(&t); err != nil {
			return Task{}, err
		}
		return prepareYield(t.Clone()), nil
	case OpLease:
		if err := validateLease(&t, &req); err != nil {
			return Task{}, err
		}
		return prepareLease(t.Clone(), &req), nil
	case OpReset:
		if err := validateReset(&t); err != nil {
			return Task{}, err
		}
		return prepareReset(t.Clone()), nil
	default:
		return Task{}, &ValidationError{Reason: "unknown operation " + string(req.Operation)}
	}
}

func leaseDuration(req *UpdateRequest) time.Duration {
	if req.LeaseDuration > 0 {
		return req.LeaseDuration
	}
	return DefaultLeaseDuration
}

func validateStatus(t *Task, req *UpdateRequest) error {
	if req.Status == "" {
		return &MandatoryFieldMissingError{Field: "status", Operation: OpStatus}
	}
	if t.Status.Terminal() {
		return &TerminalTaskStatusError{Current: t.Status, NonTerminal: NonTerminalStatuses}
	}
	allowed := t.Status.AllowedTransitions()
	if !containsStatus(allowed, req.Status) {
		return &InvalidStatusTransitionError{Current: t.Status, Allowed: allowed}
	}
	if req.Status == StatusAborted && req.Error == nil {
		return &MandatoryFieldMissingError{Field: "error", Operation: OpStatus}
	}
	return nil
}

func prepareStatus(t Task, req *UpdateRequest) Task {
	t.Status = req.Status
	t.Updated = Now()
	if req.Error != nil && t.Status == StatusAborted {
		t.Errors = append(t.Errors, *req.Error)
	}
	return t
}

func validateHeartBeat(t *Task, req *UpdateRequest) error {
	if t.Status != StatusRunning {
		return &InvalidOperationError{Operation: OpHeartBeat, Required: StatusRunning, Actual: t.Status}
	}
	if req.Worker != "" && (t.Owner == nil || *t.Owner != req.Worker) {
		return &ValidationError{Reason: "heartbeat worker " + req.Worker + " does not own the lease"}
	}
	return nil
}

func prepareHeartBeat(t Task, req *UpdateRequest) Task {
	now := Now()
	deadline := At(now.Add(leaseDuration(req)))
	t.Updated = now
	t.Deadline = &deadline
	if req.Progress != nil {
		t.Progress = *req.Progress
	}
	return t
}

func validateYield(t *Task) error {
	if t.Status != StatusRunning {
		return &InvalidOperationError{Operation: OpYield, Required: StatusRunning, Actual: t.Status}
	}
	return nil
}

// prepareYield leaves the task Running but backdates the deadline so
// the next reclamation sweep returns it to Ready. The worker gives the
// lease up without racing the owner checks elsewhere.
func prepareYield(t Task) Task {
	now := Now()
	expired := At(now.Add(-time.Second))
	progress := t.Progress
	entry := History{
		Type:     HistoryYield,
		Worker:   ownerName(&t),
		Progress: &progress,
		Time:     now,
	}
	t.Updated = now
	t.Deadline = &expired
	t.History = append(t.History, entry)
	return t
}

func validateLease(t *Task, req *UpdateRequest) error {
	if t.Status != StatusReady {
		return &InvalidOperationError{Operation: OpLease, Required: StatusReady, Actual: t.Status}
	}
	if req.Worker == "" {
		return &MandatoryFieldMissingError{Field: "worker", Operation: OpLease}
	}
	return nil
}

func prepareLease(t Task, req *UpdateRequest) Task {
	now := Now()
	deadline := At(now.Add(leaseDuration(req)))
	zero := 0.0
	t.Status = StatusRunning
	t.Owner = &req.Worker
	t.Deadline = &deadline
	t.Updated = now
	t.History = append(t.History, History{
		Type:     HistoryAssignment,
		Worker:   req.Worker,
		Progress: &zero,
		Time:     now,
	})
	return t
}

func validateReset(t *Task) error {
	if t.Status != StatusRunning {
		return &InvalidOperationError{Operation: OpReset, Required: StatusRunning, Actual: t.Status}
	}
	if t.Deadline == nil {
		return &MandatoryFieldMissingError{Field: "deadline", Operation: OpReset}
	}
	if !t.Deadline.Before(time.Now()) {
		return &ValidationError{Reason: "deadline not yet passed for reset operation"}
	}
	return nil
}

// prepareReset returns an expired lease to Ready. The Timeout entry is
// skipped when the lease ended with a Yield, which already recorded the
// hand-back.
func prepareReset(t Task) Task {
	now := Now()
	progress := t.Progress
	entry := History{
		Type:     HistoryTimeout,
		Worker:   ownerName(&t),
		Progress: &progress,
		Time:     now,
	}
	t.Deadline = nil
	t.Owner = nil
	t.Progress = 0
	t.Status = StatusReady
	t.Updated = now
	if n := len(t.History); n == 0 || t.History[n-1].Type != HistoryYield {
		t.History = append(t.History, entry)
	}
	return t
}

func ownerName(t *Task) string {
	if t.Owner == nil {
		return ""
	}
	return *t.Owner
}

func containsStatus(set []Status, s Status) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
