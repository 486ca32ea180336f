package pipeline

// Phase is a step of a run. Phases advance strictly in declaration order;
// any fatal error moves the run to PhaseFailed.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseWalking
	PhaseHashing
	PhaseInserting
	PhaseSnapshotting
	PhaseDone
	PhaseFailed
)

var phaseNames = [...]string{
	PhaseInit:         "init",
	PhaseWalking:      "walking",
	PhaseHashing:      "hashing",
	PhaseInserting:    "inserting",
	PhaseSnapshotting: "snapshotting",
	PhaseDone:         "done",
	PhaseFailed:       "failed",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// next returns the phase that follows p on the success path.
func (p Phase) next() Phase {
	if p >= PhaseDone {
		return p
	}
	return p + 1
}
