package tracker

// State is the lifecycle state of the tracker.
type State string

const (
	StateIdle      State = "idle"
	StateAcquiring State = "acquiring"
	StateActive    State = "active"
	StatePaused    State = "paused"
	StateStopped   State = "stopped"
)

// GPSStatus summarises the health of the location signal.
type GPSStatus string

const (
	GPSSearching GPSStatus = "searching"
	GPSAcquired  GPSStatus = "acquired"
	GPSLost      GPSStatus = "lost"
)

// transitions lists the states reachable from each state by a caller
// operation. Acquiring is left by Start itself.
var transitions = map[State][]State{
	StateIdle:      {StateAcquiring},
	StateAcquiring: {StateActive, StateIdle, StateStopped},
	StateActive:    {StatePaused, StateStopped},
	StatePaused:    {StateActive, StateStopped},
	StateStopped:   {StateAcquiring},
}

// CanTransition reports whether the tracker may move from one state to
// another.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
