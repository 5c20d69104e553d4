package executor

import "strconv"

// State is a step in the life of one execution.
//
//	Idle → RequestBuilt → AuthResolved → {DryRunPreview | Dispatched}
//	     → {Succeeded | Retrying | Failed} → (CacheWritten) → Rendered
type State int

const (
	Idle State = iota
	RequestBuilt
	AuthResolved
	DryRunPreview
	Dispatched
	Succeeded
	Retrying
	Failed
	CacheWritten
	Rendered
)

var stateNames = [...]string{
	Idle:          "idle",
	RequestBuilt:  "request_built",
	AuthResolved:  "auth_resolved",
	DryRunPreview: "dry_run_preview",
	Dispatched:    "dispatched",
	Succeeded:     "succeeded",
	Retrying:      "retrying",
	Failed:        "failed",
	CacheWritten:  "cache_written",
	Rendered:      "rendered",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "state(" + strconv.Itoa(int(s)) + ")"
}
