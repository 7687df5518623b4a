package service

import "time"

// Status is a point-in-time view of one service derived from its pid
// record file and a liveness probe.
type Status struct {
	Name       string    `json:"name"`
	Role       Role      `json:"role"`
	Running    bool      `json:"running"`
	PID        int       `json:"pid"`
	PIDFile    string    `json:"pid_file"`
	StdoutLog  string    `json:"stdout_log,omitempty"`
	StderrLog  string    `json:"stderr_log,omitempty"`
	CheckedAt  time.Time `json:"checked_at"`
	LastLaunch time.Time `json:"last_launch,omitempty"`
}
