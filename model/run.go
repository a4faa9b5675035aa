package model

import "time"

// RunStatus is the lifecycle state of a simulation run.
type RunStatus string

const (
	RunIdle    RunStatus = "IDLE"
	RunRunning RunStatus = "RUNNING"
	RunPaused  RunStatus = "PAUSED"
	RunStopped RunStatus = "STOPPED"
)

// SimulationRun is the persisted checkpoint of the single running
// simulation. Exactly one RUNNING run may exist per process; the clock owns
// the in-memory copy and writes it back every tick so a new process can
// resume a PAUSED or RUNNING run.
type SimulationRun struct {
	ID            string    `json:"id"`
	ScenarioID    string    `json:"scenario_id"`
	Status        RunStatus `json:"status"`
	SimTime       time.Time `json:"sim_time"`
	RealStartTime time.Time `json:"real_start_time"`
	// CompressionRatio is the number of simulated seconds that elapse per
	// real second.
	CompressionRatio float64 `json:"compression_ratio"`
	CurrentDayNumber int     `json:"current_day_number"`
}

// TickSnapshot is the per-tick view broadcast to subscribers.
type TickSnapshot struct {
	ScenarioID       string    `json:"scenario_id"`
	SimTime          time.Time `json:"sim_time"`
	RealTime         time.Time `json:"real_time"`
	CompressionRatio float64   `json:"compression_ratio"`
	CurrentDayNumber int       `json:"current_day_number"`
}
