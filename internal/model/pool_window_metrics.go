package model

import "time"

// ReplayWindowMetrics compares engine predictions with observed pool events
// over one time window.
type ReplayWindowMetrics struct {
	ChainID        uint64    `json:"chain_id"`
	PoolAddress    string    `json:"pool_address"`
	WindowSizeSecs int64     `json:"window_size_seconds"`
	WindowStart    time.Time `json:"window_start"`
	WindowEnd      time.Time `json:"window_end"`
	EventCount     uint64    `json:"event_count"`
	SwapCount      uint64    `json:"swap_count"`
	// Volumes are raw input amounts per coin.
	Volumes         []string `json:"volumes"`
	ObservedTotal   string   `json:"observed_total"`
	PredictedTotal  string   `json:"predicted_total"`
	AbsDeviation    string   `json:"abs_deviation"`
	MaxDeviationBps string   `json:"max_deviation_bps"`
	ExactMatches    uint64   `json:"exact_matches"`
	NonConverged    uint64   `json:"non_converged"`
	VirtualPrice    *string  `json:"virtual_price,omitempty"`
}
