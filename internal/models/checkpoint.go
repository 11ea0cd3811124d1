package models

import "time"

// ScanCheckpoint records how far an event log has been summed
type ScanCheckpoint struct {
	LastBlock uint64    `json:"lastBlock"`
	Total     string    `json:"total"` // base units, decimal integer string
	UpdatedAt time.Time `json:"updatedAt"`
}
