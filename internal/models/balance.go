// Package models provides data models for the BlockE ledger service.
package models

import "time"

// AIBalance is the per-address AI credit balance document
type AIBalance struct {
	Address   string    `json:"address" bson:"address"` // lowercase, unique
	Balance   int64     `json:"balance" bson:"balance"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}
