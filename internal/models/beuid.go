package models

import "time"

// BEUID maps a short user-facing identifier to one wallet address
type BEUID struct {
	UID       string    `json:"uid" bson:"uid"`
	Address   string    `json:"address" bson:"address"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}
