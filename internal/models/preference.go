package models

import "time"

// Preference holds per-address settings. Keys in Preferences are merged on update.
type Preference struct {
	Address     string                 `json:"address" bson:"address"`
	Preferences map[string]interface{} `json:"preferences" bson:"preferences"`
	Theme       string                 `json:"theme,omitempty" bson:"theme,omitempty"`
	UpdatedAt   time.Time              `json:"updatedAt" bson:"updatedAt"`
}
