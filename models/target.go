package models

// Target represents one deduplicated payload identity.
type Target struct {
	ShortName         string     `json:"short_name"`
	Identifier        string     `json:"identifier"`
	Payload           string     `json:"payload"`
	Proximity         *Proximity `json:"proximity,omitempty"`
	Reads             int        `json:"reads"`
	Measures          int        `json:"measures"`
	Receives          int        `json:"receives"`
	CreatedTimestamp  int64      `json:"created_timestamp"`
	LastSeenTimestamp int64      `json:"last_seen_timestamp"`
}

// Proximity is the latest measurement attributed to a target.
type Proximity struct {
	Unit        string   `json:"unit"`
	Value       float64  `json:"value"`
	Calibration *float64 `json:"calibration,omitempty"`
}
