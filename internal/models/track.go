package models

// Conventional track conditions.
const (
	ConditionsDry   = "Dry"
	ConditionsWet   = "Wet"
	ConditionsDamp  = "Damp"
	ConditionsNight = "Night"
)

// TrackSession records one track day.
type TrackSession struct {
	TrackName  string `json:"track_name"`
	LapTime    string `json:"lap_time"` // e.g. 2:15.450
	Date       Date   `json:"date"`
	Conditions string `json:"conditions"`
	Tires      string `json:"tires"`
}
