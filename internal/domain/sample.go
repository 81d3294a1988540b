package domain

import "time"

// Quality values attached to every sample by the data collector.
const (
	QualityGood      = "Good"
	QualityBad       = "Bad"
	QualityUncertain = "Uncertain"
)

// TagSample is one reading of an industrial tag. The JSON field names match
// the collector's feed payload, so the same struct travels the feed channel,
// the cache and the TagUpdate broadcast.
type TagSample struct {
	TagID     int       `json:"TagId"`
	TagName   string    `json:"TagName"`
	PumpID    int       `json:"PumpId"`
	Timestamp time.Time `json:"Timestamp"`
	Value     any       `json:"Value"`
	Quality   string    `json:"Quality"`
}
