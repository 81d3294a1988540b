package storage

import (
	"time"

	"github.com/google/uuid"
)

// TagDefinition is static reference data describing one of the monitored
// tags. Owned by the external store; read-only here.
type TagDefinition struct {
	ID          int
	Name        string
	Description string
	Unit        string
	DataType    string
	PumpID      int
	IsActive    bool
	CreatedAt   time.Time
}

// TagSampleRow is one narrow historical reading. Exactly one of the value
// columns is set, depending on the tag's data type.
type TagSampleRow struct {
	ID          int64
	TagID       int
	TagName     string
	PumpID      int
	Timestamp   time.Time
	ValueDouble *float64
	ValueInt    *int
	ValueBool   *bool
	ValueString *string
	Quality     string
}

// Value returns whichever typed column is populated, or nil.
func (r TagSampleRow) Value() any {
	switch {
	case r.ValueDouble != nil:
		return *r.ValueDouble
	case r.ValueInt != nil:
		return *r.ValueInt
	case r.ValueBool != nil:
		return *r.ValueBool
	case r.ValueString != nil:
		return *r.ValueString
	}
	return nil
}

// EventRecord is a row of the system event/audit trail. Event types in the
// store are login, error, warn, ok.
type EventRecord struct {
	ID                    int64
	EventType             string
	Device                string
	Account               *string
	Description           string
	Timestamp             time.Time
	ErrorCode             *string
	ProcessingTimeSeconds *int
}

// LoginRecord is one sign-in attempt written by the audit trail.
type LoginRecord struct {
	ID            int64
	UserID        *uuid.UUID
	Username      string
	IPAddress     string
	UserAgent     string
	IsSuccess     bool
	FailureReason *string
	Timestamp     time.Time
}
