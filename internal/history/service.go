package history

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"pumpwatch-backend/internal/paging"
	"pumpwatch-backend/internal/storage"
)

const timeLayout = "02/01/2006 15:04:05"

// EventSource is the slice of the audit store the merger reads.
type EventSource interface {
	EventsInRange(ctx context.Context, eventType string, from, to time.Time) ([]storage.EventRecord, error)
	LoginsInRange(ctx context.Context, from, to time.Time) ([]storage.LoginRecord, error)
}

// Service merges system events and login attempts into one display history.
type Service struct {
	Source EventSource
}

// Query carries the history filters. Zero From/To default to today.
type Query struct {
	EventType     string
	SearchText    string
	From          time.Time
	To            time.Time
	IncludeLogins bool
	Page          int
	PageSize      int
}

// Row is one merged history line. ID is positional within the merged
// ordering and recomputed on every call; it is not a stable identifier.
type Row struct {
	ID             string  `json:"id"`
	Time           string  `json:"time"`
	Device         string  `json:"device"`
	Account        string  `json:"account"`
	Type           string  `json:"type"`
	Description    string  `json:"description"`
	ErrorCode      *string `json:"errorCode,omitempty"`
	ProcessingTime *string `json:"processingTime,omitempty"`
}

// EventTypeOption labels one event-type filter choice.
type EventTypeOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

var eventLabels = map[string]string{
	"login": "Login",
	"error": "Error",
	"ok":    "Healthy",
	"warn":  "Warning",
}

// History fetches both audit sources, maps them to display rows, merges
// them into one timestamp-descending list, numbers the rows and paginates.
func (s *Service) History(ctx context.Context, q Query) (paging.PagedResult[Row], error) {
	page := paging.ClampPage(q.Page)
	pageSize := paging.ClampPageSize(q.PageSize)
	empty := paging.PagedResult[Row]{Items: []Row{}, TotalCount: 0, Page: page, PageSize: pageSize}

	from, to := window(q.From, q.To)
	filter := q.EventType
	if filter == "all" {
		filter = ""
	}
	search := strings.TrimSpace(q.SearchText)

	events, err := s.Source.EventsInRange(ctx, filter, from, to)
	if err != nil {
		return empty, err
	}

	type timed struct {
		ts  time.Time
		row Row
	}
	merged := make([]timed, 0, len(events))
	for _, e := range events {
		if search != "" && !eventMatches(e, search) {
			continue
		}
		merged = append(merged, timed{ts: e.Timestamp, row: mapEvent(e)})
	}

	if q.IncludeLogins || q.EventType == "login" || q.EventType == "all" || q.EventType == "" {
		logins, err := s.Source.LoginsInRange(ctx, from, to)
		if err != nil {
			return empty, err
		}
		for _, l := range logins {
			if search != "" && !loginMatches(l, search) {
				continue
			}
			merged = append(merged, timed{ts: l.Timestamp, row: mapLogin(l)})
		}
	}

	// Stable sort keeps each source's own newest-first order on timestamp
	// ties, so repeated calls produce the same merge.
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].ts.After(merged[j].ts) })

	rows := make([]Row, len(merged))
	for i, m := range merged {
		m.row.ID = fmt.Sprintf("%02d", i+1)
		rows[i] = m.row
	}

	return paging.PagedResult[Row]{
		Items:      paging.Slice(rows, page, pageSize),
		TotalCount: len(rows),
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

// EventTypeOptions lists the filter choices offered to callers.
func (s *Service) EventTypeOptions() []EventTypeOption {
	return []EventTypeOption{
		{ID: "all", Label: "All events"},
		{ID: "login", Label: "Login"},
		{ID: "error", Label: "Error"},
		{ID: "ok", Label: "Healthy"},
		{ID: "warn", Label: "Warning"},
	}
}

func window(from, to time.Time) (time.Time, time.Time) {
	if from.IsZero() {
		from = time.Now().UTC()
	}
	if to.IsZero() {
		to = time.Now().UTC()
	}
	from = dayStart(from)
	to = dayStart(to).AddDate(0, 0, 1)
	return from, to
}

func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func mapEvent(e storage.EventRecord) Row {
	label, ok := eventLabels[e.EventType]
	if !ok {
		label = e.EventType
	}
	account := ""
	if e.Account != nil {
		account = *e.Account
	}
	var processing *string
	if e.ProcessingTimeSeconds != nil {
		p := strconv.Itoa(*e.ProcessingTimeSeconds) + "s"
		processing = &p
	}
	return Row{
		Time:           e.Timestamp.Format(timeLayout),
		Device:         e.Device,
		Account:        account,
		Type:           label,
		Description:    e.Description,
		ErrorCode:      e.ErrorCode,
		ProcessingTime: processing,
	}
}

func mapLogin(l storage.LoginRecord) Row {
	row := Row{
		Time:    l.Timestamp.Format(timeLayout),
		Device:  "Web",
		Account: l.Username,
	}
	processing := "0s"
	row.ProcessingTime = &processing
	if l.IsSuccess {
		row.Type = "Login"
		row.Description = "Login succeeded from " + l.IPAddress
		return row
	}
	reason := "unknown reason"
	if l.FailureReason != nil {
		reason = *l.FailureReason
	}
	code := "LOGIN_FAILED"
	row.Type = "Login Failed"
	row.Description = "Login failed: " + reason
	row.ErrorCode = &code
	return row
}

// Search is a case-sensitive substring match, applied to the same fields the
// audit store indexes for each kind of record.
func eventMatches(e storage.EventRecord, search string) bool {
	account := ""
	if e.Account != nil {
		account = *e.Account
	}
	return containsAny(search,
		strconv.FormatInt(e.ID, 10),
		e.Timestamp.Format(timeLayout),
		e.Device,
		account,
		e.EventType,
		e.Description,
	)
}

func loginMatches(l storage.LoginRecord, search string) bool {
	reason := ""
	if l.FailureReason != nil {
		reason = *l.FailureReason
	}
	return containsAny(search,
		strconv.FormatInt(l.ID, 10),
		l.Timestamp.Format(timeLayout),
		l.Username,
		l.IPAddress,
		reason,
	)
}

func containsAny(search string, fields ...string) bool {
	for _, field := range fields {
		if strings.Contains(field, search) {
			return true
		}
	}
	return false
}
