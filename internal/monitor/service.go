package monitor

import (
	"context"
	"strconv"
	"strings"
	"time"

	"pumpwatch-backend/internal/paging"
	"pumpwatch-backend/internal/storage"
)

// SampleSource is the slice of the historical store the pivot engine reads.
type SampleSource interface {
	TagSamplesForPump(ctx context.Context, pumpID int, from, to time.Time) ([]storage.TagSampleRow, error)
	ActivePumpIDs(ctx context.Context) ([]int, error)
}

// Service reconstructs per-minute wide monitor rows from narrow samples.
type Service struct {
	Source SampleSource
}

// Row is one minute of readings for one pump. Columns are fixed-width:
// a tag absent in the minute takes its declared default.
type Row struct {
	PumpID    string    `json:"pumpId"`
	Timestamp time.Time `json:"timestamp"`
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	TempA     string    `json:"tempA"`
	TempB     string    `json:"tempB"`
	TempC     string    `json:"tempC"`
	Vrs       string    `json:"vrs"`
	Vst       string    `json:"vst"`
	Vtr       string    `json:"vtr"`
	CurrentR  string    `json:"currentR"`
	CurrentS  string    `json:"currentS"`
	CurrentT  string    `json:"currentT"`
	Runtime   string    `json:"runtime"`
	TankOut   string    `json:"tankOut"`
	TankIn    string    `json:"tankIn"`
}

// PumpOption labels one pump for selection lists.
type PumpOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// MonitorData returns one page of per-minute rows for the pump, newest
// first. The date range is inclusive by day: [from 00:00, to+1day 00:00).
// An unparseable pump id yields an empty page, not an error.
func (s *Service) MonitorData(ctx context.Context, pumpID string, from, to time.Time, page, pageSize int) (paging.PagedResult[Row], error) {
	page = paging.ClampPage(page)
	pageSize = paging.ClampPageSize(pageSize)

	empty := paging.PagedResult[Row]{Items: []Row{}, TotalCount: 0, Page: page, PageSize: pageSize}

	pumpNumber, ok := parsePumpID(pumpID)
	if !ok {
		return empty, nil
	}

	fromDay := dayStart(from)
	toDay := dayStart(to).AddDate(0, 0, 1)

	samples, err := s.Source.TagSamplesForPump(ctx, pumpNumber, fromDay, toDay)
	if err != nil {
		return empty, err
	}

	rows := pivot(pumpID, samples)
	return paging.PagedResult[Row]{
		Items:      paging.Slice(rows, page, pageSize),
		TotalCount: len(rows),
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

// Pumps lists the pumps that own at least one active tag.
func (s *Service) Pumps(ctx context.Context) ([]PumpOption, error) {
	ids, err := s.Source.ActivePumpIDs(ctx)
	if err != nil {
		return nil, err
	}
	options := make([]PumpOption, 0, len(ids))
	for _, id := range ids {
		options = append(options, PumpOption{
			ID:    "pump" + strconv.Itoa(id),
			Label: "Pump " + strconv.Itoa(id),
		})
	}
	return options, nil
}

// pivot groups newest-first samples into one row per (date, hour, minute).
// Within a minute the newest sample per tag wins; among equal timestamps the
// last-ingested sample (highest row id, which the source orders first) wins.
func pivot(pumpID string, samples []storage.TagSampleRow) []Row {
	type group struct {
		minute time.Time
		tags   map[string]string
	}
	var order []time.Time
	groups := map[time.Time]*group{}

	for _, sample := range samples {
		minute := sample.Timestamp.UTC().Truncate(time.Minute)
		g := groups[minute]
		if g == nil {
			g = &group{minute: minute, tags: map[string]string{}}
			groups[minute] = g
			order = append(order, minute)
		}
		if _, seen := g.tags[sample.TagName]; !seen {
			g.tags[sample.TagName] = formatValue(sample.Value())
		}
	}

	rows := make([]Row, 0, len(order))
	for _, minute := range order {
		tags := groups[minute].tags
		rows = append(rows, Row{
			PumpID:    pumpID,
			Timestamp: minute,
			Date:      minute.Format("02/01/2006"),
			Time:      minute.Format("15:04:05"),
			TempA:     tagValue(tags, "TempA", "0.0"),
			TempB:     tagValue(tags, "TempB", "0.0"),
			TempC:     tagValue(tags, "TempC", "0.0"),
			Vrs:       tagValue(tags, "Vrs", "0"),
			Vst:       tagValue(tags, "Vst", "0"),
			Vtr:       tagValue(tags, "Vtr", "0"),
			CurrentR:  tagValue(tags, "CurrentR", "0.0"),
			CurrentS:  tagValue(tags, "CurrentS", "0.0"),
			CurrentT:  tagValue(tags, "CurrentT", "0.0"),
			Runtime:   tagValue(tags, "Runtime", "00:00"),
			TankOut:   tagValue(tags, "TankOut", "0"),
			TankIn:    tagValue(tags, "TankIn", "0"),
		})
	}
	return rows
}

func parsePumpID(pumpID string) (int, bool) {
	trimmed := strings.TrimPrefix(pumpID, "pump")
	n, err := strconv.Atoi(trimmed)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func tagValue(tags map[string]string, name, fallback string) string {
	if v, ok := tags[name]; ok && v != "" {
		return v
	}
	return fallback
}

func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(v, 'f', 1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	case string:
		return v
	default:
		return ""
	}
}
