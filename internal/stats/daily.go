package stats

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// maxDailyRangeDays bounds the daily series so a typo'd range cannot scan the
// whole chat table. One year covers every dashboard view.
const maxDailyRangeDays = 366

const secondsPerDay = 86400

// DefaultDailyRange returns the default window for the daily series: a
// trailing 30-day window ending today in the store's calendar, inclusive of
// both endpoints.
func (s *Store) DefaultDailyRange(now time.Time) (from, to time.Time) {
	local := now.In(s.loc)
	to = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
	from = to.AddDate(0, 0, -29)
	return from, to
}

// ValidateDateRange rejects inverted or oversized date ranges before any
// query executes.
func ValidateDateRange(from, to time.Time) error {
	if to.Before(from) {
		return &RangeError{Param: "to", Reason: "must not be before from"}
	}
	if to.Sub(from) > maxDailyRangeDays*24*time.Hour {
		return &RangeError{Param: "to", Reason: fmt.Sprintf("range must not exceed %d days", maxDailyRangeDays)}
	}
	return nil
}

// civilDayIndex maps a UTC epoch-second instant to a day index in a calendar
// with the given fixed UTC offset. Two instants share an index iff they fall
// on the same local day.
func civilDayIndex(ts int64, offsetSecs int) int64 {
	shifted := ts + int64(offsetSecs)
	// Floor division: epoch seconds are positive for all stored data, but keep
	// pre-1970 instants on the correct side of midnight anyway.
	if shifted < 0 {
		return (shifted - secondsPerDay + 1) / secondsPerDay
	}
	return shifted / secondsPerDay
}

// dayCounts is one sparse row of the grouped daily query.
type dayCounts struct {
	chats    int64
	messages int64
	users    int64
}

// GetDaily returns one DailyPoint per civil day in [from, to] inclusive, in
// ascending date order, with zero-filled gaps. from and to are civil dates
// interpreted in the store's calendar; event timestamps are UTC epoch seconds
// and are attributed to local days using the calendar's fixed offset.
func (s *Store) GetDaily(ctx context.Context, from, to time.Time) ([]DailyPoint, error) {
	if err := ValidateDateRange(from, to); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "stats.get_daily",
		trace.WithAttributes(
			attribute.String("from", from.Format("2006-01-02")),
			attribute.String("to", to.Format("2006-01-02")),
		))
	defer span.End()

	// Bind local midnights to an absolute instant range. The end bound is the
	// midnight after the last day, exclusive.
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, s.loc)
	end := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, s.loc).AddDate(0, 0, 1)
	off := s.offsetSeconds()

	// Group by local day using pure epoch arithmetic so attribution does not
	// depend on the database server's timezone tables.
	query := `
		SELECT
			(c.created_at + $1) / 86400 AS day,
			count(*) AS chat_count,
			COALESCE(sum(` + messageCountExpr + `), 0) AS message_count,
			count(DISTINCT c.user_id) AS user_count
		FROM chat c
		WHERE c.created_at >= $2 AND c.created_at < $3
		GROUP BY day
	`

	rows, err := s.db.QueryContext(ctx, query, off, start.Unix(), end.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byDay := make(map[int64]dayCounts)
	for rows.Next() {
		var day int64
		var c dayCounts
		if err := rows.Scan(&day, &c.chats, &c.messages, &c.users); err != nil {
			return nil, err
		}
		byDay[day] = c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return fillDaily(byDay, start, to, off), nil
}

// fillDaily reindexes the sparse per-day counts onto the dense inclusive date
// range, emitting an explicit zero point for absent days.
func fillDaily(byDay map[int64]dayCounts, start, to time.Time, offsetSecs int) []DailyPoint {
	series := []DailyPoint{}
	for d := start; !d.After(time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, start.Location())); d = d.AddDate(0, 0, 1) {
		c := byDay[civilDayIndex(d.Unix(), offsetSecs)]
		series = append(series, DailyPoint{
			Date:         d.Format("2006-01-02"),
			ChatCount:    c.chats,
			MessageCount: c.messages,
			UserCount:    c.users,
		})
	}
	return series
}
