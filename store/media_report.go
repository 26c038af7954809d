package store

import (
	"context"

	"caratdash/api/database"
	"caratdash/api/models"
)

const mediaFrom = `session_client
			INNER JOIN media_list
			ON session_client.media_id = media_list.media_id
			LEFT JOIN (
				SELECT uid, 1 AS returning
				FROM client_finger
				WHERE create_timestamp < ?
				GROUP BY uid) AS finger
			ON session_client.uid = finger.uid
			LEFT JOIN (
				SELECT session_id, count() AS specs
				FROM session_spec
				WHERE timestamp >= ? AND timestamp < ?
				GROUP BY session_id) AS spec
			ON session_client.session_id = spec.session_id
			LEFT JOIN (
				SELECT session_id, count() AS bookings
				FROM session_booking
				WHERE timestamp >= ? AND timestamp < ?
				GROUP BY session_id) AS booking
			ON session_client.session_id = booking.session_id`

const mediaSelect = `media_list.media_name AS media,
			uniqExact(session_client.uid) AS unique_visitors,
			uniqExactIf(session_client.uid, finger.returning = 1) AS returning_visitors,
			count() AS sessions,
			countIf(session_client.event_count = 1) AS bounces,
			avg(session_client.event_count) AS average_pageviews,
			round(avg(dateDiff('second', session_client.first_timestamp, session_client.last_timestamp)) / 60, 3) AS average_time,
			countIf(spec.specs > 0) AS session_specs,
			toUInt64(ifNull(sum(spec.specs), 0)) AS specs,
			toUInt64(ifNull(sum(booking.bookings), 0)) AS bookings`

// MediaAnalysis ranks media by session count and derives visitor, bounce and
// spec rates per media.
func (s *ReportStore) MediaAnalysis(ctx context.Context, f models.Filter, p models.Paging) (models.TableEnvelope[models.MediaRow], error) {
	agg := Aggregation{
		Name: "media_analysis",
		From: mediaFrom,
		FromArgs: []any{
			f.RangeStart(),
			f.RangeStart(), f.RangeEnd(),
			f.RangeStart(), f.RangeEnd(),
		},
		Where: append([]Clause{
			DateRange("session_client.first_timestamp", f),
			Raw("media_list.media_name != '' AND NOT endsWith(media_list.media_name, 'undefined')"),
		}, userClauses("session_client.uid", f)...),
		Count:   "uniqExact(media_list.media_name)",
		Select:  mediaSelect,
		GroupBy: "media_list.media_name",
		OrderBy: []string{"sessions DESC", "media ASC"},
	}

	var page models.AggregationPage[models.MediaRow]
	err := s.withSession(ctx, agg.Name, f, func(ctx context.Context, sess *database.Session) error {
		var err error
		page, err = Page(ctx, sess, agg, p.Start, p.Length, scanMediaRow)
		return err
	})
	if err != nil {
		return models.TableEnvelope[models.MediaRow]{}, err
	}

	for i := range page.Rows {
		ApplyMediaMetrics(&page.Rows[i])
	}
	return models.NewTableEnvelope(p.Draw, page), nil
}

func scanMediaRow(rows database.Rows) (models.MediaRow, error) {
	var r models.MediaRow
	err := rows.Scan(
		&r.Media,
		&r.UniqueVisitors,
		&r.ReturningVisitors,
		&r.Sessions,
		&r.Bounces,
		&r.AveragePageviews,
		&r.AverageTime,
		&r.SessionSpecs,
		&r.Specs,
		&r.Bookings,
	)
	r.AveragePageviews = finite(r.AveragePageviews)
	r.AverageTime = finite(r.AverageTime)
	return r, err
}
