package store

import (
	"context"

	"caratdash/api/database"
	"caratdash/api/models"
)

const utmFrom = `session_client
			INNER JOIN utm_list
			ON session_client.utm_id = utm_list.utm_id`

const specConversions = `
			SELECT session_id, count() AS conversions
			FROM session_spec
			GROUP BY session_id`

// AdwordsComparison compares traffic and conversions per utm source and
// term. Booking tenants count booked sessions, others count spec views.
func (s *ReportStore) AdwordsComparison(ctx context.Context, f models.Filter, p models.Paging) (models.TableEnvelope[models.AdwordsComparisonRow], error) {
	from, conversions := utmFrom, "session_client.conversion_status"
	if !s.countsBookings(f.Domain) {
		from += `
			LEFT JOIN (` + specConversions + `) AS spec
			ON session_client.session_id = spec.session_id`
		conversions = "spec.conversions"
	}

	agg := Aggregation{
		Name: "adwords_comparison",
		From: from,
		Where: append([]Clause{
			DateRange("session_client.first_timestamp", f),
			Raw("utm_list.term != ''"),
		}, userClauses("session_client.uid", f)...),
		Count: "uniqExact(utm_list.source, utm_list.term)",
		Select: `utm_list.source AS source,
			utm_list.term AS term,
			uniqExact(session_client.uid) AS unique_visitors,
			count() AS sessions,
			toUInt64(sum(session_client.event_count)) AS pageviews,
			round(avg(session_client.event_count), 2) AS average_pageviews,
			round(avg(dateDiff('second', session_client.first_timestamp, session_client.last_timestamp)) / 60, 3) AS average_time,
			toUInt64(ifNull(sum(` + conversions + `), 0)) AS conversions`,
		GroupBy: "utm_list.source, utm_list.term",
		OrderBy: []string{"pageviews DESC", "source ASC", "term ASC"},
	}

	var page models.AggregationPage[models.AdwordsComparisonRow]
	err := s.withSession(ctx, agg.Name, f, func(ctx context.Context, sess *database.Session) error {
		var err error
		page, err = Page(ctx, sess, agg, p.Start, p.Length, func(r database.Rows) (models.AdwordsComparisonRow, error) {
			var row models.AdwordsComparisonRow
			err := r.Scan(&row.Source, &row.Group, &row.UniqueVisitors, &row.Sessions, &row.Pageviews,
				&row.AveragePageviews, &row.AverageTime, &row.Conversions)
			row.AveragePageviews = finite(row.AveragePageviews)
			row.AverageTime = finite(row.AverageTime)
			return row, err
		})
		return err
	})
	if err != nil {
		return models.TableEnvelope[models.AdwordsComparisonRow]{}, err
	}
	return models.NewTableEnvelope(p.Draw, page), nil
}

// AdwordsBookingInfo summarizes converting sessions per utm term.
func (s *ReportStore) AdwordsBookingInfo(ctx context.Context, f models.Filter, p models.Paging) (models.TableEnvelope[models.AdwordsBookingRow], error) {
	from, conversions := utmFrom, "session_client.conversion_status"
	converted := Raw("session_client.conversion_status > 0")
	if !s.countsBookings(f.Domain) {
		from += `
			INNER JOIN (` + specConversions + `) AS spec
			ON session_client.session_id = spec.session_id`
		conversions = "spec.conversions"
		converted = Clause{}
	}

	agg := Aggregation{
		Name: "adwords_booking_info",
		From: from,
		Where: append([]Clause{
			DateRange("session_client.first_timestamp", f),
			Raw("utm_list.term != ''"),
			converted,
		}, userClauses("session_client.uid", f)...),
		Count: "uniqExact(utm_list.term)",
		Select: `utm_list.term AS term,
			round(avg(dateDiff('second', session_client.first_timestamp, session_client.last_timestamp)) / 60, 3) AS average_time,
			toUInt64(sum(` + conversions + `)) AS conversions`,
		GroupBy: "utm_list.term",
		OrderBy: []string{"conversions DESC", "average_time DESC", "term ASC"},
	}

	var page models.AggregationPage[models.AdwordsBookingRow]
	err := s.withSession(ctx, agg.Name, f, func(ctx context.Context, sess *database.Session) error {
		var err error
		page, err = Page(ctx, sess, agg, p.Start, p.Length, func(r database.Rows) (models.AdwordsBookingRow, error) {
			var row models.AdwordsBookingRow
			err := r.Scan(&row.Group, &row.AverageTime, &row.Conversions)
			row.AverageTime = finite(row.AverageTime)
			return row, err
		})
		return err
	})
	if err != nil {
		return models.TableEnvelope[models.AdwordsBookingRow]{}, err
	}
	return models.NewTableEnvelope(p.Draw, page), nil
}
