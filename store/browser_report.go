package store

import (
	"context"

	"caratdash/api/database"
	"caratdash/api/models"
)

// BrowserDistribution returns the top browsers by distinct visitors with each
// browser's share of all visitors in range.
func (s *ReportStore) BrowserDistribution(ctx context.Context, f models.Filter) (models.DataEnvelope[[]models.BrowserRow], error) {
	agg := Aggregation{
		Name: "browser_distribution",
		From: `client_date
			INNER JOIN session_client
			ON client_date.uid = session_client.uid`,
		Where: []Clause{
			DayRange("client_date.access_date", f),
			DateRange("session_client.first_timestamp", f),
			CohortExists("client_date.uid", f),
			DeviceColumn("client_date.is_pc", f),
		},
		Count: "uniqExact(client_date.uid)",
		Select: `client_date.browser AS browser,
			uniqExact(client_date.uid) AS visitors,
			round(avg(dateDiff('second', session_client.first_timestamp, session_client.last_timestamp)) / 60, 3) AS average_time`,
		GroupBy: "client_date.browser",
		OrderBy: []string{"visitors DESC", "browser ASC"},
	}

	var page models.AggregationPage[models.BrowserRow]
	err := s.withSession(ctx, agg.Name, f, func(ctx context.Context, sess *database.Session) error {
		var err error
		page, err = Page(ctx, sess, agg, 0, BrowserTopK, func(r database.Rows) (models.BrowserRow, error) {
			var row models.BrowserRow
			err := r.Scan(&row.Browser, &row.Visitors, &row.AverageTime)
			row.AverageTime = finite(row.AverageTime)
			return row, err
		})
		return err
	})
	if err != nil {
		return models.DataEnvelope[[]models.BrowserRow]{}, err
	}

	ApplyBrowserShare(page.Rows, page.Total)
	return models.DataEnvelope[[]models.BrowserRow]{Data: page.Rows}, nil
}
