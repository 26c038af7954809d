package store

import (
	"context"
	"fmt"
	"sort"

	"caratdash/api/database"
	"caratdash/api/models"
)

// exitGapMillis is how close a page view must be to the session's last
// timestamp to count as the exit.
const exitGapMillis = 600

type exitKey struct {
	NodeID   uint64
	Sessions uint64
}

// ExitPages ranks the pages sessions ended on, then measures exits and
// traffic for the pages of the requested window.
func (s *ReportStore) ExitPages(ctx context.Context, f models.Filter, p models.Paging) (models.TableEnvelope[models.ExitPageRow], error) {
	agg := Aggregation{
		Name: "exit_pages",
		From: "session_client",
		Where: append([]Clause{
			DateRange("session_client.first_timestamp", f),
		}, userClauses("session_client.uid", f)...),
		Count:   "uniqExact(session_client.node_id_last)",
		Select:  "session_client.node_id_last AS node_id, count() AS sessions",
		GroupBy: "session_client.node_id_last",
		OrderBy: []string{"sessions DESC", "node_id ASC"},
	}

	var (
		total uint64
		rows  []models.ExitPageRow
	)
	err := s.withSession(ctx, agg.Name, f, func(ctx context.Context, sess *database.Session) error {
		keys, err := Page(ctx, sess, agg, p.Start, p.Length, func(r database.Rows) (exitKey, error) {
			var k exitKey
			return k, r.Scan(&k.NodeID, &k.Sessions)
		})
		if err != nil {
			return err
		}
		total = keys.Total
		if len(keys.Rows) == 0 {
			return nil
		}

		ids := make([]uint64, len(keys.Rows))
		for i, k := range keys.Rows {
			ids[i] = k.NodeID
		}
		rows, err = collect(ctx, sess, exitDetailQuery(f, ids), scanExitRow)
		return err
	})
	if err != nil {
		return models.TableEnvelope[models.ExitPageRow]{}, err
	}

	for i := range rows {
		ApplyExitMetrics(&rows[i])
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Exits != rows[j].Exits {
			return rows[i].Exits > rows[j].Exits
		}
		return rows[i].LandingPage < rows[j].LandingPage
	})
	return models.NewTableEnvelope(p.Draw, models.AggregationPage[models.ExitPageRow]{Total: total, Rows: rows}), nil
}

// exitDetailQuery measures the page nodes of the window. Nodes sharing a URL
// are reported as one landing page.
func exitDetailQuery(f models.Filter, nodeIDs []uint64) database.Query {
	where, args := Where(append([]Clause{
		DateRange("session_node.timestamp", f),
		{SQL: "has(?, session_node.node_id_to)", Args: []any{nodeIDs}},
	}, userClauses("session_client.uid", f)...)...)

	return database.Query{
		Name: "exit_pages.detail",
		SQL: fmt.Sprintf(`
		SELECT
			min(session_node.node_id_to) AS node_id,
			concat(ifNull(node.host_name, ''), ifNull(node.path_name, ''), ifNull(node.search, '')) AS landing_page,
			countIf(session_node.node_id_to = session_client.node_id_last
				AND abs(toUnixTimestamp64Milli(toDateTime64(session_client.last_timestamp, 3))
					- toUnixTimestamp64Milli(toDateTime64(session_node.timestamp, 3))) <= %d) AS exits,
			uniqExact(session_node.session_id) AS sessions,
			count() AS total_visitors,
			uniqExact(session_client.uid) AS unique_visitors,
			round(avg(dateDiff('second', session_client.first_timestamp, session_client.last_timestamp) / 60
				/ nullIf(session_client.event_count, 0)), 3) AS average_time
		FROM
			session_node
			INNER JOIN session_client
			ON session_node.session_id = session_client.session_id
			LEFT JOIN node_list AS node
			ON session_node.node_id_to = node.node_id
		WHERE %s
		GROUP BY landing_page
		ORDER BY exits DESC, landing_page ASC`, exitGapMillis, where),
		Args: args,
	}
}

func scanExitRow(rows database.Rows) (models.ExitPageRow, error) {
	var (
		r           models.ExitPageRow
		landingPage string
		averageTime *float64
	)
	err := rows.Scan(
		&r.NodeID,
		&landingPage,
		&r.Exits,
		&r.Sessions,
		&r.TotalVisitors,
		&r.UniqueVisitors,
		&averageTime,
	)
	r.LandingPage = NodeLabel(&landingPage)
	r.AverageTime = finite(coalesce(averageTime))
	return r, err
}
