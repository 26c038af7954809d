package store

import (
	"context"

	"golang.org/x/sync/errgroup"

	"caratdash/api/database"
	"caratdash/api/models"
)

var mediaLabelsQuery = database.Query{
	Name: "media_labels",
	SQL: `
		SELECT media_id, media_name
		FROM media_list`,
}

// BookingReferralPaths lists the most recent converted sessions and, for the
// user behind each, the referral path credited to that conversion.
func (s *ReportStore) BookingReferralPaths(ctx context.Context, f models.Filter, p models.Paging) (models.TableEnvelope[models.AttributionSegment], error) {
	agg := Aggregation{
		Name: "booking_referral_paths",
		From: "session_client",
		Where: append([]Clause{
			DateRange("session_client.first_timestamp", f),
			Raw("session_client.conversion_status > 0"),
		}, userClauses("session_client.uid", f)...),
		Count:   "count()",
		Select:  "session_client.uid AS uid, session_client.first_timestamp AS first_timestamp",
		OrderBy: []string{"first_timestamp DESC", "uid DESC"},
	}

	var page models.AggregationPage[models.AttributionSegment]
	err := s.withSession(ctx, agg.Name, f, func(ctx context.Context, sess *database.Session) error {
		var (
			anchors models.AggregationPage[models.Anchor]
			labels  MediaLabels
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			anchors, err = Page(gctx, sess, agg, p.Start, p.Length, func(r database.Rows) (models.Anchor, error) {
				var a models.Anchor
				return a, r.Scan(&a.UserID, &a.Cutoff)
			})
			return err
		})
		g.Go(func() error {
			var err error
			labels, err = loadMediaLabels(gctx, sess)
			return err
		})
		if err := g.Wait(); err != nil {
			return err
		}

		segments, err := s.reconstructAll(ctx, sess, f, anchors.Rows, labels)
		if err != nil {
			return err
		}
		page = models.AggregationPage[models.AttributionSegment]{Total: anchors.Total, Rows: segments}
		return nil
	})
	if err != nil {
		return models.TableEnvelope[models.AttributionSegment]{}, err
	}
	return models.NewTableEnvelope(p.Draw, page), nil
}

// reconstructAll rebuilds one segment per anchor concurrently. Results keep
// the anchors' order regardless of completion order.
func (s *ReportStore) reconstructAll(ctx context.Context, r Runner, f models.Filter, anchors []models.Anchor, labels MediaLabels) ([]models.AttributionSegment, error) {
	segments := make([]models.AttributionSegment, len(anchors))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(journeyConcurrency)
	for i, a := range anchors {
		g.Go(func() error {
			touchpoints, err := collect(gctx, r, touchpointQuery(f, a), scanTouchpoint)
			if err != nil {
				return err
			}
			seg, err := Reconstruct(a.UserID, touchpoints, a.Cutoff, labels)
			if err != nil {
				s.log.Error("attribution segment inconsistent with anchor", "uid", a.UserID, "cutoff", a.Cutoff, "error", err)
				return err
			}
			segments[i] = seg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return segments, nil
}

func loadMediaLabels(ctx context.Context, r Runner) (MediaLabels, error) {
	labels := MediaLabels{}
	err := r.Run(ctx, mediaLabelsQuery, func(rows database.Rows) error {
		var (
			id   uint32
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return err
		}
		labels[id] = name
		return nil
	})
	return labels, err
}

// touchpointQuery reads the user's sessions up to the anchor's cutoff, with
// the distinct booked products of each session joined as one string.
func touchpointQuery(f models.Filter, a models.Anchor) database.Query {
	where, args := Where(
		Clause{SQL: "session_client.uid = ?", Args: []any{a.UserID}},
		Clause{SQL: "session_client.first_timestamp <= ?", Args: []any{a.Cutoff}},
		DeviceExists("session_client.uid", f),
	)
	return database.Query{
		Name: "booking_referral_paths.touchpoints",
		SQL: `
		SELECT
			session_client.uid,
			session_client.first_timestamp,
			session_client.media_id,
			session_client.conversion_status,
			nullIf(booking.products, '') AS products
		FROM
			session_client
			LEFT JOIN (
				SELECT
					session_booking.session_id AS session_id,
					arrayStringConcat(arraySort(groupUniqArray(product_list.product_name)), ', ') AS products
				FROM
					session_booking
					INNER JOIN product_list
					ON session_booking.product_id = product_list.product_id
				GROUP BY session_booking.session_id) AS booking
			ON session_client.session_id = booking.session_id
		WHERE ` + where + `
		ORDER BY session_client.first_timestamp ASC`,
		Args: args,
	}
}

func scanTouchpoint(rows database.Rows) (models.Touchpoint, error) {
	var (
		tp     models.Touchpoint
		status uint8
	)
	err := rows.Scan(&tp.UserID, &tp.Timestamp, &tp.MediaID, &status, &tp.ConversionPayload)
	tp.IsConversion = status > 0
	return tp, err
}
