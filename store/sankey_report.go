package store

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"caratdash/api/database"
	"caratdash/api/models"
)

// UserSankey builds the page-to-page navigation graph of the top transitions.
// The edge ranking and the label lookup for the referenced nodes run
// concurrently; the graph is assembled from the edges actually returned.
func (s *ReportStore) UserSankey(ctx context.Context, f models.Filter) (models.DataEnvelope[models.NavigationGraph], error) {
	edgesQuery := transitionQuery(f, SankeyTopK)
	nodesQuery := database.Query{
		Name: "user_sankey.nodes",
		SQL: fmt.Sprintf(`
		SELECT node_id, host_name, path_name, search
		FROM node_list
		WHERE node_id IN (
			SELECT arrayJoin([source, target])
			FROM (%s))
		ORDER BY node_id`, edgesQuery.SQL),
		Args: edgesQuery.Args,
	}

	var graph models.NavigationGraph
	err := s.withSession(ctx, "user_sankey", f, func(ctx context.Context, sess *database.Session) error {
		var (
			edges   []models.TransitionEdge
			catalog = NodeCatalog{}
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			edges, err = collect(gctx, sess, edgesQuery, func(r database.Rows) (models.TransitionEdge, error) {
				var e models.TransitionEdge
				return e, r.Scan(&e.From, &e.To, &e.Weight)
			})
			return err
		})
		g.Go(func() error {
			return sess.Run(gctx, nodesQuery, func(r database.Rows) error {
				var (
					id                 uint64
					host, path, search *string
				)
				if err := r.Scan(&id, &host, &path, &search); err != nil {
					return err
				}
				catalog[id] = NodeLabel(host, path, search)
				return nil
			})
		})
		if err := g.Wait(); err != nil {
			return err
		}

		graph = BuildGraph(edges, SankeyTopK, catalog)
		return nil
	})
	if err != nil {
		return models.DataEnvelope[models.NavigationGraph]{}, err
	}
	return models.DataEnvelope[models.NavigationGraph]{Data: graph}, nil
}

func transitionQuery(f models.Filter, topK int) database.Query {
	where, args := Where(
		DateRange("session_node.timestamp", f),
		Raw("session_node.node_id_from != session_node.node_id_to"),
		SessionScoped("session_node.session_id", userClauses("uid", f)...),
	)
	return database.Query{
		Name: "user_sankey.edges",
		SQL: `
			SELECT
				session_node.node_id_from AS source,
				session_node.node_id_to AS target,
				count() AS value
			FROM session_node
			WHERE ` + where + `
			GROUP BY source, target
			ORDER BY value DESC, source ASC, target ASC
			LIMIT ?`,
		Args: append(args, topK),
	}
}
