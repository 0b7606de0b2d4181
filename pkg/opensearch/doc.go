// Package opensearch builds the OpenSearch client used by the event index
// sink and exposes a readiness probe for it.
//
//	client, err := opensearch.New(ctx, cfg)
//	pub := events.NewOpenSearchPublisher(client, cfg.IndexPrefix)
package opensearch
