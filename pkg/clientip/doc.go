// Package clientip resolves the client address of HTTP requests served
// behind reverse proxies. A Resolver checks its trusted headers in order,
// then falls back to the TCP peer address; the result is normalized by
// net.ParseIP and is empty when nothing valid is found.
//
// Interaction tracking stores the resolved address with each record:
//
//	r.Use(clientip.New().Middleware)
//	ip := clientip.FromContext(req.Context())
package clientip
