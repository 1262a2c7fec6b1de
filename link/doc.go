// Package link moves requests to REST endpoints through a chain of
// middleware ending in a transport.
//
//	chain, err := link.NewChain(
//		func(ctx context.Context, op *link.Operation, next link.Handler) (*link.Response, error) {
//			op.Request.Headers["Authorization"] = "Bearer " + token
//			return next(ctx, op)
//		},
//		link.HTTP(),
//	)
//	resp, err := chain.Emit(ctx, &link.Operation{Request: link.Request{URL: url}})
package link
