// Package async runs computations in the background and hands back a Future.
//
//	f := async.Async(ctx, token, func(ctx context.Context, token string) (*parse.User, error) {
//		return client.Become(ctx, token)
//	})
//	user, err := f.AwaitWithTimeout(5 * time.Second)
//
// A computation whose context is already cancelled never runs. Panics are
// recovered and surface as errors wrapping ErrPanic.
package async
