// Package redis connects to the redis server backing the session store.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	sessions := session.New(session.WithStore(session.NewRedisStore(client)), ...)
//
// Healthcheck adapts a client to the readiness probe served by the HTTP server.
package redis
