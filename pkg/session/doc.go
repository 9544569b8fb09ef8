// Package session keeps server-side session state behind an opaque token.
//
// A Manager ties a Transport (how the token travels, an encrypted cookie by
// default) to a Store (where the session lives: MemoryStore or RedisStore).
// Anonymous and authenticated sessions have separate idle and absolute
// lifetimes.
//
//	cookies, _ := cookie.New(secrets)
//	sessions := session.New(
//		session.WithCookieManager(cookies),
//		session.WithStore(session.NewRedisStore(rdb)),
//	)
//
//	// after a successful login, write user data and rotate the token in one step
//	sess, err := sessions.Authenticate(ctx, w, r, user.ObjectID, map[string]any{"sessionToken": token})
//
// Authenticate always issues a new token so a token observed before login
// cannot be reused afterwards. The values passed to it are persisted in the
// same store write as the token rotation.
//
// Stores that serialize sessions (RedisStore) return Data values in their JSON
// form: structs come back as map[string]any and numbers as float64.
package session
