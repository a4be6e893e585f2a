// Package redis provides Redis client initialization and health checking for
// the realtime delivery subsystem, which uses Redis both as the durable
// replay queue and as the cross-process pub/sub relay.
//
// Connect validates the connection URL, dials with exponential backoff retry,
// and verifies connectivity with a ping before returning the client:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//
//	var cfg redis.Config
//	config.MustLoad(&cfg)
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
// Healthcheck returns a probe function suitable for readiness endpoints:
//
//	check := redis.Healthcheck(client)
//	if err := check(ctx); err != nil {
//		// report unhealthy
//	}
//
// Both redis:// and rediss:// (TLS) URL schemes are supported. Errors are
// stable sentinels checkable with errors.Is: ErrEmptyConnectionURL,
// ErrFailedToParseConnString, ErrNotReady, ErrHealthcheckFailed.
package redis
