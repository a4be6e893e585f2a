// Package token provides HMAC-SHA256 JWT issuing and verification for the
// realtime WebSocket handshake. The Service satisfies the transport's
// TokenVerifier interface: Verify resolves a bearer token to a user ID.
//
//	svc, err := token.New([]byte("your-256-bit-secret"),
//		token.WithIssuer("myapp"),
//		token.WithTTL(15*time.Minute),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Issue a handshake token for a user.
//	raw, err := svc.Generate("user-123")
//
//	// Verify during the WebSocket handshake.
//	userID, err := svc.Verify(ctx, raw)
//	if errors.Is(err, token.ErrExpiredToken) {
//		// client must re-authenticate
//	}
//
// Errors are stable sentinels checkable with errors.Is: ErrInvalidToken,
// ErrExpiredToken, ErrMissingSubject.
package token
