/*
Package auth issues and verifies the bearer tokens that webhook senders
present to the wagate receiver.

	v, err := auth.NewTokenVerifier(secret, auth.WithAudience("wagate-webhooks"))

	token, err := v.Issue("sales", 24*time.Hour)

	claims, err := v.VerifyHeader(r.Header.Get("Authorization"))
	if auth.IsUnauthorized(err) {
		// 401
	}

Tokens are HS256 and must carry an expiry. The instance is stored both as
the subject and as the "instance" claim.
*/
package auth
