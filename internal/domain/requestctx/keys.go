package requestctx

var (
	// RequestIDKey holds the ULID assigned to the request.
	RequestIDKey = NewKey[string]("request-id")

	// NonceKey holds the per-request CSP nonce for inline scripts.
	NonceKey = NewKey[string]("nonce")
)
