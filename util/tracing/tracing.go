package tracing

import "github.com/rs/zerolog"

// Context carries per-request identifiers through handlers and into logs.
type Context struct {
	RequestID     string `json:"request_id"`
	RequestSource string `json:"request_source"`
}

// Logger returns l annotated with the request identifiers.
func (tc Context) Logger(l zerolog.Logger) zerolog.Logger {
	return l.With().
		Str("request_id", tc.RequestID).
		Str("request_source", tc.RequestSource).
		Logger()
}
