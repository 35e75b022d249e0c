package values

type contextKey string

// Response statuses. util.StatusCode maps each to an HTTP code.
const (
	Success        = "success"
	Created        = "created"
	Error          = "error"
	SystemErr      = "system error"
	BadRequestBody = "bad request body"
	Unprocessable  = "unprocessable"
	NotAllowed     = "not allowed"
	Conflict       = "conflict"
	NotFound       = "not found"
	NotAuthorised  = "not authorised"
	TokenExpired   = "token expired"
	ActiveLogin    = "active login"
	Unavailable    = "unavailable"
	Accepted       = "accepted"
)

const (
	HeaderRequestSource = "X-Request-Source"
	HeaderRequestID     = "X-Request-ID"

	DefaultRequestSource = "web"
)

const (
	ContextTracingKey contextKey = "tracing"
	ContextUserIDKey  contextKey = "user_id"
	ContextRoleKey    contextKey = "role"
	ContextTokenKey   contextKey = "token"
)
