package logkey

// keys shared by every slog call so log queries stay stable
const (
	TraceID = "TRACE ID"
	ERROR   = "ERROR"
	OrderID = "OrderID"
	UserID  = "UserID"
	EventID = "EventID"
	Event   = "EventType"
)
