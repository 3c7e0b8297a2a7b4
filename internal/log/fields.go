package log

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldQuery         = "query"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldUserAgent     = "user_agent"
	FieldSuccess       = "success"
	FieldOperation     = "operation"
	FieldStoreID       = "store_id"
	FieldTransactionID = "transaction_id"
	FieldKind          = "kind"
	FieldAmountCents   = "amount_cents"
	FieldWindowStart   = "window_start"
	FieldWindowEnd     = "window_end"
)

// Components defines standard component names
const (
	ComponentApp    = "app"
	ComponentHTTP   = "http"
	ComponentLedger = "ledger"
	ComponentWorker = "worker"
)

// Operations defines standard operation names
const (
	OpCreate = "create"
	OpDelete = "delete"
	OpExport = "export"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithRequestID(id string) LogFields {
	f[FieldRequestID] = id
	return f
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithTransaction adds transaction-related fields
func (f LogFields) WithTransaction(id, storeID, kind string, amountCents int64) LogFields {
	f[FieldTransactionID] = id
	f[FieldStoreID] = storeID
	f[FieldKind] = kind
	f[FieldAmountCents] = amountCents
	return f
}

// WithWindow adds the date-window bounds
func (f LogFields) WithWindow(start, end string) LogFields {
	f[FieldWindowStart] = start
	f[FieldWindowEnd] = end
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	f[FieldUserAgent] = userAgent
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
