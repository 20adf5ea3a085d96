package errors

// ErrorHandler turns function errors into callable error bodies.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// ErrorBody is the "error" member of a callable response.
type ErrorBody struct {
	Status  string                 `json:"status"`
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Handle normalizes err, logs it and returns the HTTP status and body to send.
// Internal error details are logged but not echoed to the client.
func (h *ErrorHandler) Handle(function string, err error) (int, *ErrorBody) {
	stdErr := AsStandardError(err)
	h.logError(function, stdErr)

	body := &ErrorBody{
		Status:  CallableStatus(stdErr.Code),
		Code:    stdErr.Code,
		Message: stdErr.Message,
		Details: map[string]interface{}{"retryable": stdErr.Retryable},
	}
	if body.Status != "internal" {
		if stdErr.Details != "" {
			body.Details["details"] = stdErr.Details
		}
		for k, v := range stdErr.Metadata {
			body.Details[k] = v
		}
	}
	return HTTPStatus(stdErr.Code), body
}

func (h *ErrorHandler) logError(function string, stdErr *StandardError) {
	fields := map[string]interface{}{
		"function":      function,
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"errorCategory": GetErrorCategory(stdErr.Code),
	}
	// Caller mistakes are expected traffic.
	switch GetErrorCategory(stdErr.Code) {
	case "AUTH", "REQUEST":
		h.logger.Warn("Function rejected request", fields)
	default:
		h.logger.Error("Function failed", fields)
	}
}
