package models

// EditSession is the observable state of one editing surface.
// Values are snapshots: the Controller hands out copies and never shares
// the instance it mutates.
type EditSession struct {
	RawText           string `json:"rawText"`
	IsValid           bool   `json:"isValid"`
	Result            string `json:"result"`
	ErrorMessage      string `json:"errorMessage"`
	IsRequestInFlight bool   `json:"isRequestInFlight"`
	// Version increases on every state change so observers can ignore
	// snapshots delivered late.
	Version uint64 `json:"version"`
}

// HasRequestError reports whether the last settled conversion failed.
func (s EditSession) HasRequestError() bool {
	return s.ErrorMessage != ""
}

// Display returns the text the output pane should show.
func (s EditSession) Display() string {
	if s.HasRequestError() {
		return s.ErrorMessage
	}
	return s.Result
}

// Copyable reports whether there is a result worth offering for copy.
func (s EditSession) Copyable() bool {
	return !s.HasRequestError() && s.Result != ""
}

// FailureKind says why a conversion attempt failed
type FailureKind int

const (
	// ServiceError means the conversion service answered with an error body
	ServiceError FailureKind = iota + 1
	// NoResponse means the request was sent but no complete response arrived
	NoResponse
	// RequestBuild means the request could not be constructed or sent
	RequestBuild
)

// String implements fmt.Stringer
func (k FailureKind) String() string {
	switch k {
	case ServiceError:
		return "ServiceError"
	case NoResponse:
		return "NoResponse"
	case RequestBuild:
		return "RequestBuild"
	default:
		return "Unknown"
	}
}

// Outcome is the result of one conversion attempt: either a Success with the
// generated payload or a Failure with a user-facing message.
type Outcome struct {
	Payload string
	Message string
	// Kind is zero for a success
	Kind FailureKind
	// Err keeps the underlying cause of a failure for diagnostics
	Err error
}

// Success builds a successful outcome
func Success(payload string) Outcome {
	return Outcome{Payload: payload}
}

// Failure builds a failed outcome
func Failure(kind FailureKind, message string, err error) Outcome {
	return Outcome{Kind: kind, Message: message, Err: err}
}

// OK reports whether the outcome is a Success
func (o Outcome) OK() bool {
	return o.Kind == 0
}

// Label names the outcome for logs and metrics
func (o Outcome) Label() string {
	if o.OK() {
		return "Success"
	}
	return o.Kind.String()
}
