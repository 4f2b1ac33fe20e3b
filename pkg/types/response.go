package types

type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the client-facing error body. Message is always the public
// message for Code; Details only appear for codes that allow them.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	RequestID string `json:"request_id,omitempty"`
	Details   any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
