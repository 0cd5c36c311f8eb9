package responses

// Success wraps every 2xx payload.
type Success struct {
	Data any `json:"data"`
}

// APIError is the public shape of a failed request. Details carry field or
// state information only for codes that allow it, such as a rejected quote
// transition.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Failure wraps every error payload.
type Failure struct {
	Error APIError `json:"error"`
}
