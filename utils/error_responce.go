package utils

// ErrorResponse is a struct for error response
type ErrorResponse struct {
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
	Party   string `json:"party,omitempty"`
	Error   string `json:"error,omitempty"`
}
