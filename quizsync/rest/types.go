package rest

// FallbackAvatars is served locally when the catalog endpoint fails.
var FallbackAvatars = []string{
	"/avatar1.svg",
	"/avatar2.svg",
	"/avatar3.svg",
	"/avatar4.svg",
	"/avatar5.svg",
	"/avatar6.svg",
}

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error string `json:"error"`
}
