// Package handler exposes the daemon's local API: the enqueue surface the
// UI writes through, queue inspection, and sync controls.
package handler

const (
	StatusErr          = "error"
	StatusSuccess      = "success"
	StatusNotAvailable = "not available"
	StatusOK           = "ok"
)

// ResponseWithData is the generic success envelope carrying a payload.
type ResponseWithData struct {
	Status string `json:"status"`
	Data   any    `json:"data"`
}

// ResponseWithMessage carries only a human-readable message.
type ResponseWithMessage struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
