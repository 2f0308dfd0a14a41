package api

import "github.com/labstack/echo/v4"

// errorBody is the JSON error envelope returned for every failed
// request: {"error": {"kind": "...", "message": "..."}}.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// writeError sends the error envelope with the given status.
func writeError(c echo.Context, status int, kind, message string) error {
	return c.JSON(status, errorBody{Error: errorDetail{Kind: kind, Message: message}})
}
