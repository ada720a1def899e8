package apperr

import "errors"

// Payload is the JSON error envelope written by the HTTP handlers.
type Payload struct {
	Error struct {
		Code    Code   `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func Body(code Code, msg string) Payload {
	var p Payload
	p.Error.Code = code
	p.Error.Message = msg
	return p
}

// BodyFor builds the envelope from err without leaking internal detail:
// anything that is not an APIError collapses to a generic INTERNAL body.
func BodyFor(err error) Payload {
	var api *APIError
	if errors.As(err, &api) {
		return Body(api.Code, api.Message)
	}
	return Body(CodeInternal, "internal error")
}
