package api

import (
	"strconv"

	"github.com/danielgtaylor/huma/v2"
)

// EnvelopeVersion is the version of the response envelope. Clients reject
// envelopes with a version they do not know.
const EnvelopeVersion = 1

// APIEnvelope wraps every successful response and simple errors.
type APIEnvelope struct { //nolint:revive // API prefix is intentional for clarity
	Version int    `json:"v"`
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// APIErrorEnvelope wraps errors that carry a machine-readable code.
type APIErrorEnvelope struct { //nolint:revive // API prefix is intentional for clarity
	Version int    `json:"v"`
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// EnvelopeTransformer wraps huma response bodies in the API envelope.
func EnvelopeTransformer(_ huma.Context, status string, v any) (any, error) {
	code, err := strconv.Atoi(status)
	if err != nil {
		code = 200
	}

	if code < 400 {
		return APIEnvelope{Version: EnvelopeVersion, Success: true, Data: v}, nil
	}

	switch e := v.(type) {
	case *APIError:
		if e.Code == "" {
			return APIEnvelope{Version: EnvelopeVersion, Error: e.Message}, nil
		}
		return APIErrorEnvelope{
			Version: EnvelopeVersion,
			Error:   e.Message,
			Code:    e.Code,
			Message: e.Message,
			Details: e.Details,
		}, nil
	case error:
		return APIEnvelope{Version: EnvelopeVersion, Error: e.Error()}, nil
	default:
		return APIEnvelope{Version: EnvelopeVersion, Data: v}, nil
	}
}
