package apperr

import (
	"errors"
	"net/http"
)

// ResponseBody is the JSON shape every error response carries, mirroring
// the teacher's ResponseError.
type ResponseBody struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

var statusByKind = map[Kind]int{
	KindSessionNotFound:   http.StatusBadRequest,
	KindRequestValidation: http.StatusBadRequest,
	KindUnsupportedFormat: http.StatusBadRequest,
	KindAlreadyExisting:   http.StatusBadRequest,
	KindPayloadTooLarge:   http.StatusRequestEntityTooLarge,
	KindJSONParsing:       http.StatusBadRequest,
	KindRecordBatch:       http.StatusInternalServerError,
	KindParquet:           http.StatusInternalServerError,
	KindHTTPRequest:       417,
	KindConnectionByPeer:  417,
	KindPluginInterpreter: http.StatusInternalServerError,
	KindDataFusion:        http.StatusBadRequest,
}

// ToResponse maps any error to the HTTP status and JSON body the server
// should answer with. Errors that are not an *Error are treated as an
// unmapped internal failure.
func ToResponse(err error) (int, ResponseBody) {
	var e *Error
	if errors.As(err, &e) {
		status, ok := statusByKind[e.Kind]
		if !ok {
			status = http.StatusInternalServerError
		}

		return status, ResponseBody{Kind: e.Kind, Message: e.Error()}
	}

	return http.StatusInternalServerError, ResponseBody{
		Kind:    KindDataFusion,
		Message: "internal server error",
	}
}
