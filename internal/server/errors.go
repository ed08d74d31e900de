package server

import (
	"net/http"

	"github.com/example/atomsched/pkg/atomerr"
)

// statusForKind maps an atomerr.Kind to the HTTP status code that best
// represents it.
func statusForKind(kind atomerr.Kind) int {
	switch kind {
	case atomerr.KindNotFound, atomerr.KindModelNotFound, atomerr.KindFactoryNotFound:
		return http.StatusNotFound
	case atomerr.KindAlreadyExists:
		return http.StatusConflict
	case atomerr.KindInvalidState, atomerr.KindBusyResource, atomerr.KindDependencyFailed:
		return http.StatusConflict
	case atomerr.KindInvalidArgument, atomerr.KindCyclicDependency:
		return http.StatusBadRequest
	case atomerr.KindQueueFull:
		return http.StatusTooManyRequests
	case atomerr.KindTimeout:
		return http.StatusGatewayTimeout
	case atomerr.KindCancelled:
		return http.StatusConflict
	case atomerr.KindSchedulerStopped, atomerr.KindOutOfMemory:
		return http.StatusServiceUnavailable
	case atomerr.KindBackendError:
		return http.StatusBadGateway
	case atomerr.KindNotImplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func respondErr(w http.ResponseWriter, reqID string, err error) {
	kind := atomerr.KindOf(err)
	respondError(w, reqID, statusForKind(kind), &APIError{Kind: string(kind), Message: err.Error()})
}
