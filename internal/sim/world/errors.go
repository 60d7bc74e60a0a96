package world

import "github.com/samber/oops"

// Command error codes surfaced to control clients.
const (
	CodeNotFound   = "E_NOT_FOUND"
	CodeLocked     = "E_LOCKED"
	CodeForbidden  = "E_FORBIDDEN"
	CodeBadRequest = "E_BAD_REQUEST"
	CodeInternal   = "E_INTERNAL"
)

// ErrorCode extracts the command error code carried by err.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	if o, ok := oops.AsOops(err); ok {
		if s, ok := any(o.Code()).(string); ok && s != "" {
			return s
		}
	}
	return CodeInternal
}

func notFound(what string, pos Vec3i) error {
	return oops.Code(CodeNotFound).With("pos", pos.ToArray()).Errorf("no %s at %v", what, pos.ToArray())
}
