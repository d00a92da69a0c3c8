package contract

import (
	"encoding/json"
	"strings"
)

const exceptionPrefix = `{"Exception`

// HostError is an exception reply returned across the interop boundary.
type HostError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

func (e *HostError) Error() string {
	if e.Name == "" {
		return e.Message
	}
	return e.Name + ": " + e.Message
}

type exceptionReply struct {
	Exception HostError `json:"Exception"`
}

// ExceptionReply renders {"Exception":{"name":...,"message":...}}.
func ExceptionReply(name, message string) string {
	data, _ := json.Marshal(exceptionReply{Exception: HostError{Name: name, Message: message}})
	return string(data)
}

// NoServiceReply is the reply for a call addressed to an unknown service.
func NoServiceReply(d Descriptor) string {
	return ExceptionReply("InternalError", "No service available for: "+d.JSON())
}

// CheckResponse converts an exception reply into a *HostError. Any other
// response, including the empty string, yields nil.
func CheckResponse(response string) error {
	if !strings.HasPrefix(response, exceptionPrefix) {
		return nil
	}
	var reply exceptionReply
	if err := json.Unmarshal([]byte(response), &reply); err != nil {
		return &HostError{Name: "InternalError", Message: response}
	}
	return &reply.Exception
}
