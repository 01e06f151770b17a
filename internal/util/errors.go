package util

import (
	"errors"
	"fmt"
)

// MyResponseError is an error whose message is safe to return to the client as is.
type MyResponseError struct {
	Msg    string
	Status int
}

func (e MyResponseError) Error() string { return e.Msg }

func NewResponseError(status int, format string, args ...interface{}) error {
	return MyResponseError{
		Msg:    fmt.Sprintf(format, args...),
		Status: status,
	}
}

func AsResponseError(err error) (MyResponseError, bool) {
	var respErr MyResponseError
	if errors.As(err, &respErr) {
		return respErr, true
	}
	return MyResponseError{}, false
}
