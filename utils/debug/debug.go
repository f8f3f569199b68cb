// Package debug converts panics raised while handling a report into errors.
package debug

import (
	"fmt"
)

var (
	ErrPanic = fmt.Errorf("panic")
)

type PanicErrorMessage struct {
	Msg        interface{}
	Inner      string
	Stacktrace []byte
}

func (e *PanicErrorMessage) Error() string {
	return fmt.Sprintf("%s: %s", ErrPanic.Error(), e.Inner)
}

func (e *PanicErrorMessage) Unwrap() error {
	return ErrPanic
}

func panicMessage(pErr interface{}) string {
	switch v := pErr.(type) {
	case string:
		return v
	case error:
		return v.Error()
	}
	return fmt.Sprint(pErr)
}
