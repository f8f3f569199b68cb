package debug

import (
	"runtime/debug"

	"github.com/netsampler/intflow/utils"
)

func PanicDecoderWrapper(wrapped utils.DecoderFunc) utils.DecoderFunc {
	return func(msg interface{}) (err error) {
		defer func() {
			if pErr := recover(); pErr != nil {
				// the payload buffer is reused once the decoder returns
				if m, ok := msg.(*utils.Message); ok {
					copied := *m
					copied.Payload = append([]byte(nil), m.Payload...)
					msg = &copied
				}
				err = &PanicErrorMessage{Msg: msg, Inner: panicMessage(pErr), Stacktrace: debug.Stack()}
			}
		}()
		err = wrapped(msg)
		return err
	}
}
