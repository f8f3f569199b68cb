package metrics

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/netsampler/intflow/decoders/intreport"
	"github.com/netsampler/intflow/utils"
	"github.com/netsampler/intflow/utils/debug"

	"github.com/prometheus/client_golang/prometheus"
)

// ErrorClass names the counter label of a pipe error.
func ErrorClass(err error) string {
	switch {
	case errors.Is(err, intreport.ErrNotINT):
		return "not_int"
	case errors.Is(err, intreport.ErrMalformed):
		return "malformed"
	case errors.Is(err, intreport.ErrInconsistentStack):
		return "inconsistent"
	case errors.Is(err, debug.ErrPanic):
		return "panic"
	}
	return "error_decoding"
}

func PromDecoderWrapper(wrapped utils.DecoderFunc, name string) utils.DecoderFunc {
	return func(msg interface{}) error {
		pkt, ok := msg.(*utils.Message)
		if !ok {
			return fmt.Errorf("flow is not *Message")
		}
		remote := pkt.Src.Addr().Unmap().String()
		localIP := pkt.Dst.Addr().Unmap().String()
		port := strconv.FormatUint(uint64(pkt.Dst.Port()), 10)
		size := len(pkt.Payload)

		labels := prometheus.Labels{
			"remote_ip":  remote,
			"local_ip":   localIP,
			"local_port": port,
			"type":       name,
		}
		MetricTrafficBytes.With(labels).Add(float64(size))
		MetricTrafficPackets.With(labels).Inc()
		MetricPacketSizeSum.With(labels).Observe(float64(size))

		timeTrackStart := time.Now()
		err := wrapped(msg)
		DecoderTime.With(
			prometheus.Labels{
				"name": name,
			}).
			Observe(float64(time.Since(timeTrackStart).Nanoseconds()) / 1000)

		if err != nil {
			class := ErrorClass(err)
			if class == "not_int" {
				ReportsSkipped.With(prometheus.Labels{"remote_ip": remote}).Inc()
			} else {
				ReportErrors.With(
					prometheus.Labels{
						"remote_ip": remote,
						"error":     class,
					}).
					Inc()
			}
		}
		return err
	}
}
