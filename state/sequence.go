package state

import (
	"net/url"
	"strings"
)

// NewSequenceState opens the store of expected report sequence numbers,
// keyed by report source.
func NewSequenceState(rawUrl string) (State[string, int64], error) {
	sequenceUrl, err := url.Parse(rawUrl)
	if err != nil {
		return nil, err
	}
	if !sequenceUrl.Query().Has("prefix") && strings.HasPrefix(sequenceUrl.Scheme, "redis") {
		q := sequenceUrl.Query()
		q.Set("prefix", "intflow:sequence:")
		sequenceUrl.RawQuery = q.Encode()
	}
	return NewState[string, int64](sequenceUrl.String())
}
