package gateway

import (
	"errors"
	"time"

	"github.com/araddon/dateparse"
)

// ErrNoSession is returned when an event's declared session id cannot be
// matched to any stored gateway account, even after reconciliation. The
// webhook layer surfaces it as a 404 so the gateway may retry later.
var ErrNoSession = errors.New("gateway session not recognized")

// Session is one live client on the external gateway, as reported by its
// session-listing endpoint.
type Session struct {
	ID          string `json:"id"`
	Phone       string `json:"phone"`
	IsConnected bool   `json:"isConnected"`
	ConnectedAt string `json:"connectedAt"`
}

// ConnectedTime parses the listing's connectedAt value, which gateways
// report in assorted formats (unix seconds, millis, RFC3339).
func (s Session) ConnectedTime() (time.Time, error) {
	if s.ConnectedAt == "" {
		return time.Time{}, errors.New("no connectedAt value")
	}
	return dateparse.ParseAny(s.ConnectedAt)
}
