// README: NATS connection for assignment events; optional.
package infra

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"resortdispatch/internal/logger"
)

// NewNATS connects to url. An empty url means events are not published and
// returns a nil connection.
func NewNATS(url string, log logger.Logger) (*nats.Conn, error) {
	if url == "" {
		return nil, nil
	}
	nc, err := nats.Connect(url,
		nats.Name("dispatchd"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warnf("nats disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Infof("nats reconnected to %s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return nc, nil
}
