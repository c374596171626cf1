package mqtt

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kilianp07/chargetrack/core/model"
	"github.com/kilianp07/chargetrack/core/session"
)

// PublishSession publishes one completed session on the session topic.
func (c *Client) PublishSession(sess model.Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	token := c.cli.Publish(c.cfg.SessionTopic, c.cfg.QoS, false, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("publish session %s: %w", sess.ID, token.Error())
	}
	return nil
}

// Forward publishes completed sessions from the engine event stream until
// the channel closes or the context is cancelled. Publish failures are
// logged; the broker's auto-reconnect handles recovery.
func (c *Client) Forward(ctx context.Context, events <-chan session.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Kind != session.EventCompleted {
				continue
			}
			if err := c.PublishSession(ev.Session); err != nil {
				c.log.Errorf("%v", err)
			}
		}
	}
}
