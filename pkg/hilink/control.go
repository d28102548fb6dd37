package hilink

import (
	"context"
	"encoding/xml"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/ebobo/hilink_prod_go/pkg/model"
)

const controlReboot = 1

type controlRequest struct {
	XMLName xml.Name `xml:"request"`
	Control int      `xml:"Control"`
}

// Reboot restarts the device. The user's session is rebuilt first so the
// command goes out under a fresh login and an unused token.
func (c *Client) Reboot(ctx context.Context, cfg model.ModemConfig, userID int64) error {
	release, err := c.sessions.acquire(ctx, userID)
	if err != nil {
		return err
	}
	defer release()

	c.sessions.Invalidate(userID)
	if err := c.login(ctx, cfg, userID); err != nil {
		return err
	}

	payload, err := xml.Marshal(controlRequest{Control: controlReboot})
	if err != nil {
		return fmt.Errorf("encode control request: %w", err)
	}
	body, err := c.authedCall(ctx, cfg, userID, pathDeviceControl, c.requestTimeout,
		func(req *resty.Request, url string) (*resty.Response, error) {
			return req.SetHeader("Content-Type", "application/xml").
				SetBody(xml.Header + string(payload)).
				Post(url)
		})
	if err != nil {
		return err
	}
	if !isOK(body) {
		return fmt.Errorf("%w: reboot not acknowledged", ErrProtocol)
	}
	c.log.Info("reboot requested", userFields(cfg, userID)...)
	// the device drops every session on restart
	c.sessions.Invalidate(userID)
	return nil
}
