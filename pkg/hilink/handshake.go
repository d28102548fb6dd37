package hilink

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Handshake fetches a fresh verification token and session id from the device.
// It needs no credentials.
func (c *Client) Handshake(ctx context.Context, host string) (Handshake, error) {
	return c.handshake(ctx, host, c.requestTimeout)
}

func (c *Client) handshake(ctx context.Context, host string, timeout time.Duration) (Handshake, error) {
	hs, err := c.fetchHandshake(ctx, host, timeout)
	c.metrics.DeviceRequest(pathSesTokInfo, outcome(err))
	return hs, err
}

// fetchHandshake is handshake without device request accounting, for probes
// against addresses that may not be a modem at all
func (c *Client) fetchHandshake(ctx context.Context, host string, timeout time.Duration) (Handshake, error) {
	resp, err := c.transport.do(ctx, timeout, host, pathSesTokInfo,
		func(ctx context.Context, url string) (*resty.Response, error) {
			return c.transport.request(ctx, "", "").Get(url)
		})
	if err != nil {
		return Handshake{}, err
	}

	body := resp.String()
	token := Field(body, "TokInfo")
	if token == "" {
		return Handshake{}, fmt.Errorf("%w: no TokInfo from %s (HTTP %d)", ErrProtocol, host, resp.StatusCode())
	}

	session := sessionFromCookies(resp)
	if session == "" {
		session = normalizeSession(Field(body, "SesInfo"))
	}
	return Handshake{Token: newToken(token), Session: session}, nil
}
