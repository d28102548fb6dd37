package hilink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/ebobo/hilink_prod_go/pkg/model"
)

// requestFunc issues one device call on a request that already carries the
// session cookie and a fresh verification token
type requestFunc func(req *resty.Request, url string) (*resty.Response, error)

func get(req *resty.Request, url string) (*resty.Response, error) {
	return req.Get(url)
}

// authedCall runs call under the user's session, re-logging in at most once when
// the device reports an authentication error. The user's flow must be held.
func (c *Client) authedCall(ctx context.Context, cfg model.ModemConfig, userID int64,
	path string, timeout time.Duration, call requestFunc) (string, error) {
	for attempt := 0; attempt < 2; attempt++ {
		body, err := c.sessionCall(ctx, cfg, userID, path, timeout, call)
		var devErr *DeviceError
		if !errors.As(err, &devErr) || !isAuthCode(devErr.Code) {
			return body, err
		}
		c.log.Info("session rejected, logging in again",
			append(userFields(cfg, userID), zap.String("path", path), zap.String("code", devErr.Code), zap.Int("attempt", attempt+1))...)
		c.sessions.Invalidate(userID)
	}

	c.metrics.DeviceRequest(path, outcome(ErrAuthExpired))
	return "", fmt.Errorf("%w: %s still unauthorized after re-login", ErrAuthExpired, path)
}

// sessionCall sends one request with the stored session and a fresh token,
// logging in first if needed. Any <error> answer, auth codes included, comes
// back as *DeviceError. The user's flow must be held.
func (c *Client) sessionCall(ctx context.Context, cfg model.ModemConfig, userID int64,
	path string, timeout time.Duration, call requestFunc) (string, error) {
	if err := c.ensureLoggedIn(ctx, cfg, userID); err != nil {
		return "", err
	}
	session := c.sessions.Get(userID)

	hs, err := c.handshake(ctx, cfg.IP, c.requestTimeout)
	if err != nil {
		return "", err
	}
	token, err := hs.Token.Use()
	if err != nil {
		return "", err
	}

	resp, err := c.transport.do(ctx, timeout, cfg.IP, path,
		func(ctx context.Context, url string) (*resty.Response, error) {
			return call(c.transport.request(ctx, session.Cookie, token), url)
		})
	if err != nil {
		c.metrics.DeviceRequest(path, outcome(err))
		return "", err
	}

	body := resp.String()
	code, isErr := errorCode(body)
	if !isErr {
		c.metrics.DeviceRequest(path, "ok")
		return body, nil
	}
	err = &DeviceError{Path: path, Code: code}
	c.metrics.DeviceRequest(path, outcome(err))
	return body, err
}

// read is authedCall for a GET with the default timeout, taking the user's flow
func (c *Client) read(ctx context.Context, cfg model.ModemConfig, userID int64, path string) (string, error) {
	release, err := c.sessions.acquire(ctx, userID)
	if err != nil {
		return "", err
	}
	defer release()
	return c.authedCall(ctx, cfg, userID, path, c.requestTimeout, get)
}
