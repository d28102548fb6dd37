package hilink

import (
	"context"
	"encoding/xml"
	"fmt"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/ebobo/hilink_prod_go/pkg/model"
)

type loginState int

const (
	stateNoSession loginState = iota
	stateHandshakeDone
	statePasswordTypeResolved
	stateLoginSubmitted
	stateAuthenticated
	stateFailed
)

func (s loginState) String() string {
	switch s {
	case stateNoSession:
		return "no_session"
	case stateHandshakeDone:
		return "handshake_done"
	case statePasswordTypeResolved:
		return "password_type_resolved"
	case stateLoginSubmitted:
		return "login_submitted"
	case stateAuthenticated:
		return "authenticated"
	case stateFailed:
		return "failed"
	}
	return "unknown"
}

type loginRequest struct {
	XMLName      xml.Name `xml:"request"`
	Username     string   `xml:"Username"`
	Password     string   `xml:"Password"`
	PasswordType string   `xml:"password_type"`
}

// Login performs a fresh login for userID and stores the resulting session
func (c *Client) Login(ctx context.Context, cfg model.ModemConfig, userID int64) error {
	release, err := c.sessions.acquire(ctx, userID)
	if err != nil {
		return err
	}
	defer release()
	return c.login(ctx, cfg, userID)
}

// EnsureLoggedIn logs in only when the user holds no valid session.
// It reports whether the caller now holds a usable session.
func (c *Client) EnsureLoggedIn(ctx context.Context, cfg model.ModemConfig, userID int64) (bool, error) {
	release, err := c.sessions.acquire(ctx, userID)
	if err != nil {
		return false, err
	}
	defer release()
	if err := c.ensureLoggedIn(ctx, cfg, userID); err != nil {
		return false, err
	}
	return true, nil
}

// ensureLoggedIn expects the user's flow to be held
func (c *Client) ensureLoggedIn(ctx context.Context, cfg model.ModemConfig, userID int64) error {
	if c.sessions.Get(userID).Valid() {
		return nil
	}
	return c.login(ctx, cfg, userID)
}

// login expects the user's flow to be held. The registry is written once, after
// the device accepted the credentials.
func (c *Client) login(ctx context.Context, cfg model.ModemConfig, userID int64) error {
	log := c.log.With(userFields(cfg, userID)...)
	state := stateNoSession
	fail := func(err error) error {
		log.Warn("login failed", zap.Stringer("state", stateFailed), zap.Stringer("reached", state), zap.Error(err))
		c.metrics.Login(outcome(err))
		return err
	}

	hs, err := c.handshake(ctx, cfg.IP, c.requestTimeout)
	if err != nil {
		return fail(err)
	}
	state = stateHandshakeDone
	log.Debug("login step", zap.Stringer("state", state))

	passwordType, err := c.passwordType(ctx, cfg.IP, hs.Session)
	if err != nil {
		return fail(err)
	}
	state = statePasswordTypeResolved
	log.Debug("login step", zap.Stringer("state", state), zap.String("password_type", passwordType))

	token, err := hs.Token.Use()
	if err != nil {
		return fail(err)
	}
	body := loginRequest{
		Username:     cfg.Username,
		Password:     EncodePassword(cfg.Username, cfg.Password, token),
		PasswordType: passwordType,
	}
	payload, err := xml.Marshal(body)
	if err != nil {
		return fail(fmt.Errorf("encode login request: %w", err))
	}

	resp, err := c.transport.do(ctx, c.requestTimeout, cfg.IP, pathLogin,
		func(ctx context.Context, url string) (*resty.Response, error) {
			return c.transport.request(ctx, hs.Session, token).
				SetHeader("Content-Type", "application/xml").
				SetBody(xml.Header + string(payload)).
				Post(url)
		})
	if err != nil {
		return fail(err)
	}
	state = stateLoginSubmitted
	log.Debug("login step", zap.Stringer("state", state))

	respBody := resp.String()
	if !isOK(respBody) {
		code, _ := errorCode(respBody)
		if code == "" && Field(respBody, "response") == "" {
			return fail(fmt.Errorf("%w: login answer without OK or error code", ErrProtocol))
		}
		return fail(newAuthFailed(code, Field(respBody, "waittime")))
	}

	session := Session{Cookie: sessionFromCookies(resp), Token: resp.Header().Get(headerVerification)}
	if session.Cookie == "" {
		session.Cookie = hs.Session
	}
	if session.Token == "" {
		session.Token = token
	}
	if !session.Valid() {
		return fail(fmt.Errorf("%w: login accepted without a session id", ErrProtocol))
	}

	c.sessions.set(userID, session)
	state = stateAuthenticated
	c.metrics.Login("ok")
	log.Info("login successful", zap.Stringer("state", state))
	return nil
}

func (c *Client) passwordType(ctx context.Context, host, session string) (string, error) {
	resp, err := c.transport.do(ctx, c.requestTimeout, host, pathStateLogin,
		func(ctx context.Context, url string) (*resty.Response, error) {
			return c.transport.request(ctx, session, "").Get(url)
		})
	if err != nil {
		return "", err
	}
	if pt := Field(resp.String(), "password_type"); pt != "" {
		return pt, nil
	}
	return PasswordTypeSHA256, nil
}
