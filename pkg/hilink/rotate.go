package hilink

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ebobo/hilink_prod_go/pkg/model"
	"github.com/ebobo/hilink_prod_go/pkg/utility"
)

// rotation steps, reported in IPChangeError.Step
const (
	stepLock    = "acquire"
	stepLogin   = "login"
	stepScan    = "network scan"
	stepSettle  = "settle"
	stepRelogin = "re-login"
	stepReadIP  = "read wan ip"
)

// ChangeIP forces the carrier to assign a new WAN IP by running a PLMN scan, which
// drops and re-registers the data link. Success always carries a WAN IP read after
// the scan; the same IP as before is a warning, not a failure.
func (c *Client) ChangeIP(ctx context.Context, cfg model.ModemConfig, userID int64) (model.ModemInfo, error) {
	rotationID := uuid.New().String()
	log := c.log.With(append(userFields(cfg, userID), zap.String("rotation_id", rotationID))...)
	started := time.Now()

	release, err := c.sessions.acquire(ctx, userID)
	if err != nil {
		return model.ModemInfo{}, c.rotationFailed(log, stepLock, "", err, started)
	}
	defer release()

	_, oldIP, err := c.deviceInformation(ctx, cfg, userID)
	if err != nil {
		log.Warn("could not read current wan ip", zap.Error(err))
	}
	log.Info("starting ip change", zap.String("old_ip", oldIP))

	c.sessions.Invalidate(userID)
	if err := c.login(ctx, cfg, userID); err != nil {
		return model.ModemInfo{}, c.rotationFailed(log, stepLogin, oldIP, err, started)
	}

	networks, err := c.scanNetworks(ctx, cfg, userID)
	var devErr *DeviceError
	switch {
	case errors.As(err, &devErr):
		log.Warn("network scan returned a device error, continuing", zap.String("code", devErr.Code))
	case err != nil:
		return model.ModemInfo{}, c.rotationFailed(log, stepScan, oldIP, err, started)
	default:
		log.Info("network scan completed", zap.Strings("networks", networks))
	}

	log.Info("waiting for network re-registration", zap.Duration("delay", c.settleDelay))
	if err := sleep(ctx, c.settleDelay); err != nil {
		return model.ModemInfo{}, c.rotationFailed(log, stepSettle, oldIP, err, started)
	}

	c.sessions.Invalidate(userID)
	if err := c.login(ctx, cfg, userID); err != nil {
		return model.ModemInfo{}, c.rotationFailed(log, stepRelogin, oldIP, err, started)
	}

	name, newIP, err := c.deviceInformation(ctx, cfg, userID)
	if err == nil && newIP == "" {
		err = errors.New("device reported no WAN IP")
	}
	if err != nil {
		return model.ModemInfo{}, c.rotationFailed(log, stepReadIP, oldIP, err, started)
	}

	info := model.ModemInfo{Name: name, WanIP: newIP, Timestamp: utility.FormatTimestamp(c.now())}
	if newIP == oldIP {
		log.Warn("ip did not change, carrier assigned the same address", zap.String("ip", newIP))
	} else {
		log.Info("ip changed", zap.String("old_ip", oldIP), zap.String("new_ip", newIP))
	}

	if c.history != nil {
		if err := c.history.RecordIPChange(ctx, userID, info.WanIP, info.Timestamp); err != nil {
			log.Warn("failed to record ip change", zap.Error(err))
		}
	}
	c.metrics.Rotation("ok", time.Since(started))
	return info, nil
}

// scanNetworks requests the PLMN list exactly once. Any device <error> is a
// *DeviceError, auth codes included; only transport failures are fatal.
// The user's flow must be held.
func (c *Client) scanNetworks(ctx context.Context, cfg model.ModemConfig, userID int64) ([]string, error) {
	body, err := c.sessionCall(ctx, cfg, userID, pathPLMNList, c.scanTimeout, get)
	if err != nil {
		return nil, err
	}
	return Fields(body, "FullName"), nil
}

func (c *Client) rotationFailed(log *zap.Logger, step, lastIP string, err error, started time.Time) error {
	e := &IPChangeError{Step: step, LastIP: lastIP, Err: err}
	log.Error("ip change failed", zap.String("step", step), zap.Error(err))
	c.metrics.Rotation(outcome(e), time.Since(started))
	return e
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
