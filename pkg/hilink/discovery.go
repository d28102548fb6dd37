package hilink

import (
	"context"
	"errors"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ebobo/hilink_prod_go/pkg/model"
)

// ErrNoModemFound is returned by AutoDetect when no candidate answered the probe
var ErrNoModemFound = errors.New("no modem found at common gateway addresses")

// DefaultCandidates are common gateway addresses, HiLink default first
var DefaultCandidates = []string{
	"192.168.8.1",
	"192.168.1.1",
	"192.168.0.1",
	"192.168.100.1",
	"10.0.0.1",
	"192.168.2.1",
	"192.168.3.1",
	"192.168.31.1",
}

// AutoDetect probes the candidate addresses and returns the first one, in list order,
// that answers the handshake with a token. Setup-time only.
func (c *Client) AutoDetect(ctx context.Context) (model.DetectedModem, error) {
	found := make([]bool, len(c.candidates))
	var g errgroup.Group
	for i, ip := range c.candidates {
		i, ip := i, ip
		g.Go(func() error {
			found[i] = c.probe(ctx, ip, c.probeTimeout)
			return nil
		})
	}
	_ = g.Wait()

	for i, ok := range found {
		if ok {
			ip := c.candidates[i]
			c.log.Info("found modem", zap.String("modem_ip", ip))
			return model.DetectedModem{IP: ip, DeviceName: c.deviceName(ctx, ip)}, nil
		}
	}
	if ctx.Err() != nil {
		return model.DetectedModem{}, ctx.Err()
	}
	return model.DetectedModem{}, ErrNoModemFound
}

// TestConnection probes one address. It reports the device name when reachable.
func (c *Client) TestConnection(ctx context.Context, ip string) (string, bool) {
	if !c.probe(ctx, ip, c.testTimeout) {
		return "", false
	}
	return c.deviceName(ctx, ip), true
}

// probe reports whether ip answers the handshake with a token
func (c *Client) probe(ctx context.Context, ip string, timeout time.Duration) bool {
	_, err := c.fetchHandshake(ctx, ip, timeout)
	if err != nil {
		c.log.Debug("probe failed", zap.String("modem_ip", ip), zap.Error(err))
		c.metrics.DiscoveryProbe("miss")
		return false
	}
	c.metrics.DiscoveryProbe("found")
	return true
}

// CheckConnection reports whether the device answers HTTP at all
func (c *Client) CheckConnection(ctx context.Context, cfg model.ModemConfig) bool {
	_, err := c.transport.do(ctx, c.testTimeout, cfg.IP, pathTrafficStats,
		func(ctx context.Context, url string) (*resty.Response, error) {
			return c.transport.request(ctx, "", "").Get(url)
		})
	return err == nil
}

// deviceName reads the unauthenticated basic information, best effort
func (c *Client) deviceName(ctx context.Context, ip string) string {
	resp, err := c.transport.do(ctx, c.probeTimeout, ip, pathBasicInfo,
		func(ctx context.Context, url string) (*resty.Response, error) {
			return c.transport.request(ctx, "", "").Get(url)
		})
	if err != nil {
		return defaultDeviceName
	}
	body := resp.String()
	if name := Field(body, "devicename"); name != "" {
		return name
	}
	if name := Field(body, "DeviceName"); name != "" {
		return name
	}
	return defaultDeviceName
}
