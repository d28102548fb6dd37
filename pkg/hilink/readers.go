package hilink

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ebobo/hilink_prod_go/pkg/model"
	"github.com/ebobo/hilink_prod_go/pkg/utility"
)

// placeholders for fields a reader could not fetch
const (
	NotAvailable = "N/A"
	Unknown      = "Unknown"
)

// deviceInformation reads name and WAN IP. The user's flow must be held.
func (c *Client) deviceInformation(ctx context.Context, cfg model.ModemConfig, userID int64) (string, string, error) {
	body, err := c.authedCall(ctx, cfg, userID, pathDeviceInfo, c.requestTimeout, get)
	if err != nil {
		return "", "", err
	}
	name := Field(body, "DeviceName")
	if name == "" {
		name = defaultDeviceName
	}
	return name, Field(body, "WanIPAddress"), nil
}

// WANInfo returns device name and WAN IP, with placeholders on failure
func (c *Client) WANInfo(ctx context.Context, cfg model.ModemConfig, userID int64) model.ModemInfo {
	release, err := c.sessions.acquire(ctx, userID)
	if err != nil {
		return model.ModemInfo{Name: defaultDeviceName, WanIP: NotAvailable}
	}
	defer release()

	name, ip, err := c.deviceInformation(ctx, cfg, userID)
	if err != nil {
		c.readFailed(cfg, userID, pathDeviceInfo, err)
		return model.ModemInfo{Name: defaultDeviceName, WanIP: NotAvailable}
	}
	if ip == "" {
		ip = Unknown
	}
	return model.ModemInfo{Name: name, WanIP: ip}
}

// Provider returns the registered network operator name
func (c *Client) Provider(ctx context.Context, cfg model.ModemConfig, userID int64) string {
	body, err := c.read(ctx, cfg, userID, pathCurrentPLMN)
	if err != nil {
		c.readFailed(cfg, userID, pathCurrentPLMN, err)
		return Unknown
	}
	if name := Field(body, "FullName"); name != "" {
		return name
	}
	if name := Field(body, "ShortName"); name != "" {
		return name
	}
	return Unknown
}

func (c *Client) TrafficStats(ctx context.Context, cfg model.ModemConfig, userID int64) model.TrafficStats {
	body, err := c.read(ctx, cfg, userID, pathTrafficStats)
	if err != nil {
		c.readFailed(cfg, userID, pathTrafficStats, err)
		return model.TrafficStats{DataUsage: NotAvailable}
	}
	stats := model.TrafficStats{
		CurrentDownload: intField(body, "CurrentDownloadRate"),
		CurrentUpload:   intField(body, "CurrentUploadRate"),
		TotalDownload:   intField(body, "TotalDownload"),
		TotalUpload:     intField(body, "TotalUpload"),
	}
	stats.DataUsage = "down " + utility.FormatBytes(stats.TotalDownload) + " / up " + utility.FormatBytes(stats.TotalUpload)
	return stats
}

func (c *Client) SignalInfo(ctx context.Context, cfg model.ModemConfig, userID int64) model.SignalInfo {
	body, err := c.read(ctx, cfg, userID, pathSignal)
	if err != nil {
		c.readFailed(cfg, userID, pathSignal, err)
		return model.SignalInfo{RSSI: NotAvailable, RSRP: NotAvailable, RSRQ: NotAvailable, SINR: NotAvailable, SignalStrength: NotAvailable}
	}
	info := model.SignalInfo{
		RSSI: orPlaceholder(Field(body, "rssi")),
		RSRP: orPlaceholder(Field(body, "rsrp")),
		RSRQ: orPlaceholder(Field(body, "rsrq")),
		SINR: orPlaceholder(Field(body, "sinr")),
	}
	info.SignalStrength = SignalBand(info.RSSI)
	return info
}

func (c *Client) MonthStats(ctx context.Context, cfg model.ModemConfig, userID int64) model.MonthStats {
	body, err := c.read(ctx, cfg, userID, pathMonthStats)
	if err != nil {
		c.readFailed(cfg, userID, pathMonthStats, err)
		return model.MonthStats{MonthUsage: NotAvailable}
	}
	stats := model.MonthStats{
		CurrentMonthDownload: intField(body, "CurrentMonthDownload"),
		CurrentMonthUpload:   intField(body, "CurrentMonthUpload"),
	}
	stats.MonthUsage = utility.FormatBytes(stats.CurrentMonthDownload + stats.CurrentMonthUpload)
	return stats
}

// FullInfo combines WAN, provider and traffic reads with the last recorded change
func (c *Client) FullInfo(ctx context.Context, cfg model.ModemConfig, userID int64) model.ModemInfo {
	var (
		info     model.ModemInfo
		provider string
		traffic  model.TrafficStats
		g        errgroup.Group
	)
	g.Go(func() error { info = c.WANInfo(ctx, cfg, userID); return nil })
	g.Go(func() error { provider = c.Provider(ctx, cfg, userID); return nil })
	g.Go(func() error { traffic = c.TrafficStats(ctx, cfg, userID); return nil })
	_ = g.Wait()

	info.Provider = provider
	info.DataUsage = traffic.DataUsage
	info.TotalDownload = traffic.TotalDownload
	info.TotalUpload = traffic.TotalUpload
	info.Timestamp = c.lastChangeTimestamp(ctx, userID)
	return info
}

func (c *Client) DetailedInfo(ctx context.Context, cfg model.ModemConfig, userID int64) model.DetailedInfo {
	var (
		wan      model.ModemInfo
		provider string
		signal   model.SignalInfo
		traffic  model.TrafficStats
		month    model.MonthStats
		g        errgroup.Group
	)
	g.Go(func() error { wan = c.WANInfo(ctx, cfg, userID); return nil })
	g.Go(func() error { provider = c.Provider(ctx, cfg, userID); return nil })
	g.Go(func() error { signal = c.SignalInfo(ctx, cfg, userID); return nil })
	g.Go(func() error { traffic = c.TrafficStats(ctx, cfg, userID); return nil })
	g.Go(func() error { month = c.MonthStats(ctx, cfg, userID); return nil })
	_ = g.Wait()

	d := model.DetailedInfo{
		DeviceName:     wan.Name,
		WanIP:          wan.WanIP,
		Provider:       provider,
		SignalStrength: signal.SignalStrength,
		RSSI:           signal.RSSI,
		TotalDownload:  NotAvailable,
		TotalUpload:    NotAvailable,
		MonthUsage:     month.MonthUsage,
	}
	if traffic.DataUsage != NotAvailable {
		d.TotalDownload = utility.FormatBytes(traffic.TotalDownload)
		d.TotalUpload = utility.FormatBytes(traffic.TotalUpload)
	}
	return d
}

func (c *Client) lastChangeTimestamp(ctx context.Context, userID int64) string {
	if c.history == nil {
		return ""
	}
	last, err := c.history.GetLastChange(ctx, userID)
	if err != nil {
		c.log.Warn("failed to read last ip change", zap.Int64("user_id", userID), zap.Error(err))
		return ""
	}
	return last.Timestamp
}

func (c *Client) readFailed(cfg model.ModemConfig, userID int64, path string, err error) {
	c.log.Warn("device read failed", append(userFields(cfg, userID), zap.String("path", path), zap.Error(err))...)
}

// SignalBand classifies an RSSI reading such as "-71dBm"
func SignalBand(rssi string) string {
	v, err := strconv.Atoi(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(rssi), "dBm")))
	if err != nil {
		return NotAvailable
	}
	switch {
	case v >= -65:
		return "excellent"
	case v >= -75:
		return "good"
	case v >= -85:
		return "fair"
	case v >= -95:
		return "weak"
	default:
		return "very weak"
	}
}

func intField(body, tag string) int64 {
	v, err := strconv.ParseInt(Field(body, tag), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func orPlaceholder(s string) string {
	if s == "" {
		return NotAvailable
	}
	return s
}
