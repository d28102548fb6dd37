package hilink

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ebobo/hilink_prod_go/pkg/metrics"
	"github.com/ebobo/hilink_prod_go/pkg/model"
)

// default timeouts and delays
const (
	DefaultRequestTimeout = 8 * time.Second
	DefaultScanTimeout    = 2 * time.Minute
	DefaultProbeTimeout   = 2 * time.Second
	DefaultTestTimeout    = 5 * time.Second
	DefaultSettleDelay    = 15 * time.Second

	defaultDeviceName = "Huawei Modem"
)

// HistoryStore persists rotation results. Implemented by the sqlite store.
type HistoryStore interface {
	RecordIPChange(ctx context.Context, userID int64, wanIP, timestamp string) error
	GetLastChange(ctx context.Context, userID int64) (model.LastChange, error)
}

// CredentialStore supplies per-user modem configs. Implemented by the sqlite store.
type CredentialStore interface {
	GetModemConfig(ctx context.Context, userID int64) (model.ModemConfig, error)
	SaveModemConfig(ctx context.Context, userID int64, cfg model.ModemConfig) error
	DeleteConfig(ctx context.Context, userID int64) error
}

// Config for the device client. Zero values fall back to defaults.
type Config struct {
	HTTPClient     *http.Client
	Sessions       *Registry
	History        HistoryStore
	Logger         *zap.Logger
	Metrics        *metrics.Metrics
	RequestTimeout time.Duration
	ScanTimeout    time.Duration
	ProbeTimeout   time.Duration
	TestTimeout    time.Duration
	SettleDelay    time.Duration
	// Candidates overrides the discovery address list
	Candidates []string
	// Now is the clock used to timestamp rotations
	Now func() time.Time
}

// Client drives HiLink devices for many users. Each user's session lives in
// the Registry and is only touched while that user's flow is held.
type Client struct {
	transport      *transport
	sessions       *Registry
	history        HistoryStore
	log            *zap.Logger
	metrics        *metrics.Metrics
	requestTimeout time.Duration
	scanTimeout    time.Duration
	probeTimeout   time.Duration
	testTimeout    time.Duration
	settleDelay    time.Duration
	candidates     []string
	now            func() time.Time
}

func New(c Config) *Client {
	cl := &Client{
		transport:      newTransport(c.HTTPClient),
		sessions:       c.Sessions,
		history:        c.History,
		log:            c.Logger,
		metrics:        c.Metrics,
		requestTimeout: orDefault(c.RequestTimeout, DefaultRequestTimeout),
		scanTimeout:    orDefault(c.ScanTimeout, DefaultScanTimeout),
		probeTimeout:   orDefault(c.ProbeTimeout, DefaultProbeTimeout),
		testTimeout:    orDefault(c.TestTimeout, DefaultTestTimeout),
		settleDelay:    orDefault(c.SettleDelay, DefaultSettleDelay),
		candidates:     c.Candidates,
		now:            c.Now,
	}
	if cl.sessions == nil {
		cl.sessions = NewRegistry()
	}
	if cl.log == nil {
		cl.log = zap.NewNop()
	}
	if len(cl.candidates) == 0 {
		cl.candidates = DefaultCandidates
	}
	if cl.now == nil {
		cl.now = time.Now
	}
	return cl
}

// Sessions exposes the registry the client stores sessions in
func (c *Client) Sessions() *Registry {
	return c.sessions
}

// Logout drops the user's session. Waits for any flow in progress for the user.
func (c *Client) Logout(ctx context.Context, userID int64) error {
	return c.sessions.Remove(ctx, userID)
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

func userFields(cfg model.ModemConfig, userID int64) []zap.Field {
	return []zap.Field{zap.Int64("user_id", userID), zap.String("modem_ip", cfg.IP)}
}
