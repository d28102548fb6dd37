package hilink

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ebobo/hilink_prod_go/pkg/model"
)

// fakeDevice is a minimal HiLink web API. Tokens are single use and authenticated
// paths require a session created by a successful login.
type fakeDevice struct {
	mu sync.Mutex

	username string
	password string

	seq      int
	tokens   map[string]bool // issued and unused
	sessions map[string]bool // logged in

	logins       int
	requests     map[string]int
	loginCode    string // reject logins with this code
	rejectAuth   int    // answer this many authenticated calls with 125002
	alwaysReject bool
	noCookie     bool // SesTokInfo without Set-Cookie
	plmnCode     string

	wanIP   string
	nextIP  string // wanIP after a network scan
	scanned bool
	// loginCodeAfterScan rejects logins once a scan has happened
	loginCodeAfterScan string

	// delays holds each path back before it is served
	delays map[string]time.Duration
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		username: "admin",
		password: "secret",
		tokens:   make(map[string]bool),
		sessions: make(map[string]bool),
		requests: make(map[string]int),
		delays:   make(map[string]time.Duration),
		wanIP:    "10.20.30.40",
	}
}

// start serves the device and returns its host:port
func (d *fakeDevice) start(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(d)
	t.Cleanup(srv.Close)
	return strings.TrimPrefix(srv.URL, "http://")
}

func (d *fakeDevice) config(host string) model.ModemConfig {
	return model.ModemConfig{IP: host, Username: d.username, Password: d.password}
}

func (d *fakeDevice) count(path string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.requests[path]
}

func (d *fakeDevice) loginCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.logins
}

func (d *fakeDevice) setDelay(path string, delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.delays[path] = delay
}

func (d *fakeDevice) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	delay := d.delays[r.URL.Path]
	d.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests[r.URL.Path]++

	switch r.URL.Path {
	case pathSesTokInfo:
		d.seq++
		token := fmt.Sprintf("tok-%d", d.seq)
		session := fmt.Sprintf("anon-%d", d.seq)
		d.tokens[token] = true
		if !d.noCookie {
			w.Header().Set("Set-Cookie", "SessionID="+session+";path=/;HttpOnly")
		}
		fmt.Fprintf(w, "<response><SesInfo>%s</SesInfo><TokInfo>%s</TokInfo></response>", session, token)
		return
	case pathStateLogin:
		fmt.Fprint(w, "<response><State>-1</State><password_type>4</password_type></response>")
		return
	case pathBasicInfo:
		fmt.Fprint(w, "<response><devicename>E3372h-320</devicename></response>")
		return
	case pathLogin:
		d.serveLogin(w, r)
		return
	}

	if !d.authorized(r) || d.alwaysReject || d.rejectAuth > 0 {
		if d.rejectAuth > 0 {
			d.rejectAuth--
		}
		fmt.Fprint(w, "<error><code>125002</code><message></message></error>")
		return
	}

	switch r.URL.Path {
	case pathDeviceInfo:
		fmt.Fprintf(w, "<response><DeviceName>E3372</DeviceName><WanIPAddress>%s</WanIPAddress></response>", d.wanIP)
	case pathCurrentPLMN:
		fmt.Fprint(w, "<response><State>0</State><FullName>Telkomsel</FullName><ShortName>TSEL</ShortName></response>")
	case pathTrafficStats:
		fmt.Fprint(w, "<response><CurrentDownloadRate>100</CurrentDownloadRate><CurrentUploadRate>50</CurrentUploadRate>"+
			"<TotalDownload>1536</TotalDownload><TotalUpload>1048576</TotalUpload></response>")
	case pathSignal:
		fmt.Fprint(w, "<response><rssi>-71dBm</rssi><rsrp>-98dBm</rsrp><rsrq>-9.0dB</rsrq><sinr>12dB</sinr></response>")
	case pathMonthStats:
		fmt.Fprint(w, "<response><CurrentMonthDownload>1024</CurrentMonthDownload><CurrentMonthUpload>1024</CurrentMonthUpload></response>")
	case pathPLMNList:
		d.scanned = true
		if d.nextIP != "" {
			d.wanIP = d.nextIP
		}
		if d.plmnCode != "" {
			fmt.Fprintf(w, "<error><code>%s</code></error>", d.plmnCode)
			return
		}
		fmt.Fprint(w, "<response><Networks><Network><FullName>Telkomsel</FullName></Network>"+
			"<Network><FullName>Indosat</FullName></Network></Networks></response>")
	case pathDeviceControl:
		fmt.Fprint(w, "<response>OK</response>")
	default:
		http.NotFound(w, r)
	}
}

// authorized consumes the request token and checks the session cookie
func (d *fakeDevice) authorized(r *http.Request) bool {
	token := r.Header.Get(headerVerification)
	if !d.tokens[token] {
		return false
	}
	delete(d.tokens, token)
	c, err := r.Cookie(sessionCookieName)
	return err == nil && d.sessions[c.Value]
}

func (d *fakeDevice) serveLogin(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get(headerVerification)
	if !d.tokens[token] {
		fmt.Fprint(w, "<error><code>125003</code></error>")
		return
	}
	delete(d.tokens, token)

	code := d.loginCode
	if d.scanned && d.loginCodeAfterScan != "" {
		code = d.loginCodeAfterScan
	}
	if code != "" {
		if code == codeTooManyAttempts {
			fmt.Fprintf(w, "<error><code>%s</code><waittime>5</waittime></error>", code)
			return
		}
		fmt.Fprintf(w, "<error><code>%s</code></error>", code)
		return
	}

	raw, _ := io.ReadAll(r.Body)
	var req loginRequest
	if err := xml.Unmarshal(raw, &req); err != nil || req.Username != d.username ||
		req.Password != EncodePassword(d.username, d.password, token) {
		fmt.Fprint(w, "<error><code>108006</code></error>")
		return
	}

	d.logins++
	session := fmt.Sprintf("auth-%d", d.logins)
	d.sessions[session] = true
	w.Header().Set("Set-Cookie", "SessionID="+session+";path=/")
	w.Header().Set(headerVerification, fmt.Sprintf("login-tok-%d", d.logins))
	fmt.Fprint(w, "<response>OK</response>")
}

// recordingHistory is an in-memory HistoryStore
type recordingHistory struct {
	mu      sync.Mutex
	changes []model.LastChange
}

func (h *recordingHistory) RecordIPChange(_ context.Context, _ int64, wanIP, timestamp string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.changes = append(h.changes, model.LastChange{IP: wanIP, Timestamp: timestamp})
	return nil
}

func (h *recordingHistory) GetLastChange(context.Context, int64) (model.LastChange, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.changes) == 0 {
		return model.LastChange{}, nil
	}
	return h.changes[len(h.changes)-1], nil
}

func newTestClient(history HistoryStore) *Client {
	return New(Config{
		History:        history,
		RequestTimeout: 2 * time.Second,
		ScanTimeout:    2 * time.Second,
		ProbeTimeout:   time.Second,
		TestTimeout:    time.Second,
		SettleDelay:    10 * time.Millisecond,
		Now:            func() time.Time { return time.Date(2024, 3, 5, 14, 7, 9, 0, time.Local) },
	})
}

// closedAddr returns an address nothing listens on
func closedAddr(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := strings.TrimPrefix(srv.URL, "http://")
	srv.Close()
	return addr
}
