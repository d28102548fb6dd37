package hilink

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// device API paths
const (
	pathSesTokInfo     = "/api/webserver/SesTokInfo"
	pathStateLogin     = "/api/user/state-login"
	pathLogin          = "/api/user/login"
	pathDeviceInfo     = "/api/device/information"
	pathBasicInfo      = "/api/device/basic_information"
	pathDeviceControl  = "/api/device/control"
	pathSignal         = "/api/device/signal"
	pathCurrentPLMN    = "/api/net/current-plmn"
	pathPLMNList       = "/api/net/plmn-list"
	pathTrafficStats   = "/api/monitoring/traffic-statistics"
	pathMonthStats     = "/api/monitoring/month_statistics"
	headerVerification = "__RequestVerificationToken"
	sessionCookieName  = "SessionID"
	okMarker           = "OK"
)

// transport issues raw HTTP calls to a device. It never keeps cookies between calls;
// every request carries exactly the session it is given.
type transport struct {
	http *resty.Client
}

func newTransport(hc *http.Client) *transport {
	var rc *resty.Client
	if hc != nil {
		rc = resty.NewWithClient(hc)
	} else {
		rc = resty.New()
	}
	rc.SetCookieJar(nil).
		SetRedirectPolicy(resty.NoRedirectPolicy()).
		SetHeader("Accept", "*/*")
	return &transport{http: rc}
}

func baseURL(host string) string {
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return strings.TrimRight(host, "/")
	}
	return "http://" + strings.TrimRight(host, "/")
}

// request prepares a call bound to ctx. cookie and token may be empty.
func (t *transport) request(ctx context.Context, cookie, token string) *resty.Request {
	req := t.http.R().SetContext(ctx)
	if cookie != "" {
		req.SetHeader("Cookie", cookie)
	}
	if token != "" {
		req.SetHeaderVerbatim(headerVerification, token)
	}
	return req
}

// do runs call with a per-call timeout and maps transport failures to ErrDeviceUnreachable.
// Device-level HTTP status codes are not errors; HiLink reports failures in the body.
func (t *transport) do(ctx context.Context, timeout time.Duration, host, path string,
	call func(ctx context.Context, url string) (*resty.Response, error)) (*resty.Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := call(callCtx, baseURL(host)+path)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s%s: %v", ErrDeviceUnreachable, host, path, err)
	}
	return resp, nil
}

// sessionFromCookies returns "SessionID=<v>" from Set-Cookie headers, "" if absent
func sessionFromCookies(resp *resty.Response) string {
	for _, c := range resp.Cookies() {
		if c.Name == sessionCookieName && c.Value != "" {
			return sessionCookieName + "=" + c.Value
		}
	}
	return ""
}

// normalizeSession puts a SesInfo value into cookie form
func normalizeSession(sesInfo string) string {
	if sesInfo == "" {
		return ""
	}
	if strings.Contains(sesInfo, sessionCookieName+"=") {
		return sesInfo
	}
	return sessionCookieName + "=" + sesInfo
}

// errorCode returns the <code> of an <error> body and whether the body is an error
func errorCode(body string) (string, bool) {
	if !strings.Contains(body, "<error>") && !strings.Contains(body, "<error ") {
		return "", false
	}
	return Field(body, "code"), true
}

func isOK(body string) bool {
	return Field(body, "response") == okMarker
}
