package hilink

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebobo/hilink_prod_go/pkg/model"
)

func TestChangeIP(t *testing.T) {
	d := newFakeDevice()
	d.nextIP = "10.20.30.99"
	host := d.start(t)
	history := &recordingHistory{}
	c := newTestClient(history)

	info, err := c.ChangeIP(context.Background(), d.config(host), 1)
	require.NoError(t, err)
	assert.Equal(t, "E3372", info.Name)
	assert.Equal(t, "10.20.30.99", info.WanIP)
	assert.Equal(t, "05-03-2024, 14:07:09", info.Timestamp)

	// old ip read, clean login before the scan, clean login after it
	assert.Equal(t, 3, d.loginCount())
	assert.Equal(t, 1, d.count(pathPLMNList))
	assert.Equal(t, []model.LastChange{{IP: "10.20.30.99", Timestamp: "05-03-2024, 14:07:09"}}, history.changes)
	assert.True(t, c.Sessions().Get(1).Valid())
}

func TestChangeIPSameAddress(t *testing.T) {
	d := newFakeDevice()
	host := d.start(t)
	c := newTestClient(&recordingHistory{})

	info, err := c.ChangeIP(context.Background(), d.config(host), 1)
	require.NoError(t, err)
	assert.Equal(t, "10.20.30.40", info.WanIP)
}

func TestChangeIPScanDeviceErrorContinues(t *testing.T) {
	d := newFakeDevice()
	d.plmnCode = "9003"
	d.nextIP = "10.20.30.77"
	host := d.start(t)
	c := newTestClient(nil)

	info, err := c.ChangeIP(context.Background(), d.config(host), 1)
	require.NoError(t, err)
	assert.Equal(t, "10.20.30.77", info.WanIP)
}

func TestChangeIPScanAuthErrorContinues(t *testing.T) {
	for _, code := range []string{codeTokenInvalid, codeSessionIDInvalid, codeNoRights} {
		d := newFakeDevice()
		d.plmnCode = code
		d.nextIP = "10.20.30.77"
		host := d.start(t)
		c := newTestClient(nil)

		info, err := c.ChangeIP(context.Background(), d.config(host), 1)
		require.NoError(t, err, code)
		assert.Equal(t, "10.20.30.77", info.WanIP, code)
		assert.Equal(t, 1, d.count(pathPLMNList), "scan is sent once for %s", code)
		assert.Equal(t, 3, d.loginCount(), code)
	}
}

func TestChangeIPReloginFails(t *testing.T) {
	d := newFakeDevice()
	d.nextIP = "10.20.30.99"
	d.loginCodeAfterScan = codeWrongPassword
	host := d.start(t)
	history := &recordingHistory{}
	c := newTestClient(history)

	_, err := c.ChangeIP(context.Background(), d.config(host), 1)
	require.ErrorIs(t, err, ErrIPChangeFailed)
	assert.ErrorIs(t, err, ErrAuthFailed)

	var ipErr *IPChangeError
	require.ErrorAs(t, err, &ipErr)
	assert.Equal(t, stepRelogin, ipErr.Step)
	assert.Equal(t, "10.20.30.40", ipErr.LastIP)
	assert.Empty(t, history.changes)
}

func TestChangeIPLoginFails(t *testing.T) {
	d := newFakeDevice()
	d.loginCode = codeWrongUsername
	host := d.start(t)
	c := newTestClient(nil)

	_, err := c.ChangeIP(context.Background(), d.config(host), 1)
	var ipErr *IPChangeError
	require.ErrorAs(t, err, &ipErr)
	assert.Equal(t, stepLogin, ipErr.Step)
	assert.Empty(t, ipErr.LastIP)
	assert.Equal(t, 0, d.count(pathPLMNList))
}

func TestChangeIPUnreachable(t *testing.T) {
	c := newTestClient(nil)
	_, err := c.ChangeIP(context.Background(), model.ModemConfig{IP: closedAddr(t), Username: "admin", Password: "x"}, 1)
	assert.ErrorIs(t, err, ErrIPChangeFailed)
	assert.ErrorIs(t, err, ErrDeviceUnreachable)
}

func TestChangeIPCancelledWhileSettling(t *testing.T) {
	d := newFakeDevice()
	host := d.start(t)
	c := New(Config{SettleDelay: time.Minute, RequestTimeout: 2 * time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	started := time.Now()
	_, err := c.ChangeIP(ctx, d.config(host), 1)
	assert.Less(t, time.Since(started), 10*time.Second)

	var ipErr *IPChangeError
	require.ErrorAs(t, err, &ipErr)
	assert.Equal(t, stepSettle, ipErr.Step)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestChangeIPHoldsUserFlow(t *testing.T) {
	d := newFakeDevice()
	host := d.start(t)
	c := New(Config{SettleDelay: 300 * time.Millisecond})
	cfg := d.config(host)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := c.ChangeIP(context.Background(), cfg, 1)
		assert.NoError(t, err)
	}()

	// wait until the rotation is in its settle delay
	require.Eventually(t, func() bool { return d.count(pathPLMNList) == 1 }, 5*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.EnsureLoggedIn(ctx, cfg, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded, "same user waits for the rotation")

	// another user is not blocked
	ok, err := c.EnsureLoggedIn(context.Background(), cfg, 2)
	assert.NoError(t, err)
	assert.True(t, ok)

	<-done
}
