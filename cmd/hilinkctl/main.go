package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"

	"github.com/ebobo/hilink_prod_go/pkg/hilink"
	"github.com/ebobo/hilink_prod_go/pkg/logger"
	"github.com/ebobo/hilink_prod_go/pkg/model"
	"github.com/ebobo/hilink_prod_go/pkg/utility"
)

// the CLI drives one modem as a single local user
const cliUser int64 = 1

var opt struct {
	IP          string        `long:"ip" env:"MODEM_IP" default:"192.168.8.1" description:"modem address"`
	Username    string        `short:"u" long:"username" env:"MODEM_USERNAME" default:"admin" description:"modem username"`
	Password    string        `short:"p" long:"password" env:"MODEM_PASSWORD" description:"modem password"`
	LogLevel    string        `long:"log-level" env:"LOG_LEVEL" default:"warn" description:"debug, info, warn or error"`
	SettleDelay time.Duration `long:"settle-delay" env:"SETTLE_DELAY" default:"15s" description:"wait after a network scan before logging in again"`
	JSON        bool          `long:"json" description:"print results as JSON"`
}

var client *hilink.Client

type ipCommand struct{}
type tokenCommand struct{}
type loginCommand struct{}
type infoCommand struct{}
type changeCommand struct{}
type statusCommand struct{}
type detectCommand struct{}
type rebootCommand struct{}

func main() {
	_ = godotenv.Load()

	parser := flags.NewParser(&opt, flags.Default)
	parser.AddCommand("ip", "Show WAN IP", "Log in and print the device name and WAN IP address.", &ipCommand{})
	parser.AddCommand("token", "Show session and token", "Print the unauthenticated session cookie and verification token.", &tokenCommand{})
	parser.AddCommand("login", "Test login", "Log in with the configured credentials.", &loginCommand{})
	parser.AddCommand("info", "Show detailed info", "Print device, network, signal and traffic information.", &infoCommand{})
	parser.AddCommand("change", "Change WAN IP", "Rotate the WAN IP with a network scan and re-login.", &changeCommand{})
	parser.AddCommand("status", "Show connection status", "Report whether the modem answers and its WAN IP.", &statusCommand{})
	parser.AddCommand("detect", "Find a modem", "Probe common gateway addresses for a HiLink device.", &detectCommand{})
	parser.AddCommand("reboot", "Reboot modem", "Log in and ask the modem to restart.", &rebootCommand{})
	parser.CommandHandler = func(cmd flags.Commander, args []string) error {
		lg, err := logger.New(opt.LogLevel)
		if err != nil {
			return err
		}
		defer lg.Sync()
		client = hilink.New(hilink.Config{Logger: lg, SettleDelay: opt.SettleDelay})
		return cmd.Execute(args)
	}

	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}

func modemConfig() (model.ModemConfig, error) {
	cfg := model.ModemConfig{IP: opt.IP, Username: opt.Username, Password: opt.Password}
	return cfg, cfg.Validate()
}

func interruptible() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func output(v interface{}, text string) error {
	if opt.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	fmt.Println(text)
	return nil
}

func (ipCommand) Execute([]string) error {
	cfg, err := modemConfig()
	if err != nil {
		return err
	}
	ctx, cancel := interruptible()
	defer cancel()

	info := client.WANInfo(ctx, cfg, cliUser)
	return output(info, fmt.Sprintf("%s: %s", info.Name, info.WanIP))
}

func (tokenCommand) Execute([]string) error {
	ctx, cancel := interruptible()
	defer cancel()

	hs, err := client.Handshake(ctx, opt.IP)
	if err != nil {
		return err
	}
	token, err := hs.Token.Use()
	if err != nil {
		return err
	}
	out := map[string]string{"session": hs.Session, "token": token}
	return output(out, fmt.Sprintf("session: %s\ntoken:   %s", hs.Session, token))
}

func (loginCommand) Execute([]string) error {
	cfg, err := modemConfig()
	if err != nil {
		return err
	}
	ctx, cancel := interruptible()
	defer cancel()

	if err := client.Login(ctx, cfg, cliUser); err != nil {
		return err
	}
	return output(map[string]bool{"logged_in": true}, "login ok")
}

func (infoCommand) Execute([]string) error {
	cfg, err := modemConfig()
	if err != nil {
		return err
	}
	ctx, cancel := interruptible()
	defer cancel()

	d := client.DetailedInfo(ctx, cfg, cliUser)
	text := fmt.Sprintf("device:     %s\nwan ip:     %s\nprovider:   %s\nsignal:     %s (%s)\ndownloaded: %s\nuploaded:   %s\nthis month: %s",
		d.DeviceName, d.WanIP, d.Provider, d.SignalStrength, d.RSSI, d.TotalDownload, d.TotalUpload, d.MonthUsage)
	return output(d, text)
}

func (changeCommand) Execute([]string) error {
	cfg, err := modemConfig()
	if err != nil {
		return err
	}
	ctx, cancel := interruptible()
	defer cancel()

	started := time.Now()
	info, err := client.ChangeIP(ctx, cfg, cliUser)
	if err != nil {
		var ipErr *hilink.IPChangeError
		if errors.As(err, &ipErr) && ipErr.LastIP != "" {
			fmt.Fprintf(os.Stderr, "last known ip: %s\n", ipErr.LastIP)
		}
		return err
	}
	return output(info, fmt.Sprintf("new ip: %s (%s, took %s)", info.WanIP, info.Timestamp, time.Since(started).Round(time.Second)))
}

func (statusCommand) Execute([]string) error {
	cfg, err := modemConfig()
	if err != nil {
		return err
	}
	ctx, cancel := interruptible()
	defer cancel()

	connected := client.CheckConnection(ctx, cfg)
	info := client.WANInfo(ctx, cfg, cliUser)
	out := map[string]interface{}{
		"connected": connected,
		"name":      info.Name,
		"wan_ip":    info.WanIP,
		"checked":   utility.FormatTimestamp(time.Now()),
	}
	state := "disconnected"
	if connected {
		state = "connected"
	}
	return output(out, fmt.Sprintf("%s %s: %s", state, info.Name, info.WanIP))
}

func (detectCommand) Execute([]string) error {
	ctx, cancel := interruptible()
	defer cancel()

	found, err := client.AutoDetect(ctx)
	if err != nil {
		return err
	}
	return output(found, fmt.Sprintf("found %s at %s", found.DeviceName, found.IP))
}

func (rebootCommand) Execute([]string) error {
	cfg, err := modemConfig()
	if err != nil {
		return err
	}
	ctx, cancel := interruptible()
	defer cancel()

	if err := client.Reboot(ctx, cfg, cliUser); err != nil {
		return err
	}
	return output(map[string]bool{"rebooting": true}, "rebooting")
}
