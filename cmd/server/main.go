package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/ebobo/hilink_prod_go/pkg/hilink"
	"github.com/ebobo/hilink_prod_go/pkg/logger"
	"github.com/ebobo/hilink_prod_go/pkg/metrics"
	"github.com/ebobo/hilink_prod_go/pkg/server"
	sqlitestore "github.com/ebobo/hilink_prod_go/pkg/store/sqlite"
	"github.com/ebobo/hilink_prod_go/pkg/utility"
)

var opt struct {
	HTTPAddr       string        `short:"h" long:"http-addr" env:"HTTP_ADDR" default:":9090" description:"http listen address" required:"yes"`
	SqliteFile     string        `long:"sqlite-file" env:"SQLITE_FILE" default:"data/hilink.db" description:"sqlite file"`
	SecretKey      string        `long:"secret-key" env:"SECRET_KEY" description:"secret used to seal stored modem passwords" required:"yes"`
	LogLevel       string        `long:"log-level" env:"LOG_LEVEL" default:"info" description:"debug, info, warn or error"`
	SettleDelay    time.Duration `long:"settle-delay" env:"SETTLE_DELAY" default:"15s" description:"wait after a network scan before logging in again"`
	ScanTimeout    time.Duration `long:"scan-timeout" env:"SCAN_TIMEOUT" default:"2m" description:"timeout for the network scan"`
	RequestTimeout time.Duration `long:"request-timeout" env:"REQUEST_TIMEOUT" default:"8s" description:"timeout for ordinary device requests"`
	InfoTimeout    time.Duration `long:"info-timeout" env:"INFO_TIMEOUT" default:"5s" description:"time before the info endpoint answers with a placeholder"`
}

func main() {
	// a missing .env is fine
	_ = godotenv.Load()

	_, err := flags.ParseArgs(&opt, os.Args)
	if err != nil {
		log.Fatalf("error parsing flags: %v", err)
	}

	lg, err := logger.New(opt.LogLevel, zap.String("service", "hilink"))
	if err != nil {
		log.Fatalf("error creating logger: %v", err)
	}
	defer lg.Sync()

	if err := utility.MakeParentDir(opt.SqliteFile); err != nil {
		lg.Fatal("error creating data directory", zap.Error(err))
	}

	db, created, err := sqlitestore.New(opt.SqliteFile, opt.SecretKey, lg.Named("store"))
	if err != nil {
		lg.Fatal("error connect to sqlite", zap.Error(err))
	}
	if !created {
		lg.Info("db already exists", zap.String("file", opt.SqliteFile))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	modem := hilink.New(hilink.Config{
		Sessions:       hilink.NewRegistry(),
		History:        db,
		Logger:         lg.Named("hilink"),
		Metrics:        m,
		RequestTimeout: opt.RequestTimeout,
		ScanTimeout:    opt.ScanTimeout,
		SettleDelay:    opt.SettleDelay,
	})

	server := server.New(server.Config{
		HTTPListenAddr: opt.HTTPAddr,
		Store:          db,
		Modem:          modem,
		Logger:         lg.Named("server"),
		Metrics:        m,
		Gatherer:       reg,
		InfoTimeout:    opt.InfoTimeout,
	})

	e := server.Start()
	if e != nil {
		lg.Fatal("error starting server", zap.Error(e))
	}

	// Block forever
	// Capture Ctrl-C
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	server.Shutdown()
	if err := db.Close(); err != nil {
		lg.Error("error closing database", zap.Error(err))
	}
}
