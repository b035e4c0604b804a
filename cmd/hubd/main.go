// Command hubd is the write hub's entrypoint: it loads configuration,
// wires the selected driver, and serves the write and read HTTP
// surfaces of §6. Flag parsing here is the minimum needed to select a
// config file and, for local development, override the driver kind —
// everything else (CLI subcommands, docker orchestration) is out of
// scope per §1/SPEC_FULL.md §C.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/zaharov-labs/stackhub/config"
	"github.com/zaharov-labs/stackhub/driver"
	"github.com/zaharov-labs/stackhub/driver/azuredriver"
	"github.com/zaharov-labs/stackhub/driver/diskdriver"
	"github.com/zaharov-labs/stackhub/driver/gcsdriver"
	"github.com/zaharov-labs/stackhub/driver/memdriver"
	"github.com/zaharov-labs/stackhub/driver/s3driver"
	"github.com/zaharov-labs/stackhub/httpapi"
	"github.com/zaharov-labs/stackhub/hub"
	"github.com/zaharov-labs/stackhub/hubtoken"
	"github.com/zaharov-labs/stackhub/metrics"
	"github.com/zaharov-labs/stackhub/proofchecker"
	"github.com/zaharov-labs/stackhub/readgw"
	"github.com/zaharov-labs/stackhub/revocation"
	"github.com/zaharov-labs/stackhub/upload"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", os.Getenv("HUBSTORE_CONFIG"), "path to the hub's JSON config file")
	readPort := flag.String("read-port", "3001", "port for the read gateway")
	metricsPort := flag.String("metrics-port", "9100", "port for the Prometheus /metrics endpoint")
	driverKind := flag.String("driver", "", "override the config file's driver kind (disk, s3, azure, gcs, memory)")
	flag.Parse()

	log := newLogger()

	if *configPath == "" {
		log.Error("missing -config (or HUBSTORE_CONFIG)")
		return 1
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Error("failed to load config")
		return 1
	}
	if *driverKind != "" {
		cfg.Driver.Kind = config.DriverKind(*driverKind)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	drv, err := buildDriver(ctx, cfg)
	if err != nil {
		log.WithError(err).Error("failed to construct driver")
		return 1
	}
	if err := drv.EnsureInitialized(ctx); err != nil {
		log.WithError(err).Error("driver initialization failed")
		return 1
	}
	defer drv.Dispose(context.Background())

	clock, err := revocation.New(drv, cfg.RevocationCacheSize)
	if err != nil {
		log.WithError(err).Error("failed to construct revocation clock")
		return 1
	}

	verifier := hubtoken.NewVerifier(hubtoken.Config{
		ServerName:           cfg.ServerName,
		ValidHubURLs:         cfg.ValidHubURLs,
		RequireCorrectHubURL: cfg.RequireCorrectHubURL,
		Whitelist:            cfg.WhitelistSet(),
	}, clock)

	var checker proofchecker.Checker = proofchecker.AllowAll{}
	if cfg.ProofCheckerURL != "" {
		checker = proofchecker.NewHTTPChecker(cfg.ProofCheckerURL)
	}

	pipeline := &upload.Pipeline{
		Driver:                 drv,
		ProofChecker:           checker,
		MaxFileUploadSizeBytes: cfg.MaxFileUploadSizeBytes,
		ReadURLPrefix:          cfg.ReadURLPrefix,
	}

	h := hub.New(hub.Config{
		ServerName:             cfg.ServerName,
		ReadURLPrefix:          cfg.ReadURLPrefix,
		RequireCorrectHubURL:   cfg.RequireCorrectHubURL,
		ValidHubURLs:           cfg.ValidHubURLs,
		Whitelist:              cfg.WhitelistSet(),
		MaxFileUploadSizeBytes: cfg.MaxFileUploadSizeBytes,
		ListPageSize:           cfg.ListPageSize,
	}, drv, verifier, clock, pipeline, log)

	reg := metrics.New(prometheus.DefaultRegisterer)

	writeSrv := &http.Server{Addr: ":" + cfg.Port, Handler: httpapi.New(h, log, reg)}
	readSrv := &http.Server{Addr: ":" + *readPort, Handler: readgw.New(drv, log, reg)}
	metricsSrv := &http.Server{Addr: ":" + *metricsPort, Handler: promhttp.Handler()}

	errs := make(chan error, 3)
	go func() { errs <- serve(writeSrv, "write hub", log) }()
	go func() { errs <- serve(readSrv, "read gateway", log) }()
	go func() { errs <- serve(metricsSrv, "metrics", log) }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errs:
		log.WithError(err).Error("server exited unexpectedly")
		return 1
	case <-sig:
		log.Info("shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = writeSrv.Shutdown(shutdownCtx)
	_ = readSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
	return 0
}

func serve(srv *http.Server, name string, log *logrus.Logger) error {
	log.WithField("addr", srv.Addr).Infof("%s listening", name)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.InfoLevel)
	return log
}

func buildDriver(ctx context.Context, cfg config.Config) (driver.Driver, error) {
	switch cfg.Driver.Kind {
	case config.DriverDisk:
		return diskdriver.New(cfg.Driver.RootDir, cfg.ReadURLPrefix, cfg.ListPageSize), nil
	case config.DriverS3:
		return s3driver.New(s3driver.Config{
			Bucket:         cfg.Driver.S3Bucket,
			Region:         cfg.Driver.S3Region,
			Endpoint:       cfg.Driver.S3Endpoint,
			AccessKey:      cfg.Driver.S3AccessKey,
			SecretKey:      cfg.Driver.S3SecretKey,
			ForcePathStyle: cfg.Driver.S3ForcePathStyle,
			ReadURLPrefix:  cfg.Driver.ReadURLPrefix,
			PageSize:       cfg.ListPageSize,
		})
	case config.DriverAzure:
		return azuredriver.New(azuredriver.Config{
			AccountName:   cfg.Driver.AzureAccount,
			AccountKey:    cfg.Driver.AzureKey,
			Container:     cfg.Driver.AzureContainer,
			ReadURLPrefix: cfg.Driver.ReadURLPrefix,
			PageSize:      cfg.ListPageSize,
		})
	case config.DriverGCS:
		return gcsdriver.New(ctx, gcsdriver.Config{
			Bucket:          cfg.Driver.GCSBucket,
			CredentialsFile: cfg.Driver.GCSCredentialsFile,
			ReadURLPrefix:   cfg.Driver.ReadURLPrefix,
			PageSize:        cfg.ListPageSize,
		})
	case config.DriverMemory:
		return memdriver.New(cfg.ReadURLPrefix, cfg.ListPageSize), nil
	default:
		return nil, fmt.Errorf("unknown driver kind %q", cfg.Driver.Kind)
	}
}
