package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"creditetl/internal/config"
	"creditetl/internal/job"
	"creditetl/internal/logging"
	"creditetl/internal/metrics"
	"creditetl/internal/metrics/datadog"
	"creditetl/internal/metrics/prompush"

	// register all backends with the storage factory.
	// the connection registry decides which one a run uses.
	_ "creditetl/internal/storage/all"
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stderr))
}

// execute runs the job for argv and returns the process exit code.
func execute(argv []string, stderr io.Writer) int {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(stderr, "load .env: %v\n", err)
		return 1
	}

	opts, rest, err := job.ResolveOptions(argv, "JOB_NAME")
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}

	fs := flag.NewFlagSet("creditetl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfgPath := fs.String("config", "configs/jobs/credit_risk.json", "job config JSON path")
	backendFlg := fs.String("metrics-backend", "", "metrics backend: pushgateway, datadog or none (overrides env METRICS_BACKEND)")
	gwURLFlg := fs.String("pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	ddAddrFlg := fs.String("datadog-addr", "", "DogStatsD address (overrides env DD_AGENT_ADDR)")
	validate := fs.Bool("validate", false, "validate the configuration and exit")
	verbose := fs.Bool("v", false, "enable verbose logs")
	if err := fs.Parse(rest); err != nil {
		return 2
	}

	log, err := logging.FromEnv(*verbose)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	defer log.Sync() //nolint:errcheck

	j, err := config.Load(*cfgPath)
	if err != nil {
		log.Error("config: load failed", zap.String("path", *cfgPath), zap.Error(err))
		return 1
	}
	config.ApplyEnv(&j)

	issues := config.ValidateJob(j)
	for _, iss := range issues {
		fmt.Fprintf(stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		log.Error("config: invalid", zap.String("path", *cfgPath))
		return 1
	}
	if *validate {
		log.Info("config: valid", zap.String("path", *cfgPath))
		return 0
	}

	run := job.Init(opts["JOB_NAME"], opts, log)

	flush := setupMetrics(metricsSettings{
		backend:     pick(*backendFlg, os.Getenv("METRICS_BACKEND")),
		gatewayURL:  pick(*gwURLFlg, os.Getenv("PUSHGATEWAY_URL"), "http://localhost:9091"),
		datadogAddr: pick(*ddAddrFlg, os.Getenv("DD_AGENT_ADDR"), "localhost:8125"),
		jobName:     run.Name,
	}, run.Logger())
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runJob(ctx, j, run); err != nil {
		run.Logger().Error("job: failed", zap.Error(err))
		return 1
	}
	run.Commit()
	return 0
}

type metricsSettings struct {
	backend     string
	gatewayURL  string
	datadogAddr string
	jobName     string
}

// setupMetrics installs the selected backend and returns its flush func.
// A backend that cannot be created leaves the nop backend in place.
func setupMetrics(s metricsSettings, log *zap.Logger) func() {
	flush := func() {
		if err := metrics.Flush(); err != nil {
			log.Warn("metrics: flush error", zap.Error(err))
		}
	}
	switch s.backend {
	case "pushgateway":
		b, err := prompush.NewBackend(s.jobName, s.gatewayURL)
		if err != nil {
			log.Warn("metrics: failed to init prom push backend; using nop", zap.Error(err))
			return func() {}
		}
		log.Info("metrics: enabled", zap.String("backend", s.backend), zap.String("url", s.gatewayURL), zap.String("job_name", s.jobName))
		metrics.SetBackend(b)
		return flush
	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       s.datadogAddr,
			Namespace:  "creditetl.",
			GlobalTags: []string{"job:" + s.jobName},
		})
		if err != nil {
			log.Warn("metrics: failed to init datadog backend; using nop", zap.Error(err))
			return func() {}
		}
		log.Info("metrics: enabled", zap.String("backend", s.backend), zap.String("addr", s.datadogAddr))
		metrics.SetBackend(b)
		return flush
	case "", "none":
		log.Debug("metrics: disabled")
	default:
		log.Warn("metrics: unknown backend; metrics disabled", zap.String("backend", s.backend))
	}
	return func() {}
}

// pick returns the first non-empty value.
func pick(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
