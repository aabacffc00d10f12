package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/BYTE-6D65/driftsync/pkg/adapter"
	"github.com/BYTE-6D65/driftsync/pkg/emitter"
	"github.com/BYTE-6D65/driftsync/pkg/engine"
	"github.com/BYTE-6D65/driftsync/pkg/event"
	"github.com/BYTE-6D65/driftsync/pkg/logging"
	"github.com/BYTE-6D65/driftsync/pkg/registry"
	"github.com/BYTE-6D65/driftsync/pkg/telemetry"
	"github.com/BYTE-6D65/driftsync/pkg/testdata"
)

const version = "0.1.0"

func main() {
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "run":
		err = runCmd(ctx, args)
	case "simulate":
		err = simulateCmd(args)
	case "inspect":
		err = inspectCmd(args)
	case "version":
		fmt.Printf("driftsync v%s\n", version)
		fmt.Printf("Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	case "help", "-h", "--help":
		usage()
	default:
		log.Fatalf("ERROR: unknown command %q (try 'driftsync help')", cmd)
	}
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatalf("ERROR: %v", err)
	}
}

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

type runOptions struct {
	configPath string
	envFile    string
	base       string
	receiver   string
	inputs     stringList
	outDir     string
	all        bool
	margin     time.Duration
	workers    int
	noVerify   bool
	logLevel   string
	logFile    string
	quiet      bool
	metricsOut string
}

func parseRunFlags(args []string) (*runOptions, error) {
	o := &runOptions{}
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.StringVar(&o.configPath, "config", "", "YAML configuration file")
	fs.StringVar(&o.envFile, "env-file", ".env", "dotenv file with DRIFTSYNC_* variables")
	fs.StringVar(&o.base, "base", "", "base receiver id")
	fs.StringVar(&o.receiver, "receiver", "", "receiver id to synchronize")
	fs.Var(&o.inputs, "input", "detection file, .csv or .json; integer timestamps are Unix ns (repeatable)")
	fs.StringVar(&o.outDir, "out-dir", "out", "directory for timeline and artifact files")
	fs.BoolVar(&o.all, "all", false, "synchronize every registered receiver onto the base")
	fs.DurationVar(&o.margin, "margin", 0, "matching time margin")
	fs.IntVar(&o.workers, "workers", -1, "segment fitting workers (0 = NumCPU)")
	fs.BoolVar(&o.noVerify, "no-verify", false, "skip the verification pass")
	fs.StringVar(&o.logLevel, "log-level", "", "DEBUG, INFO, WARN or ERROR")
	fs.StringVar(&o.logFile, "log-file", "", "append log lines to this file")
	fs.BoolVar(&o.quiet, "quiet", false, "only log errors")
	fs.StringVar(&o.metricsOut, "metrics-out", "", "write Prometheus text metrics to this file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if len(o.inputs) == 0 {
		o.inputs = fs.Args()
	}
	if len(o.inputs) == 0 {
		return nil, errors.New("run: at least one --input is required")
	}
	return o, nil
}

// config layers flags over file and environment.
func (o *runOptions) config() (engine.Config, error) {
	if err := engine.LoadDotEnv(o.envFile); err != nil {
		return engine.Config{}, err
	}
	cfg, err := engine.LoadConfig(o.configPath)
	if err != nil {
		return cfg, err
	}
	if o.base != "" {
		cfg.BaseReceiver = o.base
	}
	if o.receiver != "" {
		cfg.Receiver = o.receiver
	}
	if o.margin > 0 {
		cfg.Match.TimeMargin = o.margin
	}
	if o.workers >= 0 {
		cfg.Workers = o.workers
	}
	if o.noVerify {
		cfg.Verify = false
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	return cfg, nil
}

func runCmd(ctx context.Context, args []string) error {
	opts, err := parseRunFlags(args)
	if err != nil {
		return err
	}
	cfg, err := opts.config()
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := logging.New(logging.Options{Level: level, Quiet: opts.quiet, File: opts.logFile})
	defer logger.Close()
	logger.Info("configuration:\n%s", cfg.String())

	reg := prometheus.NewRegistry()
	metrics := telemetry.InitMetrics(reg)
	diags := event.NewDiagnosticLog(0)
	recorder := engine.NewRunRecorder(0)
	newEngine := func(c engine.Config) *engine.Engine {
		return engine.New(c,
			engine.WithLogger(logger),
			engine.WithMetrics(metrics),
			engine.WithDiagnostics(diags),
			engine.WithRecorder(recorder),
		)
	}

	loader := engine.NewAdapterManager(newEngine(cfg))
	for _, path := range opts.inputs {
		if err := loader.Register(sourceFor(path)); err != nil {
			return err
		}
	}
	logs, err := loader.Logs(ctx)
	if err != nil {
		return err
	}

	receivers := []string{cfg.Receiver}
	if opts.all {
		network, err := registry.NewNetwork(cfg.Network...)
		if err != nil {
			return err
		}
		if receivers, err = network.PairsFor(cfg.BaseReceiver); err != nil {
			return err
		}
	}

	var failed []error
	for _, rec := range receivers {
		job := jobConfig(cfg, rec, opts.all)
		if err := syncPair(ctx, newEngine(job), logs, opts.outDir); err != nil {
			logger.Error("%s: %v", rec, err)
			failed = append(failed, fmt.Errorf("%s: %w", rec, err))
			if ctx.Err() != nil {
				break
			}
		}
	}

	if opts.all {
		if err := recorder.Dump(os.Stdout); err != nil {
			return err
		}
	}
	if opts.metricsOut != "" {
		if err := telemetry.WriteTextFile(opts.metricsOut, reg); err != nil {
			return err
		}
	}
	return errors.Join(failed...)
}

// jobConfig derives the configuration of one pairwise job. Batch jobs
// always take both transmitters from the network.
func jobConfig(cfg engine.Config, receiver string, batch bool) engine.Config {
	cfg.Receiver = receiver
	cfg.Channels = slices.Clone(cfg.Channels)
	if batch {
		for i := range cfg.Channels {
			cfg.Channels[i].Transmitter = ""
		}
	}
	return cfg
}

func syncPair(ctx context.Context, eng *engine.Engine, logs map[string]event.Log, outDir string) error {
	cfg := eng.Config()
	base, ok := logs[cfg.BaseReceiver]
	if !ok {
		return fmt.Errorf("no detections from base %s", cfg.BaseReceiver)
	}
	rec, ok := logs[cfg.Receiver]
	if !ok {
		return fmt.Errorf("no detections from receiver %s", cfg.Receiver)
	}

	res, err := eng.Run(ctx, base, rec)
	if err != nil {
		return err
	}

	out := engine.NewEmitterManager(eng)
	defer out.Close()
	stem := filepath.Join(outDir, fmt.Sprintf("%s_%s", cfg.Receiver, cfg.BaseReceiver))
	if err := out.Register(emitter.NewCSVTimelineEmitter(stem + "_timeline.csv")); err != nil {
		return err
	}
	if err := out.Register(emitter.NewJSONArtifactEmitter(stem + "_artifacts.json")); err != nil {
		return err
	}
	if err := out.Emit(ctx, res.Artifacts(&cfg)); err != nil {
		return err
	}

	stats := res.Stats()
	fmt.Printf("%s -> %s: %d rows (%d direct, %d interpolated, %d missing) in %v\n",
		cfg.Receiver, cfg.BaseReceiver, stats.Rows, stats.Direct, stats.Interpolated, stats.Missing, res.Elapsed)
	for _, v := range res.Verification {
		fmt.Printf("  verify %-10s matched=%d mean=%+.6fs std=%.6fs\n", v.Channel, v.Matched, v.Mean, v.Std)
	}
	return nil
}

// sourceFor picks an input adapter from the file extension.
func sourceFor(path string) adapter.Source {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return adapter.NewJSONSource(path)
	}
	return adapter.NewCSVSource(path)
}

func simulateCmd(args []string) error {
	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	out := fs.String("out", "detections.csv", "output detection CSV")
	configOut := fs.String("config-out", "", "write a matching YAML configuration")
	list := fs.Bool("list", false, "list scenarios")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *list || fs.NArg() == 0 {
		for _, name := range testdata.All() {
			s, _ := testdata.Get(name)
			fmt.Print(testdata.FormatScenario(s))
		}
		return nil
	}

	s, err := testdata.Get(testdata.TestScenario(fs.Arg(0)))
	if err != nil {
		return err
	}
	ds := s.Generate()
	if err := adapter.WriteCSVFile(*out, ds.All()); err != nil {
		return err
	}
	fmt.Printf("wrote %d detections to %s\n", len(ds.Base)+len(ds.Receiver), *out)

	if *configOut != "" {
		cfg := scenarioConfig(s)
		data, err := yaml.Marshal(&cfg)
		if err != nil {
			return err
		}
		if err := os.WriteFile(*configOut, data, 0o644); err != nil {
			return err
		}
		fmt.Printf("wrote configuration to %s\n", *configOut)
	}
	return nil
}

// scenarioConfig maps the suggested scenario parameters onto a configuration
// with a network, so the file also works with run --all.
func scenarioConfig(s *testdata.Scenario) engine.Config {
	cfg := engine.DefaultConfig()
	cfg.BaseReceiver = s.Base
	cfg.Receiver = s.Receiver
	cfg.Match.TimeMargin = s.Params.TimeMargin
	cfg.Network = []registry.Station{
		{Receiver: s.Base, SyncTransmitter: s.BaseTag},
		{Receiver: s.Receiver, SyncTransmitter: s.ReceiverTag},
	}
	for i := range cfg.Channels {
		cfg.Channels[i].OutlierLim = s.Params.OutlierLim
		cfg.Channels[i].WindowSize = s.Params.Window
		cfg.Channels[i].Degree = s.Params.Degree
		cfg.Channels[i].SmoothingFactor = s.Params.Smoothing
	}
	return cfg
}

func inspectCmd(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("inspect: expected one artifacts.json path")
	}
	return startTUI(fs.Arg(0))
}

func usage() {
	fmt.Fprintf(os.Stderr, `driftsync - receiver clock drift synchronization

Usage:
  driftsync run --base ID --receiver ID --input FILE [--input FILE ...] [flags]
      Synchronize one receiver's timestamps onto the base receiver clock

  driftsync run --all --config FILE --input FILE [flags]
      Synchronize every receiver in the configured network onto the base

  driftsync simulate SCENARIO [--out FILE] [--config-out FILE]
      Write synthetic detections for a scenario (no argument lists them)

  driftsync inspect FILE
      Browse a run's artifacts.json interactively

  driftsync version
      Show version and platform information

Run flags:
  --config FILE       YAML configuration (flags > DRIFTSYNC_* env > file > defaults)
  --env-file FILE     dotenv file, default .env
  --out-dir DIR       output directory, default out
  --margin DURATION   matching time margin
  --workers N         segment fitting workers (0 = NumCPU)
  --no-verify         skip the verification pass
  --log-level LEVEL   DEBUG, INFO, WARN or ERROR
  --log-file FILE     append log lines to FILE
  --quiet             only log errors
  --metrics-out FILE  write Prometheus text metrics

Examples:
  driftsync simulate jump --out jump.csv --config-out jump.yaml
  driftsync run --config jump.yaml --input jump.csv --out-dir out
  driftsync inspect out/461211_461059_artifacts.json
`)
}
