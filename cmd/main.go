package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"
	"os"
	"reflect"
	"runtime"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/aukilabs/octsel/featureflag"
	octselhttp "github.com/aukilabs/octsel/http"
	"github.com/aukilabs/octsel/models"
	"github.com/aukilabs/octsel/query"
	"github.com/aukilabs/octsel/selection"
	owebsocket "github.com/aukilabs/octsel/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

var (
	// The Octsel version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "octsel_info",
		Help:        "Octsel information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr               string        `cli:""        env:"OCTSEL_ADDR"                 help:"Listening address for client requests."`
	AdminAddr          string        `cli:""        env:"OCTSEL_ADMIN_ADDR"           help:"Admin listening address."`
	PublicEndpoint     string        `cli:""        env:"OCTSEL_PUBLIC_ENDPOINT"      help:"The public endpoint where this server is reachable."`
	DatasetFile        string        `cli:""        env:"OCTSEL_DATASET_FILE"         help:"The JSON file that describes the dataset to query."`
	AuthToken          string        `cli:""        env:"OCTSEL_AUTH_TOKEN"           help:"The token clients must present. Empty disables authentication."`
	LogLevel           string        `cli:""        env:"OCTSEL_LOG_LEVEL"            help:"Log level (debug|info|warning|error)."`
	LogIndent          bool          `cli:""        env:"OCTSEL_LOG_INDENT"           help:"Indent logs."`
	Workers            int           `cli:""        env:"OCTSEL_WORKERS"              help:"The number of root octs traversed at once by a query."`
	DefaultMaxLevel    int           `cli:""        env:"OCTSEL_DEFAULT_MAX_LEVEL"    help:"The max refinement level of queries that do not set one."`
	StreamBatchSize    int           `cli:",hidden" env:"OCTSEL_STREAM_BATCH_SIZE"    help:"The max number of cells per streamed message."`
	MaxStreams         int           `cli:",hidden" env:"OCTSEL_MAX_STREAMS"          help:"The max number of selections running at once on a connection."`
	MaxRequestSize     int64         `cli:",hidden" env:"OCTSEL_MAX_REQUEST_SIZE"     help:"The max size of a query body in bytes."`
	ClientIdleTimeout  time.Duration `cli:",hidden" env:"OCTSEL_CLIENT_IDLE_TIMEOUT"  help:"Time until an idle client will be disconnected."`
	LogSummaryInterval time.Duration `cli:",hidden" env:"OCTSEL_LOG_SUMMARY_INTERVAL" help:"The duration between each log summary by connection."`
	ShutdownTimeout    time.Duration `cli:",hidden" env:"OCTSEL_SHUTDOWN_TIMEOUT"     help:"The time given to pending requests to complete on shutdown."`
	Events             eventsConfig  `cli:",hidden" env:"-"                           help:"Event pusher configuration."`
	FeatureFlags       []string      `cli:",hidden" env:"OCTSEL_FEATURE_FLAGS"        help:"Comma separated feature flags."`
	Version            bool          `cli:""        env:"-"                           help:"Show version."`
	Help               bool          `cli:""        env:"-"                           help:"Show help."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"OCTSEL_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed. Empty disables event pushing."`
	FlushInterval time.Duration `cli:",hidden" env:"OCTSEL_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"OCTSEL_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"OCTSEL_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	conf := config{
		Addr:               ":4000",
		AdminAddr:          ":18190",
		PublicEndpoint:     "http://localhost:4000",
		LogLevel:           logs.InfoLevel.String(),
		Workers:            runtime.NumCPU(),
		DefaultMaxLevel:    selection.MaxLevelLimit,
		StreamBatchSize:    256,
		MaxStreams:         4,
		MaxRequestSize:     octselhttp.DefaultMaxRequestSize,
		ClientIdleTimeout:  time.Minute * 5,
		LogSummaryInterval: time.Minute,
		ShutdownTimeout:    time.Second * 10,
		Events: eventsConfig{
			FlushInterval: events.DefaultFlushInterval,
			BatchSize:     events.DefaultBatchSize,
			QueueSize:     events.DefaultQueueSize,
		},
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts the Octsel spatial selection server.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     metrics.HTTPTransport(http.DefaultTransport),
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "octsel",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	start := time.Now()
	dataset, err := models.LoadDataset(conf.DatasetFile)
	if err != nil {
		logs.Fatal(err)
	}
	logs.WithTag("dataset", dataset.Summary()).
		WithTag("duration", time.Since(start).String()).
		Info("dataset loaded")

	flags := featureflag.New(conf.FeatureFlags)
	runner := &query.Runner{
		Dataset:         dataset,
		Workers:         conf.Workers,
		DefaultMaxLevel: conf.DefaultMaxLevel,
		FeatureFlags:    flags,
	}

	readinessCheck := func() bool {
		return ctx.Err() == nil
	}

	var service http.ServeMux
	service.Handle("/health", octselhttp.HandleWithCORS(http.HandlerFunc(octselhttp.HandleHealthCheck)))
	service.Handle("/version", octselhttp.HandleWithCORS(octselhttp.HandleVersion(version)))
	service.Handle("/ready", octselhttp.HandleWithCORS(octselhttp.HandleReadyCheck(readinessCheck)))
	service.Handle("/dataset", octselhttp.HandleWithCORS(
		octselhttp.VerifyAuthTokenHandler(conf.AuthToken, octselhttp.HandleDataset(dataset))))
	service.Handle("/select", octselhttp.HandleWithCORS(
		octselhttp.VerifyAuthTokenHandler(conf.AuthToken, octselhttp.HandleSelect(runner, conf.MaxRequestSize))))

	service.Handle("/stream", websocket.Server{
		Handshake: octselhttp.VerifyAuthToken(conf.AuthToken),
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			var h owebsocket.Handler = &owebsocket.StreamHandler{
				Runner:            runner,
				BatchSize:         conf.StreamBatchSize,
				MaxStreams:        conf.MaxStreams,
				ClientIdleTimeout: conf.ClientIdleTimeout,
			}
			h = owebsocket.HandlerWithLogs(h, conf.LogSummaryInterval)
			h = owebsocket.HandlerWithMetrics(h, conf.PublicEndpoint)
			defer h.Close()

			owebsocket.Handle(ctx, conn, h)
		},
	})

	service.Handle("/ping", websocket.Server{
		Handler: func(ws *websocket.Conn) {
			defer ws.Close()
			io.Copy(ws, ws)
		},
	})

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", octselhttp.HandleHealthCheck)
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))
	admin.HandleFunc("/ready", octselhttp.HandleReadyCheck(readinessCheck))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("endpoint", conf.PublicEndpoint).
		WithTag("workers", conf.Workers).
		WithTag("feature_flags", flags.List()).
		Info("starting octsel server")

	octselhttp.ListenAndServe(ctx, conf.ShutdownTimeout,
		&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(&service,
			octselhttp.MetricsPathFormatter)},
		&http.Server{Addr: conf.AdminAddr, Handler: &admin},
	)
}

func validateConfig(conf config) error {
	if conf.DatasetFile == "" {
		return errors.New("dataset file is required")
	}

	if conf.Workers < 1 {
		return errors.New("workers must be at least 1").
			WithTag("workers", conf.Workers)
	}

	if conf.DefaultMaxLevel < 0 || conf.DefaultMaxLevel > selection.MaxLevelLimit {
		return errors.Newf("default max level must be between 0 and %d", selection.MaxLevelLimit).
			WithTag("default_max_level", conf.DefaultMaxLevel)
	}

	if conf.StreamBatchSize < 1 {
		return errors.New("stream batch size must be at least 1").
			WithTag("stream_batch_size", conf.StreamBatchSize)
	}

	if conf.MaxStreams < 1 {
		return errors.New("max streams must be at least 1").
			WithTag("max_streams", conf.MaxStreams)
	}
	return nil
}
