package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"
	"net/url"
	"os"
	"reflect"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/aukilabs/raido/featureflag"
	raidohttp "github.com/aukilabs/raido/http"
	"github.com/aukilabs/raido/models"
	"github.com/aukilabs/raido/smoketest"
	"github.com/aukilabs/raido/streaming"
	rwebsocket "github.com/aukilabs/raido/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

var (
	// The Raido version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "raido_info",
		Help:        "Raido information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// Keeps the config field names readable by the cli package when the binary is
// obfuscated.
var _ = reflect.TypeOf(config{})

type config struct {
	Addr               string        `cli:""        env:"RAIDO_ADDR"                 help:"Listening address for client connections."`
	AdminAddr          string        `cli:""        env:"RAIDO_ADMIN_ADDR"           help:"Admin listening address."`
	PublicEndpoint     string        `cli:""        env:"RAIDO_PUBLIC_ENDPOINT"      help:"The public endpoint where this Raido server is reachable."`
	LogLevel           string        `cli:""        env:"RAIDO_LOG_LEVEL"            help:"Log level (debug|info|warning|error)."`
	LogIndent          bool          `cli:""        env:"RAIDO_LOG_INDENT"           help:"Indent logs."`
	StreamingConfig    string        `cli:""        env:"RAIDO_STREAMING_CONFIG"     help:"TOML file that overrides the streaming budgets and limits."`
	ClientIdleTimeout  time.Duration `cli:",hidden" env:"RAIDO_CLIENT_IDLE_TIMEOUT"  help:"Time until an idle client will be disconnected"`
	FrameDuration      time.Duration `cli:",hidden" env:"RAIDO_FRAME_DURATION"       help:"The duration of a streaming frame."`
	LogSummaryInterval time.Duration `cli:",hidden" env:"RAIDO_LOG_SUMMARY_INTERVAL" help:"The duration between each log summary by connection."`
	ShutdownTimeout    time.Duration `cli:",hidden" env:"RAIDO_SHUTDOWN_TIMEOUT"     help:"The maximum duration to drain connections on shutdown."`
	Events             eventsConfig  `cli:",hidden" env:"-"                          help:"Event pusher configuration."`
	FeatureFlags       []string      `cli:",hidden" env:"RAIDO_FEATURE_FLAGS"        help:"Comma separated feature flags"`
	Version            bool          `cli:""        env:"-"                          help:"Show version."`
	Help               bool          `cli:""        env:"-"                          help:"Show help."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"RAIDO_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed."`
	FlushInterval time.Duration `cli:",hidden" env:"RAIDO_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"RAIDO_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"RAIDO_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	conf := config{
		Addr:               ":4100",
		AdminAddr:          ":18290",
		PublicEndpoint:     "http://localhost:4100",
		LogLevel:           logs.InfoLevel.String(),
		ClientIdleTimeout:  time.Minute * 5,
		FrameDuration:      time.Millisecond * 16,
		LogSummaryInterval: time.Minute,
		ShutdownTimeout:    raidohttp.DefaultShutdownTimeout,
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
		Help("Starts Raido world streaming server.").
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

	streamingConfig, err := streaming.LoadConfig(conf.StreamingConfig)
	if err != nil {
		logs.Fatal(errors.New("loading streaming config failed").Wrap(err))
	}

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
			SDKType:          "raido",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	var sessions models.SessionStore
	featureFlags := featureflag.New(conf.FeatureFlags)

	readinessCheck := func() bool {
		return ctx.Err() == nil
	}

	var service http.ServeMux
	service.Handle("/health", raidohttp.HandleWithCORS(http.HandlerFunc(raidohttp.HandleHealthCheck)))
	service.Handle("/version", raidohttp.HandleWithCORS(raidohttp.HandleVersion(version)))
	service.Handle("/ready", raidohttp.HandleWithCORS(raidohttp.HandleReadyCheck(readinessCheck)))

	service.Handle("/stream", websocket.Server{
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			var h rwebsocket.Handler = &rwebsocket.StreamHandler{
				ClientIdleTimeout:   conf.ClientIdleTimeout,
				ClientFrameDuration: conf.FrameDuration,
				Sessions:            &sessions,
				StreamingConfig:     streamingConfig,
				FeatureFlags:        featureFlags,
			}
			h = rwebsocket.HandlerWithLogs(h, conf.LogSummaryInterval)
			h = rwebsocket.HandlerWithMetrics(h, conf.PublicEndpoint)
			defer h.Close()

			rwebsocket.Handle(ctx, conn, h)
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
	admin.HandleFunc("/health", raidohttp.HandleHealthCheck)
	admin.HandleFunc("/ready", raidohttp.HandleReadyCheck(readinessCheck))
	admin.HandleFunc("/debug/sessions", raidohttp.HandleSessions(&sessions))
	admin.HandleFunc("/smoke-test", smoketest.HandleSmokeTest(ctx, smoketest.Options{
		Endpoint:  conf.PublicEndpoint,
		UserAgent: fmt.Sprintf("Raido %s", version),
		Timeout:   smoketest.DefaultTimeout,
	}))
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("endpoint", conf.PublicEndpoint).
		WithTag("feature_flags", conf.FeatureFlags).
		WithTag("streaming", streamingConfig).
		Info("starting raido server")

	metricsPaths := raidohttp.MetricsPathFormatter("/health", "/version", "/ready", "/stream", "/ping")

	err = raidohttp.ListenAndServe(ctx, conf.ShutdownTimeout,
		raidohttp.Server{
			Name:   "service",
			Server: &http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(&service, metricsPaths)},
		},
		raidohttp.Server{
			Name:   "admin",
			Server: &http.Server{Addr: conf.AdminAddr, Handler: &admin},
		},
	)
	if err != nil {
		logs.Warn(err)
	}
}

func validateConfig(conf config) error {
	if _, err := url.ParseRequestURI(conf.PublicEndpoint); err != nil {
		return errors.New("invalid public endpoint").Wrap(err)
	}

	if conf.FrameDuration <= 0 {
		return errors.New("frame duration must be positive").
			WithTag("frame_duration", conf.FrameDuration)
	}

	if conf.ClientIdleTimeout <= 0 {
		return errors.New("client idle timeout must be positive").
			WithTag("client_idle_timeout", conf.ClientIdleTimeout)
	}

	if conf.LogSummaryInterval <= 0 {
		return errors.New("log summary interval must be positive").
			WithTag("log_summary_interval", conf.LogSummaryInterval)
	}

	if conf.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive").
			WithTag("shutdown_timeout", conf.ShutdownTimeout)
	}
	return nil
}
