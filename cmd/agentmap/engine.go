package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kadirpekel/agentmap/pkg/assembler"
	"github.com/kadirpekel/agentmap/pkg/bundle"
	"github.com/kadirpekel/agentmap/pkg/checkpoint"
	"github.com/kadirpekel/agentmap/pkg/config"
	"github.com/kadirpekel/agentmap/pkg/container"
	"github.com/kadirpekel/agentmap/pkg/csvspec"
	"github.com/kadirpekel/agentmap/pkg/declaration"
	"github.com/kadirpekel/agentmap/pkg/interaction"
	"github.com/kadirpekel/agentmap/pkg/runner"
)

// engine bundles every component a CLI command needs, built once from
// the loaded EngineConfig. Mirrors the teacher's pattern of assembling
// a runtime struct in main (cmd/hector/main.go's ServeCmd.Run) rather
// than threading a dozen constructor arguments through every command.
type engine struct {
	cfg          *config.EngineConfig
	log          *slog.Logger
	parser       *csvspec.Parser
	registry     *declaration.Registry
	analyzer     *bundle.Analyzer
	bundles      *bundle.Store
	checkpoints  *checkpoint.Store
	factory      *container.Factory
	assembler    *assembler.Assembler
	runner       *runner.Runner
	interactions *interaction.Handler

	metricsServer *http.Server
}

// newEngine wires the engine's components against cfg; the prompt
// resolver (pkg/prompt) is not constructed here. Declaration sources beyond the builtin defaults are
// loaded from cfg.DeclarationSources (host-application YAML files).
func newEngine(cfg *config.EngineConfig, log *slog.Logger) (*engine, error) {
	reg := declaration.New(log)
	reg.AddSource(declaration.BuiltinSource())
	for _, path := range cfg.DeclarationSources {
		reg.AddSource(&declaration.YAMLFileSource{SourceName: path, Path: path})
	}
	if err := reg.Load(); err != nil {
		return nil, err
	}
	for _, w := range reg.CheckCompatibility() {
		log.Warn("declaration compatibility warning", "service", w.ServiceName, "protocol", w.Protocol)
	}

	parser := csvspec.NewParser(log)
	analyzer := bundle.New(reg, parser, log)

	bundleStore, err := bundle.NewStore(cfg.BundleCacheDir, analyzer, log)
	if err != nil {
		return nil, err
	}

	checkpointStore, err := checkpoint.NewStore(cfg.CheckpointDir, log)
	if err != nil {
		return nil, err
	}

	factory := container.NewFactory(reg, nil, nil, log)
	asm := assembler.New(nil, log)

	policy := successPolicyFromConfig(cfg.SuccessPolicy)
	r := runner.New(policy, log)

	var metricsServer *http.Server
	if cfg.Observability.MetricsEnabled {
		promReg := prometheus.NewRegistry()
		r = r.WithMetrics(runner.NewMetrics(promReg))
		metricsServer = startMetricsServer(cfg.Observability.MetricsAddr, promReg, log)
	}
	if cfg.Observability.TracingEnabled {
		r = r.WithTracer(otel.Tracer("agentmap"))
	}

	interactionHandler, err := interaction.New(cfg.InteractionDir, checkpointStore, bundleStore, factory, asm, r, log)
	if err != nil {
		return nil, err
	}

	return &engine{
		cfg:           cfg,
		log:           log,
		parser:        parser,
		registry:      reg,
		analyzer:      analyzer,
		bundles:       bundleStore,
		checkpoints:   checkpointStore,
		factory:       factory,
		assembler:     asm,
		runner:        r,
		interactions:  interactionHandler,
		metricsServer: metricsServer,
	}, nil
}

// startMetricsServer exposes reg's collectors over HTTP at addr,
// grounded on the teacher's pkg/server/http.go ListenAndServe-in-a-
// goroutine pattern. TracingEnabled has no corresponding server: the
// configured otel.Tracer relies on whatever global TracerProvider the
// host process sets up (noop.NewTracerProvider by default, matching
// go.opentelemetry.io/otel's own zero value), so enabling tracing here
// only starts producing spans once a real provider is registered.
func startMetricsServer(addr string, reg *prometheus.Registry, log *slog.Logger) *http.Server {
	srv := &http.Server{
		Addr:         addr,
		Handler:      promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	log.Info("metrics server listening", "addr", addr)
	return srv
}

// Close releases engine resources: the bundle store's sqlite index and,
// if observability.metrics_enabled was set, the background metrics
// server.
func (e *engine) Close() error {
	if e.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = e.metricsServer.Shutdown(ctx)
	}
	return e.bundles.Close()
}

func successPolicyFromConfig(c config.SuccessPolicyConfig) runner.Policy {
	switch c.Name {
	case "final_node":
		return runner.FinalNode
	case "critical_nodes":
		return runner.CriticalNodes(c.CriticalNodes)
	default:
		return runner.AllNodes
	}
}

// compileBundle runs Factory.Build then Assembler.Compile against b,
// surfacing a MissingDeclaration failure before any execution is
// attempted (spec.md section 8 scenario S6).
func (e *engine) compileBundle(b *bundle.GraphBundle) (*assembler.CompiledGraph, error) {
	instantiated, err := e.factory.Build(b)
	if err != nil {
		return nil, err
	}
	return e.assembler.Compile(b, instantiated.Agents)
}
