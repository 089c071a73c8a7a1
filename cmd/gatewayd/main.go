package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"jotagateway/internal/auth"
	"jotagateway/internal/common/fsutil"
	"jotagateway/internal/envconfig"
	"jotagateway/internal/gateway"
	"jotagateway/internal/hardware"
	"jotagateway/internal/httpapi"
	"jotagateway/internal/inference"
	"jotagateway/internal/protocol"
	"jotagateway/internal/runtimeadapter"
	"jotagateway/internal/session"
	"jotagateway/internal/telemetry"
	"jotagateway/pkg/types"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal().Err(err).Msg("gatewayd failed")
	}
}

func newRootCmd() *cobra.Command {
	var (
		modelPath string
		port      int
		gpuLayers int
		ctxSize   int
		prompt    string
		corsFlag  bool
	)

	root := &cobra.Command{
		Use:   "gatewayd MODEL [PORT]",
		Short: "Concurrent multi-tenant inference gateway",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolvedModel, resolvedPort, err := resolveModelAndPort(args, modelPath, port)
			if err != nil {
				return err
			}
			modelPath, port = resolvedModel, resolvedPort
			return run(modelPath, port, gpuLayers, ctxSize, prompt, corsFlag)
		},
	}

	root.Flags().StringVar(&modelPath, "model", "", "path to the GGUF model file (required)")
	root.Flags().IntVar(&port, "port", 3000, "HTTP/WS listen port")
	root.Flags().IntVar(&gpuLayers, "gpu-layers", -1, "number of layers to offload to GPU (-1 = auto)")
	root.Flags().IntVar(&ctxSize, "ctx-size", 512, "model context size in tokens")
	root.Flags().StringVar(&prompt, "prompt", "", "optional warmup prompt issued once at startup")
	root.Flags().BoolVar(&corsFlag, "cors", false, "enable permissive CORS on the HTTP control surface")

	return root
}

// resolveModelAndPort applies the positional-args fallback (gatewayd MODEL
// [PORT]) on top of whatever --model/--port flags were already set. A
// non-empty --model takes priority over the positional MODEL; a positional
// PORT always replaces the --port value.
func resolveModelAndPort(args []string, flagModel string, flagPort int) (string, int, error) {
	model := flagModel
	port := flagPort
	if len(args) >= 1 && model == "" {
		model = args[0]
	}
	if len(args) == 2 {
		p, err := strconv.Atoi(args[1])
		if err != nil {
			return "", 0, fmt.Errorf("invalid PORT %q: %w", args[1], err)
		}
		port = p
	}
	if model == "" {
		return "", 0, fmt.Errorf("model path is required (--model or positional MODEL)")
	}
	return model, port, nil
}

func run(modelPath string, port, gpuLayers, ctxSize int, warmupPrompt string, corsFlag bool) error {
	zlog := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()
	log.Logger = zlog
	httpapi.SetLogger(zlog)

	store, err := envconfig.Load(".env")
	if err != nil {
		log.Warn().Err(err).Msg("could not read .env, continuing with OS environment only")
	}
	authCfg := envconfig.LoadAuthConfig(store)
	tuning := envconfig.LoadProcessTuning(store)

	if corsFlag || store.Has("GATEWAY_CORS") {
		httpapi.SetCORSOptions(true, []string{"*"}, []string{"GET", "POST", "OPTIONS"}, []string{"Content-Type", "X-Client-ID", "X-API-Key"})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	httpapi.SetBaseContext(ctx)

	authCache := auth.New(authCfg.BaseURL, authCfg.User, authCfg.ServerKey)
	livenessCtx, livenessCancel := context.WithTimeout(ctx, 10*time.Second)
	ok := authCache.VerifyBackendLiveness(livenessCtx)
	livenessCancel()
	if !ok {
		return fmt.Errorf("auth backend liveness probe failed against %s", authCfg.BaseURL)
	}

	expandedModelPath, err := fsutil.ExpandHome(modelPath)
	if err != nil {
		return fmt.Errorf("resolving model path: %w", err)
	}
	modelPath = expandedModelPath
	if !fsutil.PathExists(modelPath) {
		log.Warn().Str("model", modelPath).Msg("model path does not exist")
	}

	adapter := runtimeadapter.NewLlamaAdapter(0)
	if err := adapter.LoadModel(modelPath, ctxSize, gpuLayers); err != nil && !runtimeadapter.IsDependencyUnavailable(err) {
		return fmt.Errorf("failed to load model %s: %w", modelPath, err)
	} else if err != nil {
		log.Warn().Err(err).Msg("model runtime unavailable; gateway will accept connections but inference will fail")
	}

	registry := session.New(adapter, authCache)
	dispatcher := inference.New(tuning.Workers, func(id string) inference.SessionRunner {
		s := registry.Get(id)
		if s == nil {
			return nil
		}
		return s
	})
	defer dispatcher.Shutdown()

	probe := hardware.NewProbe(hardware.NewNullReader())
	probe.Init()
	defer probe.Shutdown()

	router := protocol.New(authCache, registry, dispatcher)
	gw := gateway.NewServer(authCache, router)

	publish := func(env types.MetricsEnvelope) {
		gw.Broadcast(protocol.Outbound{
			Op:        "metrics",
			Timestamp: env.Timestamp,
			GPU:       env.GPU,
			Inference: env.Inference,
		})
	}
	broadcaster := telemetry.New(probe, dispatcher, registry, publish, time.Duration(tuning.TelemetryIntervalMs)*time.Millisecond)
	go broadcaster.Run()
	defer broadcaster.Stop()

	if warmupPrompt != "" {
		go warmup(adapter, warmupPrompt)
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", gw)
	mux.Handle("/", httpapi.NewRouter(broadcaster))

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}

	httpapi.SetReady(true)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", port).Str("model", modelPath).Msg("gatewayd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-stop:
		log.Info().Msg("shutdown signal received")
	}

	httpapi.SetReady(false)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown error")
	}

	registry.CloseAll()
	_ = adapter.Close()
	return nil
}

// warmup issues a single throwaway generation against a dedicated context
// at startup so the first real client doesn't pay the model's cold-start
// latency. It bypasses the Session Registry entirely: warmup has no client
// identity to check a quota against. Best-effort: failures are logged, not
// fatal.
func warmup(adapter runtimeadapter.Adapter, prompt string) {
	gctx, err := adapter.NewContext()
	if err != nil {
		log.Warn().Err(err).Msg("warmup context creation failed")
		return
	}
	defer gctx.Close()

	_, err = gctx.Generate(context.Background(), prompt, types.RuntimeParams{MaxTokens: 8}, func(string) bool { return true })
	if err != nil {
		log.Warn().Err(err).Msg("warmup generation failed")
	}
}
