// Command server boots the MCP Pilot orchestration process: it loads the
// MCP configuration file, connects every configured server, loads the
// learned sub-tool catalog from disk, builds a model.Client per configured
// provider, and serves the HTTP surface described in spec.md §6. Grounded
// on the teacher's example/cmd/assistant/main.go for the flag-parsing and
// clue/log bootstrap shape, adapted from goa's generated-service wiring to
// this module's single chi router.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"goa.design/clue/log"

	"github.com/mcpilot/core/internal/config"
	"github.com/mcpilot/core/internal/execagent"
	"github.com/mcpilot/core/internal/httpapi"
	"github.com/mcpilot/core/internal/mcpclient"
	"github.com/mcpilot/core/internal/model"
	"github.com/mcpilot/core/internal/model/anthropic"
	"github.com/mcpilot/core/internal/model/middleware"
	"github.com/mcpilot/core/internal/model/openai"
	"github.com/mcpilot/core/internal/orchestrator"
	"github.com/mcpilot/core/internal/subtool"
	"github.com/mcpilot/core/internal/telemetry"
)

func main() {
	var (
		configF      = flag.String("config", "mcp-config.json", "path to the MCP server configuration file")
		learningsF   = flag.String("learnings-dir", "learnings", "directory holding per-MCP learned catalog files")
		dbgF         = flag.Bool("debug", false, "log request and response bodies")
		anthropicMdl = flag.String("anthropic-model", "claude-sonnet-4-5", "default Anthropic model id")
		openaiMdl    = flag.String("openai-model", "gpt-4o", "default OpenAI model id")
	)
	flag.Parse()

	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if *dbgF {
		ctx = log.Context(ctx, log.WithDebug())
	}

	keys := config.LoadProviderKeys()
	if !keys.Any() {
		log.Error(ctx, fmt.Errorf("no model provider API key is set (ANTHROPIC_API_KEY or OPENAI_API_KEY)"))
		os.Exit(1)
	}

	bundle := telemetry.Bundle{
		Log:     telemetry.NewClueLogger(),
		Metrics: telemetry.NewClueMetrics(),
		Tracer:  telemetry.NewClueTracer(),
	}

	clients := make(map[string]model.Client)
	limiter := middleware.NewAdaptiveRateLimiter(60000, 180000)
	if keys.Anthropic != "" {
		c, err := anthropic.NewFromAPIKey(keys.Anthropic, *anthropicMdl)
		if err != nil {
			log.Error(ctx, fmt.Errorf("configure anthropic client: %w", err))
			os.Exit(1)
		}
		clients["anthropic"] = limiter.Middleware()(c)
	}
	if keys.OpenAI != "" {
		c, err := openai.NewFromAPIKey(keys.OpenAI, *openaiMdl)
		if err != nil {
			log.Error(ctx, fmt.Errorf("configure openai client: %w", err))
			os.Exit(1)
		}
		clients["openai"] = limiter.Middleware()(c)
	}
	var defaultClient model.Client
	for _, name := range []string{"anthropic", "openai"} {
		if c, ok := clients[name]; ok {
			defaultClient = c
			break
		}
	}

	cfg, err := config.Load(*configF)
	if err != nil {
		log.Print(ctx, log.KV{K: "config", V: "no mcp-config.json found, starting with no MCP servers"})
		cfg = &config.File{MCPServers: map[string]config.ServerConfig{}}
	}

	mgr := mcpclient.NewManager(bundle)
	mgr.Connect(ctx, cfg)
	defer mgr.Close()

	catalog := subtool.NewCatalog()
	if err := catalog.LoadDir(*learningsF); err != nil {
		log.Error(ctx, fmt.Errorf("load learnings directory: %w", err))
	}

	dispatcher := &execagent.Dispatcher{
		Catalog:  catalog,
		SubTools: subtool.NewExecutor(catalog, mgr),
		Client:   defaultClient,
	}

	orch := &orchestrator.Orchestrator{
		Sessions:   orchestrator.NewManager(),
		Catalog:    catalog,
		Dispatcher: dispatcher,
		Client:     defaultClient,
	}

	deps := &httpapi.Deps{
		Orchestrator: orch,
		Catalog:      catalog,
		MCP:          mgr,
		Clients:      clients,
		LearningsDir: *learningsF,
		Telemetry:    bundle,
	}

	addr := ":" + config.Port()
	srv := &http.Server{Addr: addr, Handler: httpapi.NewRouter(deps)}

	errCh := make(chan error, 1)
	go func() {
		log.Print(ctx, log.KV{K: "addr", V: addr})
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Error(ctx, fmt.Errorf("server exited: %w", err))
			os.Exit(1)
		}
	case <-sigCh:
		log.Print(ctx, log.KV{K: "signal", V: "shutting down"})
		_ = srv.Shutdown(ctx)
	}
}
