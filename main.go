// Command battleship starts the Battleship game server.
//
// It supports three modes:
//  1. default – runs the HTTP server exposing the REST API, WebSocket events and
//     the MCP endpoints (/mcp streamable HTTP, /sse + /message)
//  2. "stdio-mcp" – runs an MCP stdio server and spins up an internal HTTP API if none is available
//  3. "validate-fleet" – checks fleet layout JSON files offline
//
// Flags (or a YAML file passed with --config) control host/port, the game
// store, logging, stale game retention, and optional ngrok tunneling for easy
// external access during development.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/mcp-training/battleship/api"
	"github.com/wricardo/mcp-training/battleship/game/config"
	"github.com/wricardo/mcp-training/battleship/game/service"
	"github.com/wricardo/mcp-training/battleship/game/store"
	"github.com/wricardo/mcp-training/battleship/transport/mcp"
	"github.com/wricardo/mcp-training/battleship/transport/websocket"
	"github.com/wricardo/mcp-training/battleship/validate"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Battleship Server"
)

func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Msg("error loading .env file")
		}
	} else {
		log.Debug().Msg("loaded environment variables from .env file")
	}

	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("exiting")
	}
}

var errInvalidFleet = errors.New("one or more fleets are invalid")

// newCommand builds the CLI. Flags are read by every subcommand.
func newCommand() *cli.Command {
	def := config.Default()

	return &cli.Command{
		Name:    "battleship",
		Usage:   "Two-player Battleship over REST, WebSocket and MCP",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "YAML config file", Sources: cli.EnvVars("BATTLESHIP_CONFIG")},
			&cli.StringFlag{Name: "host", Value: def.Server.Host, Usage: "HTTP server host", Sources: cli.EnvVars("HOST")},
			&cli.IntFlag{Name: "port", Value: def.Server.Port, Usage: "HTTP server port", Sources: cli.EnvVars("PORT")},
			&cli.StringFlag{Name: "public-url", Usage: "externally reachable base URL, used for MCP SSE endpoints", Sources: cli.EnvVars("PUBLIC_URL")},
			&cli.StringFlag{Name: "store", Value: def.Store.Driver, Usage: "game store: memory, file or sqlite", Sources: cli.EnvVars("STORE")},
			&cli.StringFlag{Name: "dsn", Value: def.Store.DSN, Usage: "SQLite database path", Sources: cli.EnvVars("DATABASE_URL")},
			&cli.StringFlag{Name: "data-dir", Value: def.Store.DataDir, Usage: "directory for game snapshots (file store)", Sources: cli.EnvVars("DATA_DIR")},
			&cli.DurationFlag{Name: "retention", Value: def.Store.Retention, Usage: "prune games idle for longer than this (0 disables)"},
			&cli.StringFlag{Name: "log-level", Value: def.Log.Level, Usage: "trace, debug, info, warn or error", Sources: cli.EnvVars("LOG_LEVEL")},
			&cli.BoolFlag{Name: "debug", Usage: "human readable debug logging"},
			&cli.BoolFlag{Name: "ngrok", Usage: "enable ngrok tunnel", Sources: cli.EnvVars("NGROK_ENABLED")},
			&cli.StringFlag{Name: "ngrok-auth", Usage: "ngrok auth token", Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN")},
			&cli.StringFlag{Name: "ngrok-domain", Usage: "custom ngrok domain (optional)", Sources: cli.EnvVars("NGROK_DOMAIN")},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := setup(cmd)
			if err != nil {
				return err
			}
			return runHTTPServer(ctx, cfg, cmd.String("ngrok-auth"))
		},
		Commands: []*cli.Command{
			{
				Name:    "stdio-mcp",
				Aliases: []string{"mcp-stdio", "mcp"},
				Usage:   "Run MCP stdio server with internal HTTP server",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, err := setup(cmd)
					if err != nil {
						return err
					}
					return runStdioMCPWithInternalServer(ctx, cfg)
				},
			},
			{
				Name:      "validate-fleet",
				Usage:     "Validate fleet layout JSON files or directories",
				ArgsUsage: "<file-or-dir>...",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					results, err := validate.Files(cmd.Args().Slice())
					if err != nil {
						return err
					}
					out := cmd.Root().Writer
					if out == nil {
						out = os.Stdout
					}
					if !validate.Report(out, results) {
						return errInvalidFleet
					}
					return nil
				},
			},
		},
	}
}

// setup loads the configuration and configures logging
func setup(cmd *cli.Command) (*config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := setupLogging(cfg.Log); err != nil {
		return nil, err
	}
	log.Info().Str("version", Version).Str("store", cfg.Store.Driver).Msgf("starting %s", AppName)
	return cfg, nil
}

// loadConfig starts from the config file (or defaults) and applies the flags
// that were set explicitly or through the environment
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg := config.Default()
	if path := cmd.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if cmd.IsSet("host") {
		cfg.Server.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Server.Port = int(cmd.Int("port"))
	}
	if cmd.IsSet("public-url") {
		cfg.Server.PublicURL = cmd.String("public-url")
	}
	if cmd.IsSet("store") {
		cfg.Store.Driver = cmd.String("store")
	}
	if cmd.IsSet("dsn") {
		cfg.Store.DSN = cmd.String("dsn")
	}
	if cmd.IsSet("data-dir") {
		cfg.Store.DataDir = cmd.String("data-dir")
	}
	if cmd.IsSet("retention") {
		cfg.Store.Retention = cmd.Duration("retention")
	}
	if cmd.IsSet("log-level") {
		cfg.Log.Level = cmd.String("log-level")
	}
	if cmd.IsSet("debug") {
		cfg.Log.Debug = cmd.Bool("debug")
	}
	if cmd.IsSet("ngrok") {
		cfg.Ngrok.Enabled = cmd.Bool("ngrok")
	}
	if cmd.IsSet("ngrok-domain") {
		cfg.Ngrok.Domain = cmd.String("ngrok-domain")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogging sets the global zerolog level. Logs always go to stderr so
// stdout stays free for the MCP stdio transport.
func setupLogging(cfg config.LogConfig) error {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	if cfg.Debug {
		if level > zerolog.DebugLevel {
			level = zerolog.DebugLevel
		}
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	zerolog.SetGlobalLevel(level)
	return nil
}

// services bundles the game service with the store behind it
type services struct {
	game   service.GameService
	pruner service.Pruner
	close  func() error
}

// initializeServices opens the configured store and wires the game service
func initializeServices(ctx context.Context, cfg *config.Config) (*services, error) {
	logger := log.Logger

	switch cfg.Store.Driver {
	case config.DriverFile:
		persistence, err := store.NewFilePersistence(cfg.Store.DataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to create game persistence: %w", err)
		}
		mem := store.NewMemoryStoreWithPersistence(persistence, logger)

		// Load persisted games on startup
		if err := mem.LoadPersisted(); err != nil {
			log.Warn().Err(err).Msg("failed to load some persisted games")
		}
		return &services{game: service.NewGameService(mem, logger), pruner: mem, close: mem.SaveAll}, nil

	case config.DriverSQLite:
		db, err := store.OpenSQLite(ctx, cfg.Store.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return &services{game: service.NewGameService(db, logger), pruner: db, close: db.Close}, nil

	default:
		mem := store.NewMemoryStore()
		return &services{game: service.NewGameService(mem, logger), pruner: mem, close: func() error { return nil }}, nil
	}
}

// pruneRoutine periodically removes games that have not been updated within
// the retention window
func pruneRoutine(ctx context.Context, pruner service.Pruner, retention, interval time.Duration) {
	if retention <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := pruner.PruneStale(ctx, time.Now().Add(-retention))
			if err != nil {
				log.Warn().Err(err).Msg("prune stale games")
			}
			if removed > 0 {
				log.Info().Int("removed", removed).Msg("pruned stale games")
			}
		}
	}
}

// mcpServers holds the HTTP transports of the MCP server
type mcpServers struct {
	sse        *server.SSEServer
	streamable *server.StreamableHTTPServer
}

func (m *mcpServers) Shutdown(ctx context.Context) error {
	return multierr.Combine(m.sse.Shutdown(ctx), m.streamable.Shutdown(ctx))
}

// newHandler mounts the MCP transports next to the REST API. MCP tool calls
// are proxied to apiURL.
func newHandler(apiServer *api.Server, apiURL, publicURL string) (http.Handler, *mcpServers) {
	mcpServer := mcp.NewClient(apiURL).GetMCPServer()

	sseOpts := []server.SSEOption{server.WithUseFullURLForMessageEndpoint(false)}
	if publicURL != "" {
		sseOpts = []server.SSEOption{server.WithBaseURL(strings.TrimRight(publicURL, "/"))}
	}
	servers := &mcpServers{
		sse:        server.NewSSEServer(mcpServer, sseOpts...),
		streamable: server.NewStreamableHTTPServer(mcpServer),
	}

	router := apiServer.Router()
	router.Handle("/mcp", servers.streamable)
	router.Handle("/sse", servers.sse.SSEHandler())
	router.Handle("/message", servers.sse.MessageHandler())

	return apiServer, servers
}

// loopbackURL is how in-process clients reach the HTTP server
func loopbackURL(port int) string {
	return fmt.Sprintf("http://127.0.0.1:%d", port)
}

// listenerURL is how in-process clients reach a bound listener. Wildcard
// binds are reached through loopback.
func listenerURL(addr net.Addr) string {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok || tcp.IP == nil || tcp.IP.IsUnspecified() {
		if ok {
			return loopbackURL(tcp.Port)
		}
		return "http://" + addr.String()
	}
	return "http://" + net.JoinHostPort(tcp.IP.String(), strconv.Itoa(tcp.Port))
}

// runHTTPServer starts the HTTP server with REST API, WebSocket hub, and the MCP endpoints.
// If ngrok is enabled, it also provisions a public tunnel.
func runHTTPServer(ctx context.Context, cfg *config.Config, ngrokAuth string) error {
	// Bind first so the MCP proxy targets the real port, even for port 0
	listener, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Addr(), err)
	}
	return serveHTTP(ctx, cfg, listener, ngrokAuth)
}

// serveHTTP runs the server on an already bound listener until ctx ends or a
// termination signal arrives
func serveHTTP(ctx context.Context, cfg *config.Config, listener net.Listener, ngrokAuth string) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	svcs, err := initializeServices(ctx, cfg)
	if err != nil {
		listener.Close()
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	var wg sync.WaitGroup

	// WebSocket hub
	hub := websocket.NewHub(log.Logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		pruneRoutine(ctx, svcs.pruner, cfg.Store.Retention, cfg.Store.PruneInterval)
	}()

	apiServer := api.NewServer(svcs.game, hub, log.Logger)
	handler, mcpHTTP := newHandler(apiServer, listenerURL(listener.Addr()), cfg.Server.PublicURL)

	addr := listener.Addr().String()
	// No WriteTimeout: /sse and /ws responses stay open
	httpServer := &http.Server{
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	serveErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()

		log.Info().Str("addr", addr).Msg("HTTP server listening")
		log.Info().Msgf("REST API: http://%s/api/games", addr)
		log.Info().Msgf("WebSocket: ws://%s/ws?game=<code>", addr)
		log.Info().Msgf("MCP endpoints: http://%s/mcp (streamable), http://%s/sse (SSE)", addr, addr)

		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			cancel()
		}
	}()

	if cfg.Ngrok.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, handler, ngrokAuth, cfg.Ngrok.Domain)
		}()
	}

	<-ctx.Done()
	log.Info().Msg("shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	var errs error
	errs = multierr.Append(errs, mcpHTTP.Shutdown(shutdownCtx))
	errs = multierr.Append(errs, httpServer.Shutdown(shutdownCtx))

	// Wait for all goroutines to finish before the store goes away
	wg.Wait()
	errs = multierr.Append(errs, svcs.close())

	select {
	case err := <-serveErr:
		errs = multierr.Append(errs, fmt.Errorf("HTTP server failed: %w", err))
	default:
	}

	if errs != nil {
		return errs
	}
	log.Info().Msg("server stopped")
	return nil
}

// runNgrok serves handler through an ngrok tunnel until ctx is done
func runNgrok(ctx context.Context, handler http.Handler, authToken, domain string) {
	if authToken == "" {
		log.Warn().Msg("ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN env var)")
		return
	}

	log.Info().Msg("starting ngrok tunnel...")

	var tunnel ngrokConfig.Tunnel
	if domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
		log.Info().Str("domain", domain).Msg("using custom ngrok domain")
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		log.Error().Err(err).Msg("failed to start ngrok tunnel")
		return
	}

	ngrokURL := tun.URL()
	log.Info().Str("url", ngrokURL).Msg("ngrok tunnel established")
	log.Info().Msgf("  REST API (ngrok): %s/api/games", ngrokURL)
	log.Info().Msgf("  MCP endpoint (ngrok): %s/mcp", ngrokURL)

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close ngrok tunnel")
		}
	}()

	// Serve HTTP through ngrok tunnel
	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		log.Error().Err(err).Msg("ngrok server error")
	}
	log.Info().Msg("ngrok tunnel closed")
}

// runStdioMCPWithInternalServer runs an MCP stdio server.
// It tries to reuse an API server already running on the configured port; if
// unavailable, it starts a minimal internal HTTP API bound to a random
// loopback port and targets that.
func runStdioMCPWithInternalServer(ctx context.Context, cfg *config.Config) error {
	externalURL := loopbackURL(cfg.Server.Port)
	log.Info().Str("url", externalURL).Msg("checking for external API server")

	baseURL := externalURL
	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(externalURL + "/api")
	if err == nil && resp.StatusCode < 500 {
		resp.Body.Close()
		log.Info().Str("url", externalURL).Msg("external API server found, using it for MCP")
	} else {
		if err == nil {
			resp.Body.Close()
		}
		log.Info().Msg("no external API server found, starting internal HTTP server")

		svcs, err := initializeServices(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize services: %w", err)
		}
		defer func() {
			if err := svcs.close(); err != nil {
				log.Warn().Err(err).Msg("closing store")
			}
		}()

		pruneCtx, stopPrune := context.WithCancel(ctx)
		defer stopPrune()
		go pruneRoutine(pruneCtx, svcs.pruner, cfg.Store.Retention, cfg.Store.PruneInterval)

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}
		internalAddr := listener.Addr().String()
		log.Info().Str("addr", internalAddr).Msg("starting internal HTTP server for MCP stdio")

		// No live events without a public listener
		httpServer := &http.Server{Handler: api.NewServer(svcs.game, nil, log.Logger)}
		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("internal HTTP server error")
			}
		}()
		defer httpServer.Close()

		baseURL = "http://" + internalAddr
	}

	mcpClient := mcp.NewClient(baseURL)
	log.Info().Str("api", baseURL).Msg("MCP stdio server ready")

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}
