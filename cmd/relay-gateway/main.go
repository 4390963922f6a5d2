// ABOUTME: Entry point for the relay-gateway message-routing server
// ABOUTME: Forwards submit posts to peer gateways and vendor APIs by routing table

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/2389/relay-gateway/internal/config"
	"github.com/2389/relay-gateway/internal/gateway"
	"github.com/2389/relay-gateway/internal/route"
	"github.com/2389/relay-gateway/internal/sign"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
            _                             _
  _ __ ___| | __ _ _   _       __ _  __ _| |_ _____      ____ _ _   _
 | '__/ _ \ |/ _' | | | |____ / _' |/ _' | __/ _ \ \ /\ / / _' | | | |
 | | |  __/ | (_| | |_| |____| (_| | (_| | ||  __/\ V  V / (_| | |_| |
 |_|  \___|_|\__,_|\__, |     \__, |\__,_|\__\___| \_/\_/ \__,_|\__, |
                   |___/      |___/                             |___/
`

// getConfigPath returns the path to the gateway config file.
// Priority: RELAY_CONFIG env var > ./gateway.yaml
func getConfigPath() string {
	if envPath := os.Getenv("RELAY_CONFIG"); envPath != "" {
		return envPath
	}
	return "gateway.yaml"
}

func main() {
	// A local .env is a convenience for development; absence is fine.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Println("Usage: relay-gateway <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve    Start the gateway server")
		fmt.Println("  routes   Load and print the configured routing table")
		fmt.Println("  sign     Sign a request body from stdin, print the headers")
		fmt.Println("  version  Print the version")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "routes":
		err = runRoutes(ctx)
	case "sign":
		err = runSign()
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:  %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:    %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Routes:  %s (%s)\n", cfg.Routes.Backend, cfg.Routes.Connection)
	if cfg.Signing.PublicID != "" {
		green.Print("    ▶ ")
		fmt.Printf("Signing: ")
		cyan.Print(cfg.Signing.PublicID)
		if cfg.Signing.ForwardSigned {
			color.New(color.FgYellow).Print(" [forwarding signed]")
		}
		fmt.Println()
	}
	fmt.Println()

	logger.Info("starting relay-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"backend", cfg.Routes.Backend,
	)

	svc, err := gateway.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return svc.Run(ctx)
}

// runRoutes loads the configured backend once and prints the validated table.
func runRoutes(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	source, err := route.Open(ctx, cfg.Routes.Backend, cfg.Routes.Connection)
	if err != nil {
		return fmt.Errorf("opening route source: %w", err)
	}
	if closer, ok := source.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	profiles, err := source.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading routes: %w", err)
	}

	table, err := route.BuildTable(profiles)
	if err != nil {
		return fmt.Errorf("building route table: %w", err)
	}

	if len(table) == 0 {
		fmt.Println("no routes configured")
		return nil
	}
	for key, profile := range table {
		fmt.Printf("%-30s %-15s %s (timeout %dms)\n", key, profile.Api, profile.BaseAddress, profile.Timeout)
	}
	return nil
}

// runSign reads a body from stdin and prints the four signed-protocol
// headers, for poking a remote gateway with curl.
func runSign() error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	signer, err := sign.New(cfg.Signing.PublicID, []byte(cfg.Signing.PrivateSecret), time.Duration(cfg.Signing.AllowedDeltaSeconds)*time.Second)
	if err != nil {
		return fmt.Errorf("configuring signing: %w", err)
	}
	if !signer.Enabled() {
		return fmt.Errorf("signing is not configured")
	}

	body, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("reading body: %w", err)
	}

	timestamp, nonce, signature, err := signer.Sign(body)
	if err != nil {
		return fmt.Errorf("signing body: %w", err)
	}

	fmt.Printf("%s: %s\n", sign.HeaderPublicID, signer.PublicID())
	fmt.Printf("%s: %s\n", sign.HeaderNonce, nonce)
	fmt.Printf("%s: %s\n", sign.HeaderTimestamp, timestamp)
	fmt.Printf("%s: %s\n", sign.HeaderSignature, signature)
	return nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

