package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/facefind/internal/config"
	"github.com/kozaktomas/facefind/internal/ingest"
	"github.com/kozaktomas/facefind/internal/match"
	"github.com/kozaktomas/facefind/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Watch for new photos and serve the guest search UI",
	Long: `Start the facefind server.
The server watches the configured directory for incoming photos, indexes
the faces it finds, and serves a browser page where guests upload a selfie
to find the photos they appear in.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

// localIP returns the machine's outbound LAN address so the startup banner
// can print a URL guests on the same network can open. No packets are sent,
// the dial just selects a route.
func localIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return ""
	}
	defer conn.Close()
	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}
	return ""
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	provider := newProvider(cfg)
	engine := match.NewEngine(st, cfg.Search.Threshold)
	ctrl := ingest.NewController(cfg.Ingest.Concurrency)
	pipeline := ingest.NewPipeline(cfg.Ingest, cfg.Embedding, cfg.Formats, provider, st, ctrl)

	if cfg.Ingest.Mode == config.IngestModeMove {
		if err := os.MkdirAll(cfg.Ingest.PhotosDir, 0o755); err != nil {
			return fmt.Errorf("creating photos directory: %w", err)
		}
	}

	watcher, err := ingest.NewWatcher(cfg.Ingest.WatchDir, pipeline)
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}

	port, host := resolveServeHostPort(cmd)
	server := web.NewServer(cfg, port, host, st, engine, provider)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		cancel()

		if err := watcher.Stop(); err != nil {
			fmt.Printf("Error stopping watcher: %v\n", err)
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Watching %s for new photos\n", cfg.Ingest.WatchDir)
	fmt.Printf("Starting facefind on http://%s:%d\n", host, port)
	if ip := localIP(); ip != "" {
		fmt.Printf("Guests on this network: http://%s:%d\n", ip, port)
	}
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
