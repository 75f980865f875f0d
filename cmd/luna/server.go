package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/luna-svc/luna/internal/analytics"
	"github.com/luna-svc/luna/internal/api"
	"github.com/luna-svc/luna/internal/config"
	"github.com/luna-svc/luna/internal/dispatch"
	"github.com/luna-svc/luna/internal/provider"
	"github.com/luna-svc/luna/internal/session"
	"github.com/luna-svc/luna/internal/storage"
	"github.com/luna-svc/luna/internal/tokencount"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the luna server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running luna server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show luna system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "luna.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "luna version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize structured logging.
	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Logging.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	if cfg.Server.JWTSecret == "" {
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return fmt.Errorf("generating jwt secret: %w", err)
		}
		cfg.Server.JWTSecret = hex.EncodeToString(secret)
		printWarning("no jwt secret configured; generated an ephemeral one for this run")
		printWarning("set LUNA_SERVER_JWT_SECRET to keep tokens valid across restarts")
	}

	// Write PID file. Check if server is already running via health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("luna is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("luna is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open storage.
	printStep("opening storage at %s", cfg.Storage.DataDir)
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()
	if err := store.SeedDemoJobs(); err != nil {
		return fmt.Errorf("seeding demo jobs: %w", err)
	}

	// Build the provider gateway.
	gemini := provider.NewGemini(cfg.Gemini.BaseURL, cfg.Gemini.APIKey, cfg.Gemini.Model)
	gateway := provider.Gateway{
		Completer:     gemini,
		Chains:        provider.NewRunner(gemini),
		Conversations: provider.NewConversationStore(gemini, cfg.Session.MemoryWindow),
	}
	if cfg.Voice.Enabled {
		gateway.Voice = provider.NewVoiceClient(cfg.Voice.BaseURL)
		slog.Info("voice capability enabled", "base_url", cfg.Voice.BaseURL)
	}

	// Sessions, analytics, and the dispatch service.
	sessions := session.NewStore(gateway.Conversations, gateway.Completer, time.Duration(cfg.Session.TTLHours)*time.Hour)
	go sessions.RunJanitor(ctx, time.Duration(cfg.Session.JanitorMinutes)*time.Minute)

	recorder := analytics.NewRecorder(store)
	svc := dispatch.NewService(gateway, sessions, recorder, nil, tokencount.NewTiktoken(""))

	// Build and start MCP server (stdio transport in a goroutine).
	mcpSrv := api.NewMCPServer(api.MCPDeps{Service: svc})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	// HTTP server.
	handler := api.NewHTTPHandler(api.HTTPDeps{
		Service:   svc,
		Store:     store,
		JWTSecret: cfg.Server.JWTSecret,
	})
	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Start server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "luna listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for signal or server error.
	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("luna is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop luna (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to luna (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	// Check server health.
	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		defer resp.Body.Close()
		if resp.StatusCode == 200 {
			var health struct {
				Overall      string            `json:"overall_status"`
				Capabilities map[string]string `json:"capabilities"`
			}
			if json.NewDecoder(resp.Body).Decode(&health) == nil {
				printStatus("Server", "running on port %d (%s)", cfg.Server.Port, health.Overall)
				for name, status := range health.Capabilities {
					printStatus("  "+name, "%s", status)
				}
			} else {
				printStatus("Server", "running on port %d", cfg.Server.Port)
			}
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Model", "%s", cfg.Gemini.Model)
	if cfg.Voice.Enabled {
		printStatus("Voice", "enabled (%s)", cfg.Voice.BaseURL)
	} else {
		printStatus("Voice", "disabled")
	}
	printStatus("Session TTL", "%dh", cfg.Session.TTLHours)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
