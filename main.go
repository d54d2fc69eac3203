package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	webview "github.com/webview/webview_go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kartoza/movie-predict/internal/config"
	"github.com/kartoza/movie-predict/internal/server"
)

var version = "dev"

var (
	cfg *config.Config

	flagPort     int
	flagDataDir  string
	flagBackend  string
	flagHeadless bool
)

var rootCmd = &cobra.Command{
	Use:           "movie-predict",
	Short:         "Movie success prediction with what-if simulation",
	Long:          "Serves the movie prediction page, forwarding predictions to the model backend and running what-if slider simulations against the result.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}

		// Explicit flags win over file and environment
		flags := cmd.Flags()
		if flags.Changed("port") {
			c.Server.Port = flagPort
		}
		if flags.Changed("data-dir") {
			c.DataDir = flagDataDir
		}
		if flags.Changed("backend") {
			c.Backend.URL = flagBackend
		}
		if err := c.Validate(); err != nil {
			return err
		}
		c.Version = version
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context(), *cfg, flagHeadless)
	},
}

func init() {
	rootCmd.SetVersionTemplate("Movie Predict v{{.Version}}\n")

	rootCmd.Flags().IntVar(&flagPort, "port", 8080, "HTTP server port")
	rootCmd.Flags().StringVar(&flagDataDir, "data-dir", "", "Directory containing data files (samples.db)")
	rootCmd.Flags().BoolVar(&flagHeadless, "headless", false, "Run in headless mode (no GUI window)")
	rootCmd.PersistentFlags().StringVar(&flagBackend, "backend", "", "Prediction backend base URL")

	rootCmd.AddCommand(simulateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg config.Config, headless bool) error {
	log := zap.L()

	// Find an available port (try up to 10 ports starting from the requested one)
	availablePort, err := findAvailablePort(cfg.Server.Port, 10)
	if err != nil {
		return err
	}
	if availablePort != cfg.Server.Port {
		log.Info("port in use, using another", zap.Int("requested", cfg.Server.Port), zap.Int("port", availablePort))
	}
	cfg.Server.Port = availablePort

	log.Info("Movie Predict starting",
		zap.String("version", cfg.Version),
		zap.Int("port", cfg.Server.Port),
		zap.String("data_dir", cfg.DataDir),
		zap.String("backend", cfg.Backend.URL),
	)

	srv, err := server.New(cfg)
	if err != nil {
		return eris.Wrap(err, "create server")
	}

	// Graceful shutdown on SIGINT/SIGTERM
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server")
		}
		return nil
	})

	serverURL := fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	waitForServer(serverURL, 10*time.Second)

	if headless {
		// Headless mode: wait for signal or server error
		<-gctx.Done()
		log.Info("shutting down")
	} else {
		// GUI mode: open embedded WebView window
		log.Info("opening application window")
		w := webview.New(false)
		defer w.Destroy()

		w.SetTitle("Movie Predict")
		w.SetSize(1280, 800, webview.HintNone)
		w.Navigate(serverURL)

		// A signal or server failure closes the window
		go func() {
			<-gctx.Done()
			w.Terminate()
		}()

		// Run blocks until the window is closed
		w.Run()
		log.Info("window closed, shutting down server")
	}

	if err := srv.Stop(); err != nil {
		log.Warn("error during shutdown", zap.Error(err))
	}
	return g.Wait()
}

// waitForServer polls until the server is accepting connections
func waitForServer(url string, timeout time.Duration) {
	addr := url[len("http://"):]
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	zap.L().Warn("server may not be ready", zap.String("url", url))
}

// findAvailablePort finds an available port, starting from the given port.
// If the port is in use, it tries subsequent ports up to maxAttempts times.
func findAvailablePort(startPort int, maxAttempts int) (int, error) {
	for i := 0; i < maxAttempts; i++ {
		port := startPort + i
		listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err == nil {
			listener.Close()
			return port, nil
		}
	}
	return 0, eris.Errorf("no available port found after %d attempts starting from %d", maxAttempts, startPort)
}
