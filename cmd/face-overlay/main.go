package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/face-overlay/internal/config"
	"github.com/ironsheep/face-overlay/internal/httpapi"
	"github.com/ironsheep/face-overlay/internal/logging"
	"github.com/ironsheep/face-overlay/internal/server"
	"github.com/ironsheep/face-overlay/internal/session"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	httpMode := false

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("face-overlay %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			printHelp()
			return
		case "--http":
			httpMode = true
		default:
			fmt.Fprintf(os.Stderr, "unknown option %q, see --help\n", os.Args[1])
			os.Exit(2)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "face-overlay: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		File:   cfg.LogFile,
		Caller: cfg.LogLevel == "debug" || cfg.LogLevel == "trace",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "face-overlay: %v\n", err)
		os.Exit(1)
	}
	log.WithFields(logrus.Fields{
		"version": Version,
		"built":   BuildTime,
		"commit":  GitCommit,
		"http":    httpMode,
	}).Debug("starting face-overlay")

	style, err := cfg.Style()
	if err != nil {
		log.WithError(err).Fatal("invalid style")
	}
	opts := session.DefaultOptions()
	opts.Style = style
	opts.MaxHeight = cfg.MaxHeight
	opts.DecodeTimeout = time.Duration(cfg.DecodeTimeoutMS) * time.Millisecond
	opts.Logger = log

	sess, err := session.New(opts)
	if err != nil {
		log.WithError(err).Fatal("failed to create session")
	}
	defer sess.Close()

	if httpMode {
		if err := serveHTTP(cfg, sess, log); err != nil {
			log.WithError(err).Fatal("http server error")
		}
		return
	}

	srv := server.New(sess, log)
	if err := srv.Run(); err != nil {
		log.WithError(err).Fatal("server error")
	}
}

func serveHTTP(cfg config.Config, sess *session.Session, log *logrus.Logger) error {
	if cfg.LogLevel != "debug" && cfg.LogLevel != "trace" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(sess, log, httpapi.Options{AllowedOrigins: cfg.AllowedOrigins}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("http server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func printHelp() {
	fmt.Println("face-overlay - draws face recognition results over an image")
	fmt.Println()
	fmt.Println("Usage: face-overlay [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version, -v    Print version information")
	fmt.Println("  --help, -h       Print this help message")
	fmt.Println("  --http           Serve the HTTP API instead of MCP over stdio")
	fmt.Println()
	fmt.Println("Environment variables (also read from .env):")
	fmt.Printf("  %s=debug    Log level\n", config.EnvLogLevel)
	fmt.Printf("  %s          Also log to a rotated file\n", config.EnvLogFile)
	fmt.Printf("  %s         HTTP listen address (default 127.0.0.1:8085)\n", config.EnvHTTPAddr)
	fmt.Printf("  %s   Comma-separated CORS origins\n", config.EnvAllowedOrigins)
	fmt.Printf("  %s        Maximum rendered image height\n", config.EnvMaxHeight)
	fmt.Println()
	fmt.Println("Without --http the server speaks MCP over stdin/stdout.")
	fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
}
