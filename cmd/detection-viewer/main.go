package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/detection-viewer/internal/config"
	"github.com/ironsheep/detection-viewer/internal/detection"
	"github.com/ironsheep/detection-viewer/internal/imaging"
	"github.com/ironsheep/detection-viewer/internal/logging"
	"github.com/ironsheep/detection-viewer/internal/metrics"
	"github.com/ironsheep/detection-viewer/internal/server"
	"github.com/ironsheep/detection-viewer/internal/viewer"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("detection-viewer %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			printHelp()
			return
		}
	}

	configPath := flag.String("config", os.Getenv(config.EnvPrefix+"CONFIG"), "Path to a JSON config file")
	envFile := flag.String("env", ".env", "Env file loaded before environment overrides")
	noBrowser := flag.Bool("no-browser", false, "Log image URLs instead of opening them")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	// stdout carries the protocol, so logs go to stderr and the optional file
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logging error: %v\n", err)
		os.Exit(1)
	}
	logger.WithFields(logrus.Fields{
		"version": Version,
		"built":   BuildTime,
		"commit":  GitCommit,
	}).Debug("detection viewer starting")

	m := metrics.New(cfg.Metrics.Namespace)

	opener := openInBrowser
	if *noBrowser {
		opener = func(url string) error {
			logger.WithField("url", url).Info("open image url")
			return nil
		}
	}

	v, err := viewer.New(viewer.Options{
		Logger:           logger.WithField("component", "viewer"),
		Metrics:          m,
		RasterLoader:     imaging.NewFetcher(cfg.Fetch.Timeout(), logger.WithField("path", "raster")),
		FallbackLoader:   imaging.NewFetcher(cfg.Fetch.FallbackTimeout(), logger.WithField("path", "overlay")),
		Opener:           opener,
		Container:        cfg.Viewer.Container(),
		Window:           cfg.Viewer.Window(),
		Background:       cfg.Viewer.BackgroundColor(),
		Filter:           cfg.Viewer.Filter(),
		Threshold:        cfg.Viewer.Threshold,
		MaxSurfacePixels: cfg.Viewer.MaxSurfacePixels,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to start viewer")
	}
	defer v.Close()

	var catalog *detection.Catalog
	if cfg.Dataset != "" {
		if catalog, err = detection.LoadCatalogFile(cfg.Dataset); err != nil {
			logger.WithError(err).Fatal("failed to load dataset")
		}
		logger.WithFields(logrus.Fields{
			"path":    cfg.Dataset,
			"entries": catalog.Len(),
		}).Info("dataset loaded")
	}

	srv := server.New(server.Options{
		Viewer:  v,
		Metrics: m,
		Logger:  logger.WithField("component", "server"),
		Catalog: catalog,
		Version: Version,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(ctx)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.WithError(err).Error("server error")
			v.Close()
			os.Exit(1)
		}
	case sig := <-sigChan:
		logger.WithField("signal", sig.String()).Info("shutting down")
		cancel()
	}
}

func printHelp() {
	fmt.Println("detection-viewer - MCP server for viewing object detection results")
	fmt.Println()
	fmt.Println("Usage: detection-viewer [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version, -v     Print version information")
	fmt.Println("  --help, -h        Print this help message")
	fmt.Println("  -config <path>    JSON config file")
	fmt.Println("  -env <path>       Env file (default .env)")
	fmt.Println("  -no-browser       Log image URLs instead of opening them")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Printf("  %sCONFIG=<path>         Config file\n", config.EnvPrefix)
	fmt.Printf("  %sDATASET=<path>        Dataset loaded at startup\n", config.EnvPrefix)
	fmt.Printf("  %sLOG_LEVEL=debug       Enable debug logging\n", config.EnvPrefix)
	fmt.Println()
	fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
	fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
}

// openInBrowser hands url to the desktop's default handler.
func openInBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open %s: %w", url, err)
	}
	go cmd.Wait()
	return nil
}
