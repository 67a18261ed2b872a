package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/natefinch/lumberjack"
	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/namefinder/pkg/api"
	"github.com/hazyhaar/namefinder/pkg/finder"
)

const version = "0.1.0"

type config struct {
	Addr             string  `yaml:"addr"`
	ReferencePath    string  `yaml:"reference_path"`
	UploadDir        string  `yaml:"upload_dir"`
	MaxUploadMB      int64   `yaml:"max_upload_mb"`
	DefaultThreshold float64 `yaml:"default_threshold"`
	RoundScores      int     `yaml:"round_scores"`
	LogLevel         string  `yaml:"log_level"`
	LogFile          string  `yaml:"log_file"`
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "mcp":
		cmdMCP(os.Args[2:])
	case "build":
		cmdBuild(os.Args[2:])
	case "generate":
		cmdGenerate(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: namefinder <command>

Commands:
  serve      Start the HTTP server
  mcp        Serve the MCP tools over stdio
  build      Build a reference dataset from a people file
  generate   Write a fake reference or trial dataset
`)
}

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	fs.Parse(args)

	cfg, logger := setup(*cfgPath, os.Stderr)
	f := finder.New(finder.Config{ReferencePath: cfg.ReferencePath}, logger)
	router := api.NewRouter(f, apiOptions(cfg, logger))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// SIGINT/SIGTERM: graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("namefinder listening", "addr", cfg.Addr, "reference", cfg.ReferencePath)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

func cmdMCP(args []string) {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	fs.Parse(args)

	// stdout carries the protocol; logs go to stderr and the log file only.
	cfg, logger := setup(*cfgPath, os.Stderr)
	f := finder.New(finder.Config{ReferencePath: cfg.ReferencePath}, logger)

	srv := server.NewMCPServer("namefinder", version, server.WithToolCapabilities(false))
	api.RegisterMCPTools(srv, f, apiOptions(cfg, logger))

	logger.Info("namefinder mcp on stdio", "reference", cfg.ReferencePath)
	if err := server.ServeStdio(srv); err != nil {
		logger.Error("mcp server error", "error", err)
		os.Exit(1)
	}
}

func apiOptions(cfg config, logger *slog.Logger) api.Options {
	return api.Options{
		UploadDir:        cfg.UploadDir,
		MaxUploadBytes:   cfg.MaxUploadMB << 20,
		RoundScores:      cfg.RoundScores,
		DefaultThreshold: cfg.DefaultThreshold,
		Logger:           logger,
	}
}

// setup loads the config, then builds the logger it describes.
func setup(path string, stderr io.Writer) (config, *slog.Logger) {
	boot := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	cfg := loadConfig(path, boot)
	logger, err := newLogger(cfg, stderr)
	if err != nil {
		boot.Error("logger", "error", err)
		os.Exit(1)
	}
	return cfg, logger
}

func newLogger(cfg config, stderr io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return nil, fmt.Errorf("log_level %q: %w", cfg.LogLevel, err)
	}
	w := stderr
	if cfg.LogFile != "" {
		w = io.MultiWriter(stderr, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    50, // MB
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		})
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}

func defaultConfig() config {
	return config{
		Addr:             ":8421",
		ReferencePath:    "data/people.parquet",
		UploadDir:        os.TempDir(),
		MaxUploadMB:      64,
		DefaultThreshold: 0.95,
		RoundScores:      2,
		LogLevel:         "info",
	}
}

func loadConfig(path string, logger *slog.Logger) config {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("no config file, using defaults", "path", path)
			return cfg
		}
		logger.Error("read config", "error", err)
		os.Exit(1)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		logger.Error("parse config", "error", err)
		os.Exit(1)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	return cfg
}
