package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dwcli/dw/internal/config"
	"github.com/dwcli/dw/internal/engine"
	"github.com/dwcli/dw/internal/output"
	"github.com/dwcli/dw/internal/utils"
)

var (
	outputPath  string
	urlListFile string
	configPath  string
	silent      bool
	force       bool
	resume      bool
	debug       bool
	headers     []string
	userAgent   string
	parallel    int
	retries     int
	timeout     time.Duration
)

var DwVersion = "dev"

var rootCmd = &cobra.Command{
	Use:     "dw [flags] SOURCE [TARGET]",
	Short:   "dw is a concurrent CLI file downloader",
	Version: DwVersion,
	Args:    cobra.MaximumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		utils.InitLogger(debug)
		if len(args) == 0 && urlListFile == "" {
			output.PrintError("No URL or URL list provided")
			os.Exit(1)
		}
		if urlListFile != "" && len(args) > 0 {
			output.PrintError("Cannot specify url argument and --urllist together, choose one")
			os.Exit(1)
		}
		if resume {
			output.PrintWarning("Resume is not implemented yet, starting from scratch")
		}

		cfg, err := config.Load(configPath)
		if err != nil {
			output.PrintError(fmt.Sprintf("Config error: %v", err))
			os.Exit(1)
		}
		applyFlagOverrides(&cfg)

		requests, requestErrs := buildRequests(args, cfg)
		for _, rerr := range requestErrs {
			output.PrintError(rerr.Error())
		}
		if len(requests) == 0 {
			output.PrintError("No valid URLs provided")
			os.Exit(1)
		}

		var reporter engine.Reporter = engine.NopReporter{}
		var console *output.ConsoleReporter
		if !silent && cfg.Progress.Enable {
			console = output.NewConsoleReporter(cfg.Progress, cfg.Output)
			console.StartDisplay()
			reporter = console
		}

		coordinator := engine.NewCoordinator(engine.Options{
			Parallelism: cfg.Download.ParallelRequests,
			Retries:     cfg.Download.Retries,
			Force:       force,
			Transport: engine.TransportConfig{
				Timeout:        time.Duration(cfg.Download.TimeoutSecs) * time.Second,
				ConnectTimeout: time.Duration(cfg.Download.ConnectTimeoutSecs) * time.Second,
				UserAgent:      cfg.Download.UserAgent,
				Headers:        parseHeaderArgs(headers),
				SpeedLimit:     cfg.Download.SpeedLimit,
			},
		}, reporter)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		result := coordinator.Run(ctx, requests)

		if console != nil {
			console.StopDisplay()
			console.ShowSummary(result)
		}
		reportResult(result, cfg, len(requestErrs))
		if result.Failed > 0 || len(requestErrs) > 0 {
			os.Exit(1)
		}
	},
}

// reportResult prints counts and per-failure reasons. Failures are always
// reported, silent mode included.
func reportResult(result *engine.BatchResult, cfg config.Config, invalidURLs int) {
	if result.Failed == 0 && invalidURLs == 0 {
		if !silent && cfg.Output.MessageOnSuccess != "" {
			output.PrintSuccess(cfg.Output.MessageOnSuccess)
		}
		return
	}
	if cfg.Output.MessageOnErrors != "" {
		output.PrintError(cfg.Output.MessageOnErrors)
	}
	output.PrintError(fmt.Sprintf("%d succeeded, %d failed", result.Succeeded, result.Failed+invalidURLs))
	for _, failure := range result.Failures {
		output.PrintError(fmt.Sprintf("  %s %s: %v", output.StyleSymbols["fail"], failure.URL, failure.Err))
	}
}

func applyFlagOverrides(cfg *config.Config) {
	if parallel > 0 {
		cfg.Download.ParallelRequests = parallel
	}
	if retries > 0 {
		cfg.Download.Retries = retries
	}
	if timeout > 0 {
		cfg.Download.TimeoutSecs = int(timeout.Seconds())
	}
	if userAgent != "" {
		cfg.Download.UserAgent = userAgent
	}
	if silent {
		cfg.General.LogLevel = "silent"
	}
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path (dw derives the file name if not provided)")
	rootCmd.Flags().StringVarP(&urlListFile, "urllist", "l", "", "Path to YAML file containing URLs and output paths")
	rootCmd.Flags().StringVar(&configPath, "config", "", "Path to a TOML config file")
	rootCmd.Flags().BoolVarP(&silent, "silent", "s", false, "Silent mode (no progress rendering)")
	rootCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite if the file already exists")
	rootCmd.Flags().BoolVarP(&resume, "resume", "r", false, "Resume failed or cancelled download (reserved)")
	rootCmd.Flags().IntVarP(&parallel, "parallel", "w", 0, "Number of parallel downloads (overrides config)")
	rootCmd.Flags().IntVar(&retries, "retries", 0, "Max retry attempts per download (overrides config)")
	rootCmd.Flags().DurationVarP(&timeout, "timeout", "t", 0, "Transfer timeout (eg. 30s, 5m; overrides config)")
	rootCmd.Flags().StringVarP(&userAgent, "user-agent", "a", "", "User agent")
	rootCmd.Flags().StringArrayVarP(&headers, "header", "H", []string{}, "Custom headers (like 'Authorization: Basic dXNlcjpwYXNz'); can be specified multiple times")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")
}
