package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/charmbracelet/log"

	"github.com/serdar/zest/internal/config"
	"github.com/serdar/zest/internal/runner"
	"github.com/serdar/zest/pkg/version"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "run":
			runCmd()
			return
		case "init":
			initCmd()
			return
		case "validate":
			validateCmd()
			return
		case "version":
			fmt.Printf("zest %s (%s) built %s\n", version.Version, version.Commit, version.Date)
			return
		case "help", "-h", "--help":
			printHelp()
			return
		default:
			fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", os.Args[1])
			printHelp()
			os.Exit(2)
		}
	}
	printHelp()
}

func printHelp() {
	fmt.Fprintf(os.Stderr, `zest - scriptable API client for the terminal

Usage:
  zest <command> [args] [flags]

Commands:
  run       Run API requests from a collection file
  init      Create a new .zest.yaml collection
  validate  Validate collection and environment YAML files
  version   Print version information
  help      Show this help message

Run 'zest <command> --help' for more information about a command.
`)
}

func runCmd() {
	appCfg := config.Load()

	fs := flag.NewFlagSet("run", flag.ExitOnError)
	envFlag := fs.String("env", "", "Environment name to use")
	requestFlag := fs.String("request", "", "Run a single request by name")
	folderFlag := fs.String("folder", "", "Run all requests in a folder")
	outputFlag := fs.String("output", "text", "Output format: text, json, junit")
	verboseFlag := fs.Bool("verbose", false, "Show response bodies and headers")
	timeoutFlag := fs.Duration("timeout", appCfg.DefaultTimeout, "Request timeout")
	historyFlag := fs.Bool("history", false, "Record runs in the local history database")
	cookiesFlag := fs.Bool("cookies", false, "Use the persistent cookie jar")
	passphraseFlag := fs.String("passphrase", "", "Passphrase for secret environment values (or ZEST_PASSPHRASE)")
	proxyFlag := fs.String("proxy", appCfg.Proxy.URL, "Proxy URL (http://, https://, or socks5://)")
	insecureFlag := fs.Bool("insecure", false, "Skip TLS certificate verification")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: zest run <collection.zest.yaml> [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Run API requests from a collection file.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  zest run api.zest.yaml\n")
		fmt.Fprintf(os.Stderr, "  zest run api.zest.yaml --env Production\n")
		fmt.Fprintf(os.Stderr, "  zest run api.zest.yaml --request \"Get Users\" --verbose\n")
		fmt.Fprintf(os.Stderr, "  zest run api.zest.yaml --folder Auth --output json\n")
		fmt.Fprintf(os.Stderr, "  zest run api.zest.yaml --output junit > results.xml\n")
		fmt.Fprintf(os.Stderr, "\nExit codes:\n")
		fmt.Fprintf(os.Stderr, "  0  All requests succeeded, all tests passed\n")
		fmt.Fprintf(os.Stderr, "  1  One or more script test assertions failed\n")
		fmt.Fprintf(os.Stderr, "  2  One or more requests had errors\n")
	}

	if err := fs.Parse(os.Args[2:]); err != nil {
		os.Exit(2)
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: false})
	if *verboseFlag {
		logger.SetLevel(log.DebugLevel)
	}

	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: collection file path is required\n\n")
		fs.Usage()
		os.Exit(2)
	}
	collectionPath := fs.Arg(0)

	switch *outputFlag {
	case "text", "json", "junit":
	default:
		logger.Error("invalid output format (must be text, json, or junit)", "format", *outputFlag)
		os.Exit(2)
	}

	passphrase := *passphraseFlag
	if passphrase == "" {
		passphrase = os.Getenv("ZEST_PASSPHRASE")
	}

	cfg := runner.Config{
		CollectionPath: collectionPath,
		Environment:    *envFlag,
		RequestName:    *requestFlag,
		FolderName:     *folderFlag,
		OutputFormat:   *outputFlag,
		Verbose:        *verboseFlag,
		Timeout:        *timeoutFlag,
		Passphrase:     passphrase,
		ProxyURL:       *proxyFlag,
		NoProxy:        appCfg.Proxy.NoProxy,
	}

	tlsCfg := appCfg.TLS
	if *insecureFlag {
		tlsCfg.InsecureSkipVerify = true
	}
	if !tlsCfg.IsEmpty() {
		cfg.TLS = &tlsCfg
	}

	if *historyFlag {
		cfg.HistoryPath = appCfg.ResolvedHistoryPath()
		if err := os.MkdirAll(config.DataDir(), 0755); err != nil {
			logger.Error("creating data directory", "err", err)
			os.Exit(2)
		}
	}
	if *cookiesFlag {
		cfg.CookieJarPath = appCfg.ResolvedCookieJarPath()
		if err := os.MkdirAll(config.DataDir(), 0755); err != nil {
			logger.Error("creating data directory", "err", err)
			os.Exit(2)
		}
	}

	r, err := runner.New(cfg)
	if err != nil {
		logger.Error("setup failed", "err", err)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	start := time.Now()
	results, err := r.Run(ctx, cfg)
	if err != nil {
		r.Close()
		logger.Error("run failed", "err", err)
		os.Exit(2)
	}
	logger.Debug("run finished", "requests", len(results), "elapsed", time.Since(start))

	if err := r.Close(); err != nil {
		logger.Warn("cleanup", "err", err)
	}

	switch cfg.OutputFormat {
	case "json":
		if err := runner.PrintJSON(os.Stdout, results); err != nil {
			logger.Error("writing JSON", "err", err)
			os.Exit(2)
		}
	case "junit":
		if err := runner.PrintJUnit(os.Stdout, results); err != nil {
			logger.Error("writing JUnit XML", "err", err)
			os.Exit(2)
		}
	default:
		runner.PrintText(os.Stdout, results, cfg.Verbose)
	}

	os.Exit(runner.ExitCode(results))
}
