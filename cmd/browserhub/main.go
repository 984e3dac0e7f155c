// Package main provides the browserhub command, which runs one browser tool
// against Browserbase-hosted sessions and releases every session on exit.
package main

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/entrhq/browserhub/pkg/artifacts"
	"github.com/entrhq/browserhub/pkg/config"
	"github.com/entrhq/browserhub/pkg/driver/browserbase"
	"github.com/entrhq/browserhub/pkg/logging"
	"github.com/entrhq/browserhub/pkg/session"
	"github.com/entrhq/browserhub/pkg/tools"
	"github.com/entrhq/browserhub/pkg/tools/browser"
)

const (
	version = "0.1.0"

	shutdownTimeout = 30 * time.Second
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigFile  string
	Tool        string
	Name        string
	Session     string
	Args        string
	OutputFile  string
	Timeout     time.Duration
	ListTools   bool
	ShowVersion bool
}

func main() {
	cli := parseFlags()

	if cli.ShowVersion {
		fmt.Printf("browserhub v%s\n", version)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nShutting down gracefully...")
		cancel()
	}()

	if err := run(ctx, cli); err != nil {
		cancel()
		log.Printf("Execution failed: %v", err)
		os.Exit(1)
	}
	cancel()
}

// parseFlags parses command line flags
func parseFlags() *CLIConfig {
	cli := &CLIConfig{}

	flag.StringVar(&cli.ConfigFile, "config", "", "Path to configuration file (YAML)")
	flag.StringVar(&cli.Tool, "tool", "browser_screenshot", "Tool to run")
	flag.StringVar(&cli.Name, "name", "", "Value for the tool's name argument")
	flag.StringVar(&cli.Session, "session", "", "Browser session to act on (default: the active session)")
	flag.StringVar(&cli.Args, "args", "", "Raw <arguments> XML; overrides -name and -session")
	flag.StringVar(&cli.OutputFile, "out", "", "Write a captured screenshot to this file")
	flag.DurationVar(&cli.Timeout, "timeout", 2*time.Minute, "Execution timeout")
	flag.BoolVar(&cli.ListTools, "list-tools", false, "List available tools and exit")
	flag.BoolVar(&cli.ShowVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "browserhub - remote browser sessions on Browserbase\n\n")
		fmt.Fprintf(os.Stderr, "Usage: browserhub [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment:\n")
		fmt.Fprintf(os.Stderr, "  BROWSERBASE_API_KEY, BROWSERBASE_PROJECT_ID are required to create sessions\n\n")
		fmt.Fprintf(os.Stderr, "Examples:\n")
		fmt.Fprintf(os.Stderr, "  # Screenshot the default session's page\n")
		fmt.Fprintf(os.Stderr, "  browserhub -name home -out home.png\n\n")
		fmt.Fprintf(os.Stderr, "  # Start a named session\n")
		fmt.Fprintf(os.Stderr, "  browserhub -tool start_browser_session -name research\n\n")
	}

	flag.Parse()
	return cli
}

// run wires the stack, executes one tool and tears everything down.
func run(ctx context.Context, cli *CLIConfig) error {
	cfg, err := config.Load(cli.ConfigFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Close()

	if !cfg.Browserbase.HasCredentials() {
		logger.Warnf("Browserbase credentials are not configured; session creation will fail")
	}

	store, err := artifacts.Open(ctx, cfg.Artifacts)
	if err != nil {
		return fmt.Errorf("failed to open artifact store: %w", err)
	}
	defer store.Close()

	driver := browserbase.New(cfg.Browserbase, logger.With("browserbase"), nil)
	mgr := session.NewManager(driver,
		session.WithLogger(logger.With("session")),
		session.WithPurger(store),
		session.WithContextID(cfg.Browserbase.Context.ID),
	)
	defer shutdown(mgr, driver, logger)

	registry := browser.NewToolRegistry(mgr, store, logger.With("tools"))
	set := registry.Set()

	if cli.ListTools {
		for _, name := range set.Names() {
			t, _ := set.Get(name)
			fmt.Printf("%-28s %s\n", name, t.Description())
		}
		return nil
	}

	args := []byte(cli.Args)
	if cli.Args == "" {
		args = tools.BuildArguments("name", cli.Name, "session", cli.Session)
	}

	runCtx, cancel := context.WithTimeout(ctx, cli.Timeout)
	defer cancel()

	logger.Infof("running tool %s", cli.Tool)
	out, metadata, err := set.Execute(runCtx, cli.Tool, args)
	if err != nil {
		return fmt.Errorf("%s failed: %w", cli.Tool, err)
	}
	fmt.Println(out)

	if cli.OutputFile != "" {
		if err := writeImage(cli.OutputFile, metadata); err != nil {
			return err
		}
		fmt.Printf("\nSaved screenshot to %s\n", cli.OutputFile)
	}
	return nil
}

func newLogger(cfg config.LoggingConfig) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Verbosity)
	if err != nil {
		return nil, err
	}

	var logger *logging.Logger
	switch cfg.Dir {
	case "-":
		logger = logging.New("browserhub", os.Stderr)
	default:
		if cfg.Dir != "" {
			logging.SetLogDirectory(cfg.Dir)
		}
		// NewLogger falls back to stderr on error; the error is already logged there
		logger, _ = logging.NewLogger("browserhub")
	}
	logger.SetLevel(level)
	return logger, nil
}

// shutdown releases every remote session before stopping Playwright.
func shutdown(mgr *session.Manager, driver *browserbase.Driver, logger *logging.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	mgr.CleanupAll(ctx)
	if err := driver.Shutdown(); err != nil {
		logger.Errorf("failed to stop browser driver: %v", err)
	}
}

func writeImage(path string, metadata map[string]interface{}) error {
	encoded, ok := metadata["image_base64"].(string)
	if !ok {
		return fmt.Errorf("tool returned no image to write")
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("failed to decode image: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
