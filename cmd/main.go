package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"go.uber.org/zap"

	cfgPkg "github.com/xhad/company-agent/pkg/config"
	"github.com/xhad/company-agent/pkg/crawl"
	"github.com/xhad/company-agent/pkg/directory"
	"github.com/xhad/company-agent/pkg/knowledge"
	"github.com/xhad/company-agent/pkg/llm"
	"github.com/xhad/company-agent/pkg/logger"
	"github.com/xhad/company-agent/pkg/session"
	"github.com/xhad/company-agent/pkg/store"
	"github.com/xhad/company-agent/server"
)

type Flags struct {
	ConfigPath   string
	Serve        bool
	Port         string
	Provider     string
	BaseURL      string
	Model        string
	Temperature  float64
	MaxTokens    int
	DomainURL    string
	KnowledgeURL string
	CrawlURL     string
	LogLevel     string
}

func main() {
	flags, set := parseFlags(os.Args[1:])

	config, err := loadConfig(flags, set)
	if err != nil {
		color.Red("%v", err)
		os.Exit(1)
	}

	log := logger.New(config.Log.Level, config.Log.Format)
	defer log.Sync()

	// The terminal chat keeps the default interrupt handling so Ctrl-C quits
	// while waiting for input.
	ctx := context.Background()
	if flags.Serve {
		var cancel context.CancelFunc
		ctx, cancel = signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer cancel()
	}

	if err := run(ctx, config, flags.Serve, log); err != nil {
		log.Error("exiting", zap.Error(err))
		os.Exit(1)
	}
}

// parseFlags returns the parsed flags and the names of those given on the
// command line; only those override the config file.
func parseFlags(args []string) (Flags, map[string]bool) {
	var flags Flags
	fs := flag.NewFlagSet("company-agent", flag.ExitOnError)

	fs.StringVar(&flags.ConfigPath, "config", "", "Path to config file")
	fs.BoolVar(&flags.Serve, "serve", false, "Run the web chat server instead of the terminal chat")
	fs.StringVar(&flags.Port, "port", "", "Port for the web chat server")
	fs.StringVar(&flags.Provider, "provider", "", "LLM provider (openai or ollama)")
	fs.StringVar(&flags.BaseURL, "llm-url", "", "LLM server URL")
	fs.StringVar(&flags.Model, "model", "", "LLM model to use")
	fs.Float64Var(&flags.Temperature, "temperature", 0, "Set the LLM Temperature")
	fs.IntVar(&flags.MaxTokens, "max-tokens", 0, "Maximum tokens for LLM response")
	fs.StringVar(&flags.DomainURL, "domain-api", "", "Company domain directory URL (empty uses demo companies)")
	fs.StringVar(&flags.KnowledgeURL, "knowledge-api", "", "Company knowledge API URL (empty uses demo knowledge)")
	fs.StringVar(&flags.CrawlURL, "crawl-api", "", "Website crawl API URL")
	fs.StringVar(&flags.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.Parse(args)

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return flags, set
}

func loadConfig(flags Flags, set map[string]bool) (*cfgPkg.Config, error) {
	config, err := cfgPkg.LoadConfig(flags.ConfigPath)
	if err != nil {
		return nil, err
	}

	// Override config with command line flags if provided
	if set["port"] {
		config.Server.Port = flags.Port
	}
	if set["provider"] {
		config.SetProvider(flags.Provider)
	}
	if set["llm-url"] {
		config.LLM.BaseURL = flags.BaseURL
	}
	if set["model"] {
		config.LLM.Model = flags.Model
	}
	if set["temperature"] {
		config.LLM.Temperature = flags.Temperature
	}
	if set["max-tokens"] {
		config.LLM.MaxTokens = flags.MaxTokens
	}
	if set["domain-api"] {
		config.API.DomainURL = flags.DomainURL
	}
	if set["knowledge-api"] {
		config.API.KnowledgeURL = flags.KnowledgeURL
	}
	if set["crawl-api"] {
		config.API.CrawlURL = flags.CrawlURL
	}
	if set["log-level"] {
		config.Log.Level = flags.LogLevel
	}

	if errs := config.Validate(); len(errs) > 0 {
		msg := "invalid configuration:"
		for _, e := range errs {
			msg += "\n  " + e.Error()
		}
		return nil, fmt.Errorf("%s", msg)
	}
	return config, nil
}

func buildDeps(config *cfgPkg.Config, log *zap.Logger) (session.Deps, error) {
	composer, err := llm.NewWithConfig(llm.ComposerConfig{
		Provider:    config.LLM.Provider,
		Model:       config.LLM.Model,
		Temperature: config.LLM.Temperature,
		MaxTokens:   config.LLM.MaxTokens,
		BaseURL:     config.LLM.BaseURL,
		APIKey:      config.LLM.APIKey,
		Timeout:     config.LLM.Timeout,
		Logger:      log,
	})
	if err != nil {
		return session.Deps{}, fmt.Errorf("failed to initialize answer composer: %w", err)
	}

	deps := session.Deps{
		Directory: directory.NewWithConfig(directory.ClientConfig{Timeout: config.API.Timeout, Logger: log}),
		Knowledge: knowledge.NewWithConfig(knowledge.ClientConfig{Timeout: config.API.Timeout, Logger: log}),
		Composer:  composer,
		Crawler:   crawl.NewWithConfig(crawl.ClientConfig{Timeout: config.API.Timeout, Logger: log}),
		Logger:    log,
	}
	return deps, nil
}

func sessionSettings(config *cfgPkg.Config) session.Settings {
	return session.Settings{
		DomainAPIURL:    config.API.DomainURL,
		KnowledgeAPIURL: config.API.KnowledgeURL,
		CrawlAPIURL:     config.API.CrawlURL,
		Model:           config.LLM.Model,
		Temperature:     config.LLM.Temperature,
		IncludeFields:   config.Fields(),
	}
}

func run(ctx context.Context, config *cfgPkg.Config, serve bool, log *zap.Logger) error {
	deps, err := buildDeps(config, log)
	if err != nil {
		return err
	}
	if config.Database.URL != "" {
		archive, err := store.NewWithConfig(ctx, store.ArchiveConfig{
			ConnString: config.Database.URL,
			TableName:  config.Database.TableName,
			Logger:     log,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize transcript archive: %w", err)
		}
		defer archive.Close()
		deps.Archive = archive
	}
	settings := sessionSettings(config)

	if serve {
		srv, err := server.NewWSServer(server.Config{Settings: settings, Logger: log}, deps)
		if err != nil {
			return err
		}
		return srv.ListenAndServe(ctx, ":"+config.Server.Port)
	}

	return newCLI(session.New(deps, settings), os.Stdin, os.Stdout).run(ctx)
}
