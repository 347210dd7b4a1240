package main

import (
	"fmt"
	"os"
	"time"

	"followback/pkg/auth"
	"followback/pkg/config"
	"followback/pkg/github"
	"followback/pkg/logger"
	"followback/pkg/ratelimit"
	"followback/pkg/state"
)

// loadConfig builds the effective configuration from all sources and wires
// stored credentials in when the config carries none
func loadConfig(extraFlags map[string]interface{}) (*config.Config, error) {
	flags := globalFlags()
	for k, v := range extraFlags {
		flags[k] = v
	}

	cfg, err := config.Load(configFile, flags)
	if err == nil {
		return cfg, nil
	}

	// A missing token is the one validation failure the credential manager
	// can repair
	cfg = config.DefaultConfig()
	if ferr := cfg.LoadFromFile(configFile); ferr != nil {
		return nil, err
	}
	if ferr := cfg.LoadFromEnv(); ferr != nil {
		return nil, err
	}
	cfg.MergeCommandLineFlags(flags)

	if cfg.GitHub.Token == "" {
		account, aerr := retrieveAccount(cfg.GitHub.Username)
		if aerr != nil {
			return nil, err
		}
		cfg.GitHub.Username = account.Username
		cfg.GitHub.Token = account.Token
		if account.UserAgent != "" {
			cfg.GitHub.UserAgent = account.UserAgent
		}
	}

	if verr := cfg.Validate(); verr != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", verr)
	}
	return cfg, nil
}

// retrieveAccount looks up stored credentials, by username when one is known
func retrieveAccount(username string) (*auth.Account, error) {
	manager, err := auth.NewManager()
	if err != nil {
		return nil, err
	}
	if username != "" {
		return manager.Retrieve(username)
	}
	return manager.RetrieveDefault()
}

// app bundles the wired components every command starts from
type app struct {
	cfg     *config.Config
	logger  logger.Logger
	client  *github.Client
	store   *state.Store
	guard   *ratelimit.QuotaGuard
	limiter ratelimit.Limiter
}

// newApp loads configuration, initializes logging, and wires the client,
// state store, and rate limiting
func newApp(extraFlags map[string]interface{}) (*app, error) {
	cfg, err := loadConfig(extraFlags)
	if err != nil {
		return nil, err
	}

	logger.Initialize(&cfg.Logging)
	log := logger.GetLogger()

	client := github.NewClient(&cfg.GitHub, log)

	store, err := state.NewStore(cfg.State.Directory, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}

	return &app{
		cfg:     cfg,
		logger:  log,
		client:  client,
		store:   store,
		guard:   ratelimit.NewQuotaGuard(client, cfg.RateLimit.LowWaterMark, cfg.RateLimit.FallbackCooldown, log),
		limiter: ratelimit.NewTokenBucket(cfg.RateLimit.RequestsPerMinute, time.Minute),
	}, nil
}

// fail prints an error and exits
func fail(message string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", message, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", message)
	}
	os.Exit(1)
}
