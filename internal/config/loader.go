package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hashicorp/vault/api"
	"github.com/kelseyhightower/envconfig"

	"github.com/architeacher/svc-msg-queue/internal/ports"
)

var errSecretStorageDisabled = errors.New("secret storage is not enabled")

// Loader handles configuration loading and reloading.
type Loader struct {
	cfg              *ServiceConfig
	secretsRepo      ports.SecretsRepository
	configSignalChan chan os.Signal
	reloadErrors     chan error
	ticker           *time.Ticker
	lastVersion      uint
}

// NewLoader creates a new config loader instance.
func NewLoader(cfg *ServiceConfig, secretsRepo ports.SecretsRepository, initialVersion uint) *Loader {
	return &Loader{
		cfg:              cfg,
		secretsRepo:      secretsRepo,
		configSignalChan: make(chan os.Signal, 1),
		reloadErrors:     make(chan error, 1),
		lastVersion:      initialVersion,
	}
}

// WatchConfigSignals monitors for SIGHUP (reload) and SIGUSR1 (dump) signals.
// It also starts a background ticker for periodic config reloading if enabled.
// It returns a channel that will receive reload errors for logging by the caller.
func (l *Loader) WatchConfigSignals(ctx context.Context) <-chan error {
	signal.Notify(l.configSignalChan, syscall.SIGHUP, syscall.SIGUSR1)

	if l.cfg.SecretStorage.Enabled && l.cfg.SecretStorage.PollInterval > 0 {
		l.ticker = time.NewTicker(l.cfg.SecretStorage.PollInterval)
	}

	go func() {
		defer signal.Stop(l.configSignalChan)
		defer close(l.configSignalChan)
		defer close(l.reloadErrors)

		if l.ticker != nil {
			defer l.ticker.Stop()
		}

		var reloadTickerChan <-chan time.Time
		if l.ticker != nil {
			reloadTickerChan = l.ticker.C
		}

		for {
			select {
			case <-ctx.Done():
				return

			case <-reloadTickerChan:
				l.configSignalChan <- syscall.SIGHUP

			case sig := <-l.configSignalChan:
				switch sig {
				case syscall.SIGHUP:
					l.handleConfigReload(ctx)

				case syscall.SIGUSR1:
					l.DumpConfig()
				}
			}
		}
	}()

	return l.reloadErrors
}

// DumpConfig outputs the current configuration to stdout as JSON, credentials masked.
func (l *Loader) DumpConfig() {
	l.dumpConfig(os.Stdout)
}

func (l *Loader) dumpConfig(out io.Writer) {
	configJSON, err := json.MarshalIndent(l.cfg.Redacted(), "", "  ")
	if err != nil {
		fmt.Fprintf(out, "Error marshaling config: %v\n", err)

		return
	}

	fmt.Fprintf(out, "\n=== Configuration Dump ===\n%s\n=== End Configuration ===\n\n", string(configJSON))
}

const redactedValue = "******"

// Redacted returns a copy of the configuration with credentials masked.
func (c *ServiceConfig) Redacted() ServiceConfig {
	redacted := *c

	for _, field := range []*string{
		&redacted.SecretStorage.Token,
		&redacted.SecretStorage.SecretID,
		&redacted.Cache.Password,
		&redacted.Storage.Password,
		&redacted.AMQP.Password,
	} {
		if *field != "" {
			*field = redactedValue
		}
	}

	return redacted
}

// Load config from the secrets' repository.
func (l *Loader) Load(ctx context.Context, secretsRepo ports.SecretsRepository, cfg *ServiceConfig) (uint, error) {
	if !cfg.SecretStorage.Enabled {
		return 0, errSecretStorageDisabled
	}

	if err := l.authenticateVault(ctx, secretsRepo, cfg.SecretStorage); err != nil {
		return 0, fmt.Errorf("failed to authenticate with Vault: %w", err)
	}

	data, err := l.loadSecretsFromPath(ctx, secretsRepo, cfg, "data")
	if err != nil {
		return 0, fmt.Errorf("failed to load secrets from Vault: %w", err)
	}

	if err := l.applySecretsToConfig(cfg, data); err != nil {
		return 0, fmt.Errorf("failed to apply secrets to config: %w", err)
	}

	metadata, err := l.loadSecretsFromPath(ctx, secretsRepo, cfg, "metadata")
	if err != nil {
		return 0, fmt.Errorf("failed to load secret metadata: %w", err)
	}

	version, err := l.getSecretVersion(metadata)
	if err != nil {
		return 0, fmt.Errorf("failed to get secret version: %w", err)
	}

	return version, nil
}

// Validate checks the settings that cannot be expressed as envconfig defaults.
func (c *ServiceConfig) Validate() error {
	switch c.Queue.Backend {
	case BackendSysV, BackendRedis, BackendPostgres, BackendAMQP:
	default:
		return fmt.Errorf("unknown queue backend %q", c.Queue.Backend)
	}

	if c.Queue.ID == "" {
		return fmt.Errorf("queue id must not be empty")
	}

	if c.Sweeper.Enabled && c.Sweeper.Interval <= 0 {
		return fmt.Errorf("sweeper interval must be positive, got %s", c.Sweeper.Interval)
	}

	return nil
}

// Init config from environment variables.
func Init() (*ServiceConfig, error) {
	cfg := &ServiceConfig{}

	err := envconfig.Process("", cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to parse service configuration: %w", err)
	}

	if len(ServiceVersion) != 0 {
		cfg.AppConfig.ServiceVersion = ServiceVersion
	}

	if len(CommitSHA) != 0 {
		cfg.AppConfig.CommitSHA = CommitSHA
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (l *Loader) authenticateVault(ctx context.Context, client ports.SecretsRepository, config SecretStorageConfig) error {
	switch strings.ToLower(config.AuthMethod) {
	case "token":
		if config.Token == "" {
			return fmt.Errorf("token is required for token auth method")
		}
		client.SetToken(config.Token)
		return nil

	case "approle":
		if config.RoleID == "" || config.SecretID == "" {
			return fmt.Errorf("role_id and secret_id are required for approle auth method")
		}

		data := map[string]any{
			"role_id":   config.RoleID,
			"secret_id": config.SecretID,
		}

		resp, err := client.WriteWithContext(ctx, "auth/approle/login", data)
		if err != nil {
			return fmt.Errorf("failed to authenticate via approle: %w", err)
		}

		if resp.Auth == nil {
			return fmt.Errorf("no auth info returned from Vault")
		}

		client.SetToken(resp.Auth.ClientToken)
		return nil

	default:
		return fmt.Errorf("unsupported auth method: %s", config.AuthMethod)
	}
}

func (l *Loader) handleConfigReload(ctx context.Context) {
	if l.secretsRepo == nil || !l.cfg.SecretStorage.Enabled {
		l.reportReloadStatus(errSecretStorageDisabled)

		return
	}

	metadata, err := l.loadSecretsFromPath(ctx, l.secretsRepo, l.cfg, "metadata")
	if err != nil {
		l.reportReloadStatus(fmt.Errorf("failed to load secret metadata: %w", err))

		return
	}

	currentVersion, err := l.getSecretVersion(metadata)
	if err != nil {
		l.reportReloadStatus(fmt.Errorf("failed to get secret version: %w", err))

		return
	}

	if currentVersion == l.lastVersion {
		return
	}

	version, err := l.Load(ctx, l.secretsRepo, l.cfg)
	if err != nil {
		l.reportReloadStatus(err)

		return
	}

	l.lastVersion = version
	l.reportReloadStatus(nil)
}

// secretSetters lists the settings Vault may override, keyed by their environment variable.
var secretSetters = map[string]func(cfg *ServiceConfig, value string){
	"POSTGRES_USERNAME": func(cfg *ServiceConfig, v string) { cfg.Storage.Username = v },
	"POSTGRES_PASSWORD": func(cfg *ServiceConfig, v string) { cfg.Storage.Password = v },
	"POSTGRES_HOST":     func(cfg *ServiceConfig, v string) { cfg.Storage.Host = v },
	"POSTGRES_DATABASE": func(cfg *ServiceConfig, v string) { cfg.Storage.Database = v },
	"REDIS_PASSWORD":    func(cfg *ServiceConfig, v string) { cfg.Cache.Password = v },
	"REDIS_ADDR":        func(cfg *ServiceConfig, v string) { cfg.Cache.Addr = v },
	"RABBITMQ_USERNAME": func(cfg *ServiceConfig, v string) { cfg.AMQP.Username = v },
	"RABBITMQ_PASSWORD": func(cfg *ServiceConfig, v string) { cfg.AMQP.Password = v },
	"RABBITMQ_HOST":     func(cfg *ServiceConfig, v string) { cfg.AMQP.Host = v },
}

// readSecret reads the KV v2 document of the service, retrying with a linear delay until
// MaxRetries is exhausted or ctx ends.
func readSecret(ctx context.Context, secretsRepo ports.SecretsRepository, storage SecretStorageConfig) (*api.Secret, error) {
	path := fmt.Sprintf("apps/data/%s", storage.MountPath)

	ctx, cancel := context.WithTimeout(ctx, storage.Timeout)
	defer cancel()

	var (
		secret *api.Secret
		err    error
	)

	for attempt := range storage.MaxRetries + 1 {
		if secret, err = secretsRepo.GetSecrets(ctx, path); err == nil {
			return secret, nil
		}

		if attempt == storage.MaxRetries {
			break
		}

		timer := time.NewTimer(time.Duration(attempt+1) * time.Second)
		select {
		case <-ctx.Done():
			timer.Stop()

			return nil, fmt.Errorf("failed to read from path %s: %w", path, errors.Join(err, ctx.Err()))
		case <-timer.C:
		}
	}

	return nil, fmt.Errorf("failed to read from path %s after %d retries: %w", path, storage.MaxRetries, err)
}

func (l *Loader) getSecretVersion(metadata map[string]any) (uint, error) {
	if metadata == nil {
		return 0, nil
	}

	currentVersion, ok := metadata["current_version"]
	if !ok {
		return 0, nil
	}

	switch v := currentVersion.(type) {
	case float64:
		return uint(v), nil
	case uint:
		return v, nil
	case json.Number:
		version, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("failed to parse version: %w", err)
		}

		return uint(version), nil
	default:
		return 0, fmt.Errorf("unexpected version type: %T", currentVersion)
	}
}

// loadSecretsFromPath returns the "data" or "metadata" section of the KV v2 document.
func (l *Loader) loadSecretsFromPath(ctx context.Context, secretsRepo ports.SecretsRepository, cfg *ServiceConfig, section string) (map[string]any, error) {
	secret, err := readSecret(ctx, secretsRepo, cfg.SecretStorage)
	if err != nil {
		return nil, err
	}

	if secret == nil || secret.Data == nil {
		return nil, nil
	}

	result, ok := secret.Data[section].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("invalid secret format at path apps/data/%s, missing '%s' key", cfg.SecretStorage.MountPath, section)
	}

	return result, nil
}

// applySecretsToConfig overrides the settings named in secretSetters. Applied values are
// exported to the environment so that a later Init sees them too; unknown keys are ignored.
func (l *Loader) applySecretsToConfig(cfg *ServiceConfig, data map[string]any) error {
	for key, value := range data {
		str, ok := value.(string)
		if !ok || str == "" {
			continue
		}

		set, known := secretSetters[key]
		if !known {
			continue
		}

		if err := os.Setenv(key, str); err != nil {
			return fmt.Errorf("failed to set environment variable %s: %w", key, err)
		}

		set(cfg, str)
	}

	return nil
}

// reportReloadStatus sends reload status (error or nil for success) to reloadErrors channel.
// It uses non-blocking send to avoid blocking if no receiver is ready.
func (l *Loader) reportReloadStatus(err error) {
	select {
	case l.reloadErrors <- err:
	default:
	}
}
