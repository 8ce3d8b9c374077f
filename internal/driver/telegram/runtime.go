package telegram

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gotd/td/session"
	gotdtelegram "github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
)

const (
	defaultRuntimeSessionFile = ".cache/telegram/session.json"
	defaultRuntimeAuthTimeout = 3 * time.Minute
)

// Config is the user account configuration of the Telegram runtime.
type Config struct {
	AppID       int    `json:"app_id" env:"APP_ID"`
	AppHash     string `json:"app_hash" env:"APP_HASH"`
	AuthTimeout string `json:"auth_timeout" env:"AUTH_TIMEOUT"`
	RPCTimeout  string `json:"rpc_timeout" env:"RPC_TIMEOUT"`
	Code        string `json:"code" env:"CODE"`
	Phone       string `json:"phone" env:"PHONE"`
	Password    string `json:"password" env:"PASSWORD"`
	SessionFile string `json:"session_file" env:"SESSION_FILE"`
}

type parsedRuntimeConfig struct {
	appID       int
	appHash     string
	authTimeout time.Duration
	rpcTimeout  time.Duration
	code        string
	phone       string
	password    string
	sessionFile string
}

func parseRuntimeConfig(raw Config) (parsedRuntimeConfig, error) {
	cfg := parsedRuntimeConfig{
		appID:       raw.AppID,
		appHash:     strings.TrimSpace(raw.AppHash),
		authTimeout: defaultRuntimeAuthTimeout,
		rpcTimeout:  defaultRPCTimeout,
		code:        strings.TrimSpace(raw.Code),
		phone:       strings.TrimSpace(raw.Phone),
		password:    strings.TrimSpace(raw.Password),
		sessionFile: strings.TrimSpace(raw.SessionFile),
	}

	if cfg.sessionFile == "" {
		cfg.sessionFile = defaultRuntimeSessionFile
	}

	if timeout := strings.TrimSpace(raw.AuthTimeout); timeout != "" {
		parsedTimeout, err := time.ParseDuration(timeout)
		if err != nil {
			return parsedRuntimeConfig{}, fmt.Errorf("parse auth_timeout: %w", err)
		}
		if parsedTimeout <= 0 {
			return parsedRuntimeConfig{}, fmt.Errorf("parse auth_timeout: must be > 0")
		}
		cfg.authTimeout = parsedTimeout
	}
	if timeout := strings.TrimSpace(raw.RPCTimeout); timeout != "" {
		parsedTimeout, err := time.ParseDuration(timeout)
		if err != nil {
			return parsedRuntimeConfig{}, fmt.Errorf("parse rpc_timeout: %w", err)
		}
		if parsedTimeout <= 0 {
			return parsedRuntimeConfig{}, fmt.Errorf("parse rpc_timeout: must be > 0")
		}
		cfg.rpcTimeout = parsedTimeout
	}

	if cfg.appID <= 0 {
		return parsedRuntimeConfig{}, fmt.Errorf("app_id must be > 0")
	}
	if cfg.appHash == "" {
		return parsedRuntimeConfig{}, fmt.Errorf("app_hash is required")
	}

	return cfg, nil
}

// Runtime owns one gotd user session.
type Runtime struct {
	client *gotdtelegram.Client
	cfg    parsedRuntimeConfig
	logger *slog.Logger
}

// NewRuntime validates raw and prepares a gotd client backed by a session file.
func NewRuntime(raw Config, logger *slog.Logger) (*Runtime, error) {
	cfg, err := parseRuntimeConfig(raw)
	if err != nil {
		return nil, fmt.Errorf("parse telegram runtime config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	sessionStorage, err := newGotdSessionStorage(cfg.sessionFile)
	if err != nil {
		return nil, fmt.Errorf("new gotd session storage: %w", err)
	}

	client := gotdtelegram.NewClient(cfg.appID, cfg.appHash, gotdtelegram.Options{
		SessionStorage: sessionStorage,
	})

	return &Runtime{client: client, cfg: cfg, logger: logger}, nil
}

// Run connects, authenticates, and invokes fn with a ready analytics client.
// The connection is closed when fn returns.
func (r *Runtime) Run(ctx context.Context, fn func(ctx context.Context, client *Client) error) error {
	if fn == nil {
		return fmt.Errorf("run telegram runtime: nil callback")
	}

	return gotdAuthenticatedClient{
		client: r.client,
		authenticate: func(ctx context.Context) error {
			return authenticateGotdClient(ctx, r.logger, r.client, r.cfg)
		},
	}.Run(ctx, func(runCtx context.Context) error {
		client, err := NewClient(r.client.API(),
			WithClientLogger(r.logger),
			WithRPCTimeout(r.cfg.rpcTimeout),
		)
		if err != nil {
			return err
		}
		return fn(runCtx, client)
	})
}

func newGotdSessionStorage(path string) (*session.FileStorage, error) {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return nil, fmt.Errorf("empty session file path")
	}

	absPath, err := filepath.Abs(trimmedPath)
	if err != nil {
		return nil, fmt.Errorf("resolve absolute session file path: %w", err)
	}
	sessionDir := filepath.Dir(absPath)
	if err := os.MkdirAll(sessionDir, 0o700); err != nil {
		return nil, fmt.Errorf("create session directory %s: %w", sessionDir, err)
	}

	return &session.FileStorage{Path: absPath}, nil
}

type gotdAuthenticatedClient struct {
	client       *gotdtelegram.Client
	authenticate func(ctx context.Context) error
}

// Run executes client runtime and performs authentication before invoking fn.
func (c gotdAuthenticatedClient) Run(ctx context.Context, fn func(runCtx context.Context) error) error {
	if c.client == nil {
		return fmt.Errorf("run gotd authenticated client: nil client")
	}
	if c.authenticate == nil {
		return fmt.Errorf("run gotd authenticated client: nil authenticate callback")
	}
	if fn == nil {
		return fmt.Errorf("run gotd authenticated client: nil run callback")
	}

	if err := c.client.Run(ctx, func(runCtx context.Context) error {
		if err := c.authenticate(runCtx); err != nil {
			return fmt.Errorf("authenticate gotd client: %w", err)
		}
		if err := fn(runCtx); err != nil {
			return fmt.Errorf("run gotd client callback: %w", err)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("run gotd authenticated client: %w", err)
	}

	return nil
}

func authenticateGotdClient(
	ctx context.Context,
	logger *slog.Logger,
	client *gotdtelegram.Client,
	cfg parsedRuntimeConfig,
) error {
	if client == nil {
		return fmt.Errorf("authenticate gotd client: nil client")
	}

	authCtx := ctx
	cancel := func() {}
	if cfg.authTimeout > 0 {
		authCtx, cancel = context.WithTimeout(ctx, cfg.authTimeout)
	}
	defer cancel()

	status, err := client.Auth().Status(authCtx)
	if err != nil {
		return fmt.Errorf("check auth status: %w", err)
	}
	if status.Authorized {
		logger.Info("telegram session restored from local storage", "session_file", cfg.sessionFile)
		return nil
	}

	if cfg.phone == "" {
		return fmt.Errorf("telegram phone number is required for login; configure telegram.phone")
	}

	codeAuthenticator := auth.CodeAuthenticatorFunc(func(_ context.Context, _ *tg.AuthSentCode) (string, error) {
		code, err := telegramAuthCode(cfg.code)
		if err != nil {
			return "", fmt.Errorf("resolve login code: %w", err)
		}
		return code, nil
	})

	var authenticator auth.UserAuthenticator = auth.CodeOnly(cfg.phone, codeAuthenticator)
	if cfg.password != "" {
		authenticator = auth.Constant(cfg.phone, cfg.password, codeAuthenticator)
	}

	flow := auth.NewFlow(authenticator, auth.SendCodeOptions{})
	if err := client.Auth().IfNecessary(authCtx, flow); err != nil {
		return fmt.Errorf("authenticate user: %w", err)
	}
	logger.Info("telegram authorized with user flow", "session_file", cfg.sessionFile)

	return nil
}

func telegramAuthCode(configuredCode string) (string, error) {
	if code := strings.TrimSpace(configuredCode); code != "" {
		return code, nil
	}

	stdinInfo, err := os.Stdin.Stat()
	if err != nil {
		return "", fmt.Errorf("read stdin status: %w", err)
	}
	if stdinInfo.Mode()&os.ModeCharDevice == 0 {
		return "", fmt.Errorf("telegram.code is empty and stdin is not interactive")
	}

	fmt.Fprint(os.Stderr, "Enter Telegram login code: ")
	code, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read login code: %w", err)
	}

	code = strings.TrimSpace(code)
	if code == "" {
		return "", fmt.Errorf("empty login code")
	}

	return code, nil
}
