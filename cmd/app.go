package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/melih-ucgun/pldownloader/internal/adapters/desktop"
	"github.com/melih-ucgun/pldownloader/internal/adapters/httpfetch"
	"github.com/melih-ucgun/pldownloader/internal/adapters/mobile"
	"github.com/melih-ucgun/pldownloader/internal/bridge"
	"github.com/melih-ucgun/pldownloader/internal/config"
	"github.com/melih-ucgun/pldownloader/internal/core"
	"github.com/melih-ucgun/pldownloader/internal/dispatch"
	"github.com/melih-ucgun/pldownloader/internal/state"
	"github.com/melih-ucgun/pldownloader/internal/system"
	"github.com/melih-ucgun/pldownloader/internal/transport"
)

// app is everything a command needs, built once per invocation.
type app struct {
	cfg        *config.Config
	sys        *core.SystemContext
	family     core.Family
	dispatcher *dispatch.Dispatcher
	history    *state.History
	closers    []func() error
}

// loadConfig reads the --config file and applies its log level.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, err
	}
	logLevel.Set(cfg.SlogLevel())
	return cfg, nil
}

func detect(ctx context.Context) *core.SystemContext {
	sys := core.NewSystemContext()
	sys.Context = ctx
	system.Detect(sys)
	return sys
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, sys: detect(cmd.Context())}
	a.family = cfg.Family(a.sys.Family)

	var observer dispatch.Observer
	if cfg.History.Path != "" {
		h, err := state.Open(cfg.History.Path, slog.Default())
		if err != nil {
			return nil, err
		}
		a.history = h
		a.closers = append(a.closers, h.Close)
		observer = h
	}

	a.dispatcher, err = dispatch.New(dispatch.Options{
		Family:   a.family,
		Desktop:  func() (core.Backend, error) { return a.desktopBackend(cmd.Context()) },
		Mobile:   a.mobileBackend,
		Observer: observer,
		Logger:   slog.Default(),
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) desktopBackend(ctx context.Context) (*desktop.Backend, error) {
	dataRoot, publicRoot, err := a.cfg.Roots(a.sys)
	if err != nil {
		return nil, err
	}

	storage, err := transport.Open(ctx, a.cfg.Storage.Remote)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, storage.Close)
	slog.Debug("Storage opened", "storage", storage.Describe())

	var rules []desktop.Rule
	for _, r := range a.cfg.PublicRules {
		cond, err := core.CompileCondition(r.When)
		if err != nil {
			return nil, err
		}
		rules = append(rules, desktop.Rule{When: cond, Subdir: r.Subdir})
	}

	opts := desktop.Options{
		Storage:    storage.Fs(),
		DataRoot:   dataRoot,
		PublicRoot: publicRoot,
		OnConflict: desktop.ConflictPolicy(a.cfg.Storage.OnConflict),
		Rules:      rules,
		Logger:     slog.Default(),
	}
	if a.cfg.Download.Enabled {
		opts.Fetcher = httpfetch.New(httpfetch.Options{
			Timeout:   a.cfg.Download.Timeout,
			UserAgent: a.cfg.Download.UserAgent,
			Logger:    slog.Default(),
		})
	}
	return desktop.New(opts)
}

func (a *app) mobileBackend() (core.Backend, error) {
	var caller bridge.Caller
	if a.cfg.Bridge.Address != "" {
		client, err := bridge.DialGRPC(a.cfg.Bridge.Address, a.cfg.Bridge.Token)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		caller = client
	} else {
		// No native side is attached to this process: every call is rejected.
		ch := bridge.NewChannel(bridge.NewRegistry(), slog.Default())
		a.closers = append(a.closers, ch.Close)
		caller = ch
	}
	return mobile.New(caller, slog.Default()), nil
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Describe renders an error with its kind for the terminal.
func Describe(err error) string {
	if kind := core.KindOf(err); kind != core.KindUnknown {
		return fmt.Sprintf("[%s] %v", kind, err)
	}
	return err.Error()
}
