package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"voxelcraft.ai/vcterm/internal/client"
	"voxelcraft.ai/vcterm/internal/complete"
	"voxelcraft.ai/vcterm/internal/config"
	"voxelcraft.ai/vcterm/internal/console"
	"voxelcraft.ai/vcterm/internal/history"
	"voxelcraft.ai/vcterm/internal/logging"
	"voxelcraft.ai/vcterm/internal/plugin"
	"voxelcraft.ai/vcterm/internal/plugins/owo"
	"voxelcraft.ai/vcterm/internal/transcript"
	"voxelcraft.ai/vcterm/internal/world/wsclient"
)

var (
	configDir string
	noConf    bool
	noCred    bool
	noPlugins bool
	credFlag  string
	debugMode bool
)

var rootCmd = &cobra.Command{
	Use:   "vcterm",
	Short: "Terminal client for a voxelcraft agent",
	Long: `vcterm connects one agent to a voxelcraft world and drives it from the
terminal. Lines starting with '.' are commands (see .help); anything else is
sent as chat.`,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runClient(cmd.Context())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the client version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "vcterm version: %s\n", version)
		return nil
	},
}

var genConfCmd = &cobra.Command{
	Use:   "gen-conf [dir]",
	Short: "Write a default config.yaml",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := resolvedConfigDir()
		if len(args) == 1 {
			dir = args[0]
		}
		path, err := config.WriteDefault(dir)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "config-path",
	Short: "Print the configuration directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), resolvedConfigDir())
		return nil
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&configDir, "config-dir", "", "configuration directory (default $XDG_CONFIG_HOME/vcterm)")
	f.BoolVar(&noConf, "no-conf", false, "ignore config.yaml and use the defaults")
	f.BoolVar(&noCred, "no-cred", false, "ignore credentials.yaml and .env")
	f.BoolVar(&noPlugins, "no-plugins", false, "do not load plugins")
	f.StringVar(&credFlag, "cred", "", "credentials as auth,username,token,server (empty fields keep loaded values)")
	f.BoolVar(&debugMode, "debug", false, "debug logging; full stacks on crash")

	rootCmd.AddCommand(versionCmd, genConfCmd, configPathCmd)
}

func resolvedConfigDir() string {
	if configDir != "" {
		return configDir
	}
	return config.DefaultDir()
}

func loadConfig(dir string) (config.Config, error) {
	if noConf {
		cfg, err := config.Load("")
		cfg.Resolve(dir)
		return cfg, err
	}
	return config.LoadDir(dir)
}

func loadCredentials(dir string) (config.Credentials, error) {
	var creds config.Credentials
	if !noCred {
		var err error
		creds, err = config.LoadCredentials(filepath.Join(dir, config.CredentialsFileName), filepath.Join(dir, ".env"), ".env")
		if err != nil {
			return creds, err
		}
	}
	if credFlag != "" {
		over, err := config.ParseCredFlag(credFlag)
		if err != nil {
			return creds, err
		}
		creds = creds.Merge(over)
	}
	creds.Normalize()
	return creds, creds.Validate()
}

var osExit = os.Exit

// crashExit ends the process after a crash, putting the terminal back and
// flushing the log first.
func crashExit(restore func() error, logger *zap.Logger, exit func(int)) func(int) {
	return func(code int) {
		if err := restore(); err != nil {
			logger.Warn("terminal restore failed", zap.Error(err))
		}
		_ = logger.Sync()
		exit(code)
	}
}

func runClient(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintln(os.Stderr, client.CrashReport(r, debug.Stack(), debugMode))
			os.Exit(1)
		}
	}()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	dir := resolvedConfigDir()
	cfg, err := loadConfig(dir)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	creds, err := loadCredentials(dir)
	if err != nil {
		return err
	}
	if creds.Server != "" {
		cfg.Server.URL = creds.Server
	}

	logger, err := logging.New(logging.Options{
		Path:       cfg.Log.Path,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		Debug:      debugMode,
	})
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting", zap.String("version", version), zap.String("config_dir", dir), zap.String("url", cfg.Server.URL))

	printer := console.NewPrinter(os.Stdout)

	var (
		hist   *history.Store
		recall []string
	)
	if cfg.History.Enabled {
		hist, err = history.Open(cfg.History.Path)
		if err != nil {
			printer.Warnf("History disabled: %v", err)
			logger.Warn("history open failed", zap.Error(err))
		} else {
			defer hist.Close()
			if recall, err = hist.Lines(ctx, cfg.History.Recall, "operator"); err != nil {
				logger.Warn("history recall failed", zap.Error(err))
			}
		}
	}
	var tr *transcript.Transcript
	if cfg.Transcript.Enabled {
		tr = transcript.New(cfg.Transcript.Dir)
		defer tr.Close()
	}

	token := ""
	if creds.Auth == "token" {
		token = creds.Token
	}
	session := wsclient.New(wsclient.Config{
		URL:       cfg.Server.URL,
		Name:      creds.Username,
		Token:     token,
		StateFile: cfg.Server.StateFile,
		Logger:    logger.Named("wsclient"),
	})
	defer session.Close()

	var plugins []plugin.Plugin
	if !noPlugins {
		plugins = append(plugins, owo.New())
	}
	var editor *console.Editor
	restore := func() error {
		if editor == nil {
			return nil
		}
		return editor.Close()
	}
	c, err := client.New(client.Options{
		Config:     cfg,
		World:      session,
		Printer:    printer,
		Connect:    session.Start,
		Plugins:    plugins,
		History:    hist,
		Transcript: tr,
		Logger:     logger,
		Version:    version,
		Debug:      debugMode,
		Exit:       crashExit(restore, logger, osExit),
	})
	if err != nil {
		return err
	}

	opts := []console.EditorOption{
		console.WithPrompt(cfg.Commands.Prompt),
		console.WithHistory(recall),
	}
	if ac := cfg.Commands.AutoComplete; ac.Enabled {
		opts = append(opts, console.WithCompletion(c.Completion, complete.Options{
			MinLength:       ac.MinLength,
			CaseInsensitive: ac.CaseInsensitive,
			StartOnly:       ac.StartOnly,
		}, printer.Ghost(ac.Color)))
	}
	editor = console.NewEditor(printer, os.Stdin, opts...)
	if err := editor.Start(); err != nil {
		return fmt.Errorf("terminal: %w", err)
	}
	defer editor.Close()

	printer.Infof("Connecting to %s as %s", cfg.Server.URL, creds.Username)
	return c.Run(ctx, editor)
}
