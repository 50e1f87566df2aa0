package main

import (
	"fmt"
	"log/slog"
	"os"

	"fim-go/internal/app"
	"fim-go/internal/config"
	"fim-go/internal/report"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file named by the defaults.
func loadConfig() (*config.Config, string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, "", fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults.ConfigPath)
	if err != nil {
		return nil, "", fmt.Errorf("reading config (run `fim config init` first): %w", err)
	}
	return cfg, defaults.ConfigPath, nil
}

// newApp reads the config and creates a FIMApp. The caller must defer app.Close().
func newApp(cmd *cobra.Command) (*app.FIMApp, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}

	level := slog.LevelWarn
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}

	a, err := app.NewFIMApp(cfg, app.Options{ConsoleLevel: level})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// newRenderer creates a renderer for stdout honouring --format.
// Colors are only used for text written to a terminal.
func newRenderer(cmd *cobra.Command) (*report.Renderer, error) {
	name, _ := cmd.Flags().GetString("format")
	format, err := report.ParseFormat(name)
	if err != nil {
		return nil, err
	}
	color := format == report.FormatText && term.IsTerminal(int(os.Stdout.Fd()))
	return report.New(os.Stdout, format, color), nil
}

// optionalArg returns args[i], or "" when it was not given.
func optionalArg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

var rootCmd = &cobra.Command{
	Use:          "fim",
	Short:        "File integrity monitor",
	SilenceUsage: true,
}

var baselineCmd = &cobra.Command{
	Use:   "baseline PATH [sha1|sha256|sha512]",
	Short: "Record a baseline snapshot of a directory",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := newRenderer(cmd)
		if err != nil {
			return err
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		algo, err := a.ResolveAlgorithm(optionalArg(args, 1))
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "[Creating baseline snapshot with %s...]\n", algo.Display())

		res, err := a.CreateBaseline(args[0], string(algo))
		if err != nil {
			return err
		}
		return r.Baseline(res)
	},
}

var checkCmd = &cobra.Command{
	Use:   "check PATH [sha1|sha256|sha512]",
	Short: "Compare a directory against the baseline",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := newRenderer(cmd)
		if err != nil {
			return err
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Check(args[0], optionalArg(args, 1))
		if err != nil {
			return err
		}
		return r.Check(res)
	},
}

var treeCmd = &cobra.Command{
	Use:   "tree PATH",
	Short: "Show the directory tree that would be monitored",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := newRenderer(cmd)
		if err != nil {
			return err
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		scan, err := a.Tree(args[0])
		if err != nil {
			return err
		}
		return r.Tree(scan)
	},
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show baseline information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := newRenderer(cmd)
		if err != nil {
			return err
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		info, err := a.Info()
		if err != nil {
			return err
		}
		return r.Info(info)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View baseline and check history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		r, err := newRenderer(cmd)
		if err != nil {
			return err
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.GetHistory(limit)
		if err != nil {
			return err
		}
		return r.History(runs)
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		hostID := uuid.New().String()
		cfg := defaults.NewConfig(hostID)

		if err := config.Init(defaults.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults.ConfigPath)
		fmt.Printf("Host ID:  %s\n", hostID)
		fmt.Printf("Base Dir: %s\n", defaults.BaseDir)
		fmt.Printf("Baseline: %s\n", defaults.BaselinePath)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", path)
		fmt.Printf("Host ID:           %s\n", cfg.HostID)
		fmt.Printf("Base Dir:          %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:           %s\n", cfg.LogDir)
		fmt.Printf("Baseline:          %s %s\n", cfg.Baseline.Type, cfg.Baseline.Path)
		fmt.Printf("Default Algorithm: %s\n", cfg.Scan.DefaultAlgorithm)
		fmt.Printf("Workers:           %d\n", cfg.Scan.Workers)
		fmt.Printf("Ignore:            %v\n", cfg.Scan.Ignore)
		fmt.Printf("Database:          %s %s\n", cfg.Database.Type, cfg.Database.DataDir)
		fmt.Printf("Mirror:            %s (encrypt=%v)\n", cfg.Mirror.Type, cfg.Mirror.Encrypt)
		return nil
	},
}

// key command
var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage mirror encryption keys",
}

var keyInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the age key pair for encrypted mirrors",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}

		passphrase, err := readNewPassphrase()
		if err != nil {
			return err
		}
		if err := app.SetupKeys(cfg, passphrase); err != nil {
			return err
		}

		fmt.Printf("Public key:  %s\n", cfg.Encryption.PublicKeyPath)
		fmt.Printf("Private key: %s (passphrase protected)\n", cfg.Encryption.PrivateKeyPath)
		return nil
	},
}

// mirror command
var mirrorCmd = &cobra.Command{
	Use:   "mirror",
	Short: "Keep an offsite copy of the baseline",
}

var mirrorPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Upload the local baseline to the mirror",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		version, err := a.PushBaseline()
		if err != nil {
			return err
		}
		fmt.Printf("Baseline mirrored (version %d)\n", version)
		return nil
	},
}

var mirrorPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Replace the local baseline with the mirrored copy",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		passphrase, err := passphraseFor(a)
		if err != nil {
			return err
		}
		b, err := a.PullBaseline(passphrase)
		if err != nil {
			return err
		}
		fmt.Printf("Baseline restored from mirror: %d files using %s\n", len(b.Files), b.Algorithm.Display())
		return nil
	},
}

var mirrorVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Compare the local baseline with the mirrored copy",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := newRenderer(cmd)
		if err != nil {
			return err
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		passphrase, err := passphraseFor(a)
		if err != nil {
			return err
		}
		rep, err := a.VerifyMirror(passphrase)
		if err != nil {
			return err
		}
		if err := r.Mirror(rep); err != nil {
			return err
		}
		if !rep.Matches() {
			return fmt.Errorf("local baseline does not match the mirrored copy")
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Print per-file progress to stderr")

	for _, c := range []*cobra.Command{baselineCmd, checkCmd, treeCmd, infoCmd, historyCmd, mirrorVerifyCmd} {
		c.Flags().StringP("format", "f", "text", "Output format: text, json or toon")
	}
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of runs to show (0 for all)")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	keyCmd.AddCommand(keyInitCmd)
	mirrorCmd.AddCommand(mirrorPushCmd)
	mirrorCmd.AddCommand(mirrorPullCmd)
	mirrorCmd.AddCommand(mirrorVerifyCmd)

	rootCmd.AddCommand(baselineCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keyCmd)
	rootCmd.AddCommand(mirrorCmd)
}
