package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dyike/OptiFolio/config"
	"github.com/dyike/OptiFolio/internal/display"
	"github.com/dyike/OptiFolio/internal/logger"
	"github.com/dyike/OptiFolio/internal/models"
	"github.com/dyike/OptiFolio/internal/portfolio"
)

// Version is stamped at build time with -ldflags
var Version = "dev"

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	var (
		app        *App
		configPath string
		debug      bool
	)

	rootCmd := &cobra.Command{
		Use:   "optifolio",
		Short: "OptiFolio - Portfolio Optimization",
		Long: `OptiFolio builds a basket of tickers, checks weight and risk caps against what
the basket can attain, and asks the optimization backend for the best weights.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if skipsApp(cmd) {
				return nil
			}
			mgr, err := newConfigManager(configPath)
			if err != nil {
				return err
			}
			app, err = NewApp(mgr, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if debug {
				logger.SetLevel("debug")
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if app == nil {
				return nil
			}
			return app.Close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Default behavior: start interactive mode
			repl := NewInteractiveSession(app, cmd.InOrStdin(), cmd.OutOrStdout(), nil)
			return repl.Start(cmd.Context())
		},
	}

	appRef := func() *App { return app }
	rootCmd.AddCommand(newOptimizeCmd(appRef))
	rootCmd.AddCommand(newBatchCmd(appRef))
	rootCmd.AddCommand(newHistoryCmd(appRef))
	rootCmd.AddCommand(newConfigCmd(&configPath))
	rootCmd.AddCommand(newVersionCmd())

	// Global flags
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file path")

	return rootCmd
}

// skipsApp reports commands that run without opening services
func skipsApp(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "version", "config", "help", "completion":
			return true
		}
	}
	return false
}

func newConfigManager(path string) (*config.Manager, error) {
	mgr, err := config.NewManager(config.WithConfigPath(path))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return mgr, nil
}

// newOptimizeCmd creates the one-shot optimize command
func newOptimizeCmd(app func() *App) *cobra.Command {
	var (
		maxWeight float64
		maxRisk   float64
		model     string
		export    bool
	)

	cmd := &cobra.Command{
		Use:   "optimize TICKER...",
		Short: "Optimize a basket of tickers",
		Long: `Optimize a basket in one shot and print the weights.
Example: optifolio optimize AAPL MSFT GOOG --max-weight 0.5 --max-risk 25%`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := basketFromFlags(cmd, maxWeight, maxRisk, model)
			if err != nil {
				return err
			}
			req.Tickers = args
			return runOptimizeCommand(cmd.Context(), app(), req, export)
		},
	}

	cmd.Flags().Float64Var(&maxWeight, "max-weight", 0, "Max weight per asset as a fraction (config default if unset)")
	cmd.Flags().Float64Var(&maxRisk, "max-risk", 0, "Max portfolio volatility as a fraction (config default if unset)")
	cmd.Flags().StringVar(&model, "model", "", "Return model: capm or historical")
	cmd.Flags().BoolVar(&export, "export", false, "Save the result as JSON in the results directory")
	return cmd
}

// basketFromFlags keeps only the flags the user actually set
func basketFromFlags(cmd *cobra.Command, maxWeight, maxRisk float64, model string) (basketRequest, error) {
	var req basketRequest
	if cmd.Flags().Changed("max-weight") {
		req.WeightCap = &maxWeight
	}
	if cmd.Flags().Changed("max-risk") {
		req.RiskCap = &maxRisk
	}
	if model != "" {
		m, ok := models.ParseModelType(model)
		if !ok {
			return req, fmt.Errorf("unknown model %q (use capm or historical)", model)
		}
		req.Model = m
	}
	return req, nil
}

func runOptimizeCommand(ctx context.Context, app *App, req basketRequest, export bool) error {
	sess := app.NewSession()
	defer sess.Close()

	fmt.Fprintf(app.out, "🚀 Optimizing %d tickers as of %s\n", len(req.Tickers), sess.AsOf())
	result, err := runBasket(ctx, sess, req)
	if err != nil {
		return err
	}
	fmt.Fprintln(app.out, renderResultsPanel(result))

	if export {
		path := filepath.Join(app.settings().ResultsDir, display.ExportFileName(result))
		if err := display.SaveResultToFile(result, path); err != nil {
			return fmt.Errorf("export result: %w", err)
		}
		fmt.Fprintf(app.out, "💾 Saved to %s\n", path)
	}
	return nil
}

// newBatchCmd optimizes every basket listed in a file
func newBatchCmd(app func() *App) *cobra.Command {
	var (
		maxWeight  float64
		maxRisk    float64
		model      string
		concurrent int
	)

	cmd := &cobra.Command{
		Use:   "batch FILE",
		Short: "Optimize several baskets listed in a file",
		Long: `Optimize one basket per line of FILE, a few at a time.
Tickers on a line are separated by spaces or commas; # starts a comment.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			shared, err := basketFromFlags(cmd, maxWeight, maxRisk, model)
			if err != nil {
				return err
			}
			a := app()
			bm := NewBatchManager(func() *portfolio.Session { return a.NewSession() }, a.out)
			baskets, err := bm.LoadBasketsFromFile(args[0])
			if err != nil {
				return err
			}
			progress, err := bm.RunBatch(cmd.Context(), baskets, shared, concurrent)
			if err != nil {
				return err
			}
			if progress.Completed == 0 {
				return fmt.Errorf("all %d baskets failed", progress.Total)
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&maxWeight, "max-weight", 0, "Max weight per asset as a fraction")
	cmd.Flags().Float64Var(&maxRisk, "max-risk", 0, "Max portfolio volatility as a fraction")
	cmd.Flags().StringVar(&model, "model", "", "Return model: capm or historical")
	cmd.Flags().IntVar(&concurrent, "concurrent", 3, "Baskets optimized at the same time (1-10)")
	return cmd
}

// newHistoryCmd lists recorded runs or shows one
func newHistoryCmd(app func() *App) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [RUN_ID]",
		Short: "Show past optimization runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			rm := NewResultsManager(a.store, a.settings().ResultsDir, a.out)
			if len(args) == 1 {
				return rm.ShowResult(cmd.Context(), args[0])
			}
			return rm.ListResults(cmd.Context(), limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of runs to list")
	return cmd
}

// newVersionCmd creates the version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "OptiFolio %s\n", Version)
			fmt.Fprintln(cmd.OutOrStdout(), "Mean-variance portfolio optimization client")
		},
	}
}

// newConfigCmd creates the config command
func newConfigCmd(configPath *string) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "Show, validate and edit the OptiFolio configuration file",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := newConfigManager(*configPath)
			if err != nil {
				return err
			}
			showConfig(cmd.OutOrStdout(), mgr.Get(), mgr.Path())
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := newConfigManager(*configPath)
			if err != nil {
				return err
			}
			return validateConfig(cmd.OutOrStdout(), mgr.Get())
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Change one configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := newConfigManager(*configPath)
			if err != nil {
				return err
			}
			if err := NewConfigManager(mgr).SetConfigValue(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ %s updated in %s\n", args[0], mgr.Path())
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "get KEY",
		Short: "Print one configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := newConfigManager(*configPath)
			if err != nil {
				return err
			}
			v, err := NewConfigManager(mgr).GetConfigValue(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	})

	return configCmd
}

// exitCode maps an error from Execute to a process exit status
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintln(os.Stderr, renderError(err))
	return 1
}
