package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dyike/OptiFolio/internal/display"
	"github.com/dyike/OptiFolio/internal/models"
	"github.com/dyike/OptiFolio/internal/portfolio"
)

// InteractiveSession is the read-eval loop over one portfolio session
type InteractiveSession struct {
	app      *App
	session  *portfolio.Session
	results  *ResultsManager
	configs  *ConfigManager
	prompter Prompter
	in       *bufio.Reader
	out      io.Writer
}

// NewInteractiveSession creates a REPL reading commands from in
func NewInteractiveSession(app *App, in io.Reader, out io.Writer, prompter Prompter) *InteractiveSession {
	if prompter == nil {
		prompter = surveyPrompter{}
	}
	cfg := app.settings()
	s := &InteractiveSession{
		app:      app,
		session:  app.NewSession(),
		results:  NewResultsManager(app.store, cfg.ResultsDir, out),
		configs:  NewConfigManager(app.cfgMgr),
		prompter: prompter,
		in:       bufio.NewReader(in),
		out:      out,
	}
	s.session.Subscribe(s.onEvent)
	return s
}

// Start runs the loop until exit, EOF or ctx is done
func (s *InteractiveSession) Start(ctx context.Context) error {
	defer s.session.Close()

	if err := s.app.cfgMgr.Watch(ctx, s.app.applyConfig); err != nil {
		s.app.log.Warn().Err(err).Msg("Config hot reload disabled")
	}

	s.showWelcome()
	return s.runMainLoop(ctx)
}

func (s *InteractiveSession) onEvent(ev portfolio.Event) {
	switch ev.Kind {
	case portfolio.OptimizationStarted:
		// emitted on the caller's goroutine, so printing here is ordered
		fmt.Fprintln(s.out, renderInfo("🔄 Optimizing..."))
	default:
		s.app.log.Debug().Stringer("event", ev.Kind).AnErr("err", ev.Err).Msg("Session event")
	}
}

func (s *InteractiveSession) showWelcome() {
	fmt.Fprintln(s.out, renderWelcomeBanner(s.session.AsOf()))
}

func (s *InteractiveSession) runMainLoop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(s.out, "optifolio> ")
		line, err := s.in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read input: %w", err)
		}

		if s.handleCommand(ctx, strings.TrimSpace(line)) {
			fmt.Fprintln(s.out, "👋 Goodbye!")
			return nil
		}
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(s.out)
			return nil
		}
	}
}

// handleCommand runs one input line and reports whether to exit
func (s *InteractiveSession) handleCommand(ctx context.Context, line string) bool {
	if line == "" {
		return false
	}
	fields := strings.Fields(line)
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "exit", "quit", "q":
		return true
	case "help", "h", "?":
		s.showHelp()
	case "add", "a":
		s.addTickers(ctx, args)
	case "remove", "rm":
		s.removeTickers(args)
	case "clear":
		s.clearBasket()
	case "weight", "w":
		s.setCap(args, "weight", s.session.SetWeightCap)
	case "risk", "r":
		s.setCap(args, "risk", s.session.SetRiskCap)
	case "caps":
		s.askConstraints()
	case "model", "m":
		s.setModel(args)
	case "show", "s", "status":
		fmt.Fprintln(s.out, renderState(s.session.State()))
	case "optimize", "o", "run":
		s.optimize(ctx)
	case "history":
		s.showHistory(ctx, args)
	case "export", "e":
		s.export(ctx, args)
	case "config":
		s.handleConfigCommand(args)
	default:
		fmt.Fprintf(s.out, "❓ Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (s *InteractiveSession) showHelp() {
	fmt.Fprintln(s.out, "📚 Commands:")
	fmt.Fprintln(s.out, "  add <TICKER>...        Add tickers to the basket")
	fmt.Fprintln(s.out, "  remove <TICKER>...     Remove tickers from the basket")
	fmt.Fprintln(s.out, "  clear                  Empty the basket")
	fmt.Fprintln(s.out, "  weight <v>             Max weight per asset (0.4 or 40%)")
	fmt.Fprintln(s.out, "  risk <v>               Max portfolio volatility (0.25 or 25%)")
	fmt.Fprintln(s.out, "  caps                   Set both caps step by step")
	fmt.Fprintln(s.out, "  model [capm|historical] Choose the return model")
	fmt.Fprintln(s.out, "  show                   Show basket, constraints and weights")
	fmt.Fprintln(s.out, "  optimize               Run the optimizer")
	fmt.Fprintln(s.out, "  history [id]           List past runs or show one")
	fmt.Fprintln(s.out, "  export [id]            Save the current (or a past) result as JSON")
	fmt.Fprintln(s.out, "  config [show|validate|get|set|keys]")
	fmt.Fprintln(s.out, "  exit                   Quit")
}

func (s *InteractiveSession) addTickers(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(s.out, "❌ Usage: add <TICKER>...")
		return
	}
	for _, t := range args {
		asset, err := s.session.AddTicker(ctx, t)
		switch {
		case errors.Is(err, portfolio.ErrDuplicateAsset):
			fmt.Fprintf(s.out, "ℹ️  %s is already in the basket\n", portfolio.NormalizeSymbol(t))
		case err != nil:
			fmt.Fprintln(s.out, renderError(err))
		default:
			fmt.Fprintf(s.out, "✅ Added %s  %s  %s\n", asset.Ticker, display.FormatPrice(asset.Price), asset.Name)
		}
	}
}

func (s *InteractiveSession) removeTickers(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(s.out, "❌ Usage: remove <TICKER>...")
		return
	}
	for _, t := range args {
		if s.session.RemoveTicker(t) {
			fmt.Fprintf(s.out, "🗑️  Removed %s\n", portfolio.NormalizeSymbol(t))
		} else {
			fmt.Fprintf(s.out, "ℹ️  %s is not in the basket\n", portfolio.NormalizeSymbol(t))
		}
	}
}

func (s *InteractiveSession) clearBasket() {
	n := len(s.session.Assets())
	if n == 0 {
		fmt.Fprintln(s.out, "ℹ️  The basket is already empty")
		return
	}
	ok, err := s.prompter.ConfirmClear(n)
	if err != nil {
		fmt.Fprintln(s.out, renderError(err))
		return
	}
	if !ok {
		fmt.Fprintln(s.out, "Cancelled.")
		return
	}
	s.session.ClearBasket()
	fmt.Fprintln(s.out, renderSuccess("Basket cleared"))
}

func (s *InteractiveSession) setCap(args []string, name string, set func(float64) bool) {
	if len(args) != 1 {
		fmt.Fprintf(s.out, "❌ Usage: %s <value>\n", name)
		return
	}
	v, err := parseCap(args[0])
	if err != nil {
		fmt.Fprintln(s.out, renderError(err))
		return
	}
	if !set(v) {
		fmt.Fprintf(s.out, "❌ Invalid %s cap: %s\n", name, args[0])
		return
	}
	s.printConstraintStatus()
}

func (s *InteractiveSession) askConstraints() {
	next, err := s.prompter.AskConstraints(s.session.Constraints())
	if err != nil {
		fmt.Fprintln(s.out, renderError(err))
		return
	}
	s.session.SetWeightCap(next.WeightCap)
	s.session.SetRiskCap(next.RiskCap)
	s.printConstraintStatus()
}

func (s *InteractiveSession) printConstraintStatus() {
	c := s.session.Constraints()
	fmt.Fprintf(s.out, "⚙️  Max weight %s, max risk %s\n",
		display.FormatPercent(c.WeightCap), display.FormatPercent(c.RiskCap))
	if msg := renderMessage(s.session.Message()); msg != "" {
		fmt.Fprintln(s.out, msg)
	}
}

func (s *InteractiveSession) setModel(args []string) {
	var (
		m   models.ModelType
		err error
	)
	if len(args) == 0 {
		m, err = s.prompter.SelectModel(s.session.Model())
		if err != nil {
			fmt.Fprintln(s.out, renderError(err))
			return
		}
	} else {
		var ok bool
		if m, ok = models.ParseModelType(args[0]); !ok {
			fmt.Fprintf(s.out, "❌ Unknown model %q (use capm or historical)\n", args[0])
			return
		}
	}
	if err := s.session.SetModel(m); err != nil {
		fmt.Fprintln(s.out, renderError(err))
		return
	}
	fmt.Fprintf(s.out, "🧮 Model: %s\n", m.GetDisplayName())
}

func (s *InteractiveSession) optimize(ctx context.Context) {
	if !s.session.CanOptimize() {
		st := s.session.State()
		switch {
		case st.InFlight:
			fmt.Fprintln(s.out, "⏳ An optimization is already running")
		case len(st.Assets) == 0:
			fmt.Fprintln(s.out, "❌ Add at least one ticker first")
		default:
			fmt.Fprintln(s.out, renderMessage(st.Message))
		}
		return
	}

	result, err := s.session.Optimize(ctx)
	if err != nil {
		fmt.Fprintln(s.out, renderError(err))
		return
	}
	fmt.Fprintln(s.out, renderResultsPanel(result))
}

func (s *InteractiveSession) showHistory(ctx context.Context, args []string) {
	s.app.recorder.Flush()

	var err error
	if len(args) > 0 {
		err = s.results.ShowResult(ctx, args[0])
	} else {
		err = s.results.ListResults(ctx, 10)
	}
	if err != nil {
		fmt.Fprintln(s.out, renderError(err))
	}
}

func (s *InteractiveSession) export(ctx context.Context, args []string) {
	if len(args) > 0 {
		s.app.recorder.Flush()
		path, err := s.results.ExportResult(ctx, args[0])
		if err != nil {
			fmt.Fprintln(s.out, renderError(err))
			return
		}
		fmt.Fprintf(s.out, "💾 Saved to %s\n", path)
		return
	}

	r := s.session.Result()
	if r == nil {
		fmt.Fprintln(s.out, display.NoWeights)
		return
	}
	path := filepath.Join(s.app.settings().ResultsDir, display.ExportFileName(r))
	if err := display.SaveResultToFile(r, path); err != nil {
		fmt.Fprintln(s.out, renderError(err))
		return
	}
	fmt.Fprintf(s.out, "💾 Saved to %s\n", path)
}

func (s *InteractiveSession) handleConfigCommand(args []string) {
	if len(args) == 0 {
		showConfig(s.out, s.app.cfgMgr.Get(), s.app.cfgMgr.Path())
		return
	}

	switch strings.ToLower(args[0]) {
	case "show":
		showConfig(s.out, s.app.cfgMgr.Get(), s.app.cfgMgr.Path())

	case "validate":
		if err := validateConfig(s.out, s.app.cfgMgr.Get()); err != nil {
			fmt.Fprintf(s.out, "❌ Validation failed: %v\n", err)
		}

	case "get":
		if len(args) < 2 {
			fmt.Fprintln(s.out, "❌ Usage: config get <key>")
			return
		}
		v, err := s.configs.GetConfigValue(args[1])
		if err != nil {
			fmt.Fprintln(s.out, renderError(err))
			return
		}
		fmt.Fprintf(s.out, "%s = %s\n", args[1], v)

	case "set":
		if len(args) < 3 {
			fmt.Fprintln(s.out, "❌ Usage: config set <key> <value>")
			return
		}
		if err := s.configs.SetConfigValue(args[1], strings.Join(args[2:], " ")); err != nil {
			fmt.Fprintln(s.out, renderError(err))
			return
		}
		s.app.applyConfig(s.app.cfgMgr.Get())
		fmt.Fprintf(s.out, "✅ %s updated\n", args[1])

	case "keys":
		for _, k := range s.configs.ListAvailableKeys() {
			fmt.Fprintln(s.out, "  "+k)
		}

	default:
		fmt.Fprintf(s.out, "❓ Unknown config command: %s\n", args[0])
	}
}
