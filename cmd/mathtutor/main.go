package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"mathtutor/internal/chat"
	"mathtutor/internal/config"
	"mathtutor/internal/correction"
	"mathtutor/internal/evaluate"
	"mathtutor/internal/llm"
	"mathtutor/internal/sandbox"
	"mathtutor/internal/store"
)

var (
	verbose     bool
	configPath  string
	dataDir     string
	evalTimeout time.Duration

	logger *zap.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "mathtutor",
	Short: "mathtutor - a math tutoring assistant with verified arithmetic",
	Long: `mathtutor routes mathematical questions through deterministic evaluators
and uses a language model only to explain the verified result.

Run without arguments to start the interactive chat.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if dataDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				home = "."
			}
			dataDir = filepath.Join(home, ".mathtutor")
		}

		var err error
		cfg, err = config.Load(configPath, dataDir)
		if err != nil {
			return err
		}
		if evalTimeout > 0 {
			secs := int(evalTimeout.Seconds())
			if secs < 1 {
				secs = 1
			}
			cfg.Evaluation.TimeoutSeconds = secs
		}

		zcfg := zap.NewProductionConfig()
		if verbose || cfg.Logging.Level == "debug" {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context())
	},
}

var evalCmd = &cobra.Command{
	Use:   "eval [expression]",
	Short: "Evaluate one expression without the chat loop",
	Long: `Routes the expression through the recognizer and the evaluator registry
and prints the result and computation steps.

Example:
  mathtutor eval "x^2 - 5x + 6 = 0"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEval,
}

var correctionsCmd = &cobra.Command{
	Use:   "corrections",
	Short: "Inspect and manage the correction memory",
}

var correctionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored corrections, oldest first",
	RunE:  runCorrectionsList,
}

var correctionsAddCmd = &cobra.Command{
	Use:   "add [pattern] [explanation]",
	Short: "Record a correction directly",
	Args:  cobra.ExactArgs(2),
	RunE:  runCorrectionsAdd,
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect stored chat sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions, newest first",
	RunE:  runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show [session-id]",
	Short: "Replay a stored session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "mathtutor.yaml", "path to the config file")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (default ~/.mathtutor)")
	rootCmd.PersistentFlags().DurationVar(&evalTimeout, "timeout", 0, "evaluation timeout (overrides config)")

	correctionsCmd.AddCommand(correctionsListCmd, correctionsAddCmd)
	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd)
	rootCmd.AddCommand(evalCmd, correctionsCmd, sessionsCmd)
}

// newRegistry wires the evaluator registry with the sandboxed interpreter as
// its chain backend.
func newRegistry() (*evaluate.Registry, *sandbox.Sandbox) {
	interp := sandbox.NewInterp()
	registry := evaluate.NewRegistry(interp.EvalArithmetic, cfg.Evaluation.PrecisionCeiling, logger)
	return registry, sandbox.New(logger)
}

// newBackend builds the configured chat backend.
func newBackend() (llm.Streamer, error) {
	switch cfg.LLM.Backend {
	case "ollama":
		return llm.NewOllamaClient(cfg.LLM.BaseURL, cfg.LLM.Model, logger), nil
	case "openai":
		return llm.NewOpenAIClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model, logger), nil
	case "mock":
		return &llm.MockStreamer{}, nil
	default:
		return nil, fmt.Errorf("unknown llm backend %q", cfg.LLM.Backend)
	}
}

func openCorrections() (*correction.Store, error) {
	return correction.Open(cfg.Corrections.Path, logger)
}

func newOrchestrator(ctx context.Context) (*chat.Orchestrator, func(), error) {
	registry, sb := newRegistry()

	backend, err := newBackend()
	if err != nil {
		return nil, nil, err
	}

	corrections, err := openCorrections()
	if err != nil {
		return nil, nil, err
	}

	var cleanup []func()

	if cfg.Corrections.Watch {
		watcher, err := correction.NewWatcher(corrections, logger)
		if err != nil {
			logger.Warn("correction watcher unavailable", zap.Error(err))
		} else if err := watcher.Start(ctx); err != nil {
			logger.Warn("correction watcher start failed", zap.Error(err))
			watcher.Stop()
		} else {
			cleanup = append(cleanup, watcher.Stop)
		}
	}

	var persist *store.SessionStore
	if cfg.Sessions.DBPath != "" {
		persist, err = store.OpenSessions(cfg.Sessions.DBPath, logger)
		if err != nil {
			logger.Warn("session persistence disabled", zap.Error(err))
		} else {
			cleanup = append(cleanup, func() { _ = persist.Close() })
		}
	}

	orch := chat.New(chat.Options{
		Registry:    registry,
		Sandbox:     sb,
		Corrections: corrections,
		Backend:     backend,
		Persist:     persist,
		Logger:      logger,
		EvalTimeout: cfg.EvalTimeout(),
	})

	stop := func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}
	return orch, stop, nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
