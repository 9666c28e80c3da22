package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"familymatter/internal/agent"
	"familymatter/internal/audit"
	"familymatter/internal/config"
	"familymatter/internal/conversation"
	"familymatter/internal/host"
	"familymatter/internal/notify"
	"familymatter/internal/scheduler"
	"familymatter/internal/steward"
	"familymatter/internal/store"
)

var (
	// Global flags
	configPath string
	dbPath     string
	verbose    bool

	// Loaded in PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "fm",
	Short: "familymatter - estate distribution coordinator",
	Long: `familymatter coordinates the distribution of a family estate: it keeps
the shared inventory, records claims and distributions in an append-only
audit log, plans milestones toward a target end date, and sweeps for
time-sensitive problems so the executor hears about them before they fester.

Run "fm serve" to start the background runtime.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if dbPath != "" {
			cfg.Database.Path = dbPath
		}
		if verbose {
			cfg.Verbose = true
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// serveCmd starts the background runtime
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the scheduler runtime until interrupted",
	Long: `Opens the estate ledger and runs the recurring jobs: the morning
briefing, the daily steward sweep, suggestion notifications, join
reminders, and the inbound chat poll. Stops cleanly on SIGINT/SIGTERM.`,
	RunE: runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "familymatter.yaml", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Override database path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(estateCmd)
	rootCmd.AddCommand(inviteCmd)
	rootCmd.AddCommand(joinCmd)
	rootCmd.AddCommand(announceCmd)
	rootCmd.AddCommand(itemCmd)
	rootCmd.AddCommand(claimCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(noteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openStore opens the configured database.
func openStore() (*store.Store, error) {
	return store.Open(cfg.Database.Path)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ledger := audit.NewLedger(st, logger)

	thresholds := config.NewThresholdSource(cfg.Sweep)
	if configPath != "" {
		stopWatch, err := config.Watch(configPath, thresholds, logger)
		if err != nil {
			logger.Warn("config watch unavailable", zap.Error(err))
		} else {
			defer stopWatch()
		}
	}
	sw := steward.New(st, logger, thresholds.Current)

	var responder agent.Responder
	if cfg.LLM.APIKey != "" {
		responder, err = agent.NewGeminiResponder(ctx, cfg.LLM.APIKey, cfg.LLM.Model)
		if err != nil {
			logger.Warn("responder unavailable, plain summaries only", zap.Error(err))
			responder = nil
		}
	}

	var chat *notify.TelegramClient
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		chat = notify.NewTelegramClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, logger)
	}

	var email notify.EmailSender
	if cfg.SMTP.Host != "" {
		email = notify.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From, logger)
	}

	var machine *conversation.Machine
	if chat != nil {
		machine = conversation.New(st, ledger, responder, chat, conversation.Config{
			Channel:      cfg.Estate.Channel,
			EstateID:     cfg.Estate.ID,
			EstateName:   cfg.Estate.Name,
			ExecutorName: cfg.Estate.ExecutorName,
		}, logger)
	}

	jobs := &scheduler.EstateJobs{
		Store:        st,
		Steward:      sw,
		Machine:      machine,
		Responder:    responder,
		Chat:         chat,
		Email:        email,
		EstateID:     cfg.Estate.ID,
		EstateName:   cfg.Estate.Name,
		ExecutorName: cfg.Estate.ExecutorName,
		Logger:       logger,
	}
	if err := jobs.Startup(ctx); err != nil {
		logger.Warn("startup check failed", zap.Error(err))
	}

	runner := scheduler.New(logger, time.Duration(cfg.Jobs.JobTimeoutSeconds)*time.Second)
	if err := jobs.Register(runner, scheduler.JobTimes{
		BriefingTime:          cfg.Jobs.BriefingTime,
		SweepTime:             cfg.Jobs.SweepTime,
		SuggestionPollMinutes: cfg.Jobs.SuggestionPollMinutes,
		ChatPollSeconds:       cfg.Jobs.ChatPollSeconds,
	}); err != nil {
		return err
	}

	logger.Info("runtime started",
		zap.Int64("estate_id", cfg.Estate.ID),
		zap.String("db", cfg.Database.Path))
	return runner.Start(ctx)
}

// newHost builds the host service for the CLI lifecycle commands.
func newHost(st *store.Store) *host.Service {
	var email notify.EmailSender
	if cfg.SMTP.Host != "" {
		email = notify.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From, logger)
	}
	return host.New(st, audit.NewLedger(st, logger), email, logger)
}
