package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/athenslab/athens/internal/agent"
	"github.com/athenslab/athens/internal/config"
	"github.com/athenslab/athens/internal/conversation"
	"github.com/athenslab/athens/internal/core"
	"github.com/athenslab/athens/internal/debate"
	"github.com/athenslab/athens/internal/export"
	"github.com/athenslab/athens/internal/storage"
	"github.com/athenslab/athens/web/handlers"
)

var (
	configPath string
	dbPath     string
	verbose    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "athens",
	Short: "Structured debates between AI agents",
	Long: `athens orchestrates turn-based debates between two AI agents.

Give it a topic and watch a proponent and a skeptic exchange arguments
until they reach consensus, run out of rounds, or start repeating
themselves.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ~/.athens/athens.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (default: ~/.athens/athens.db)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(serveCmd)
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	return config.Load(path)
}

func getStorage(cfg *config.Config) (storage.Storage, error) {
	path := dbPath
	if path == "" {
		path = cfg.Storage.Path
	}
	if path == "" {
		path = storage.DefaultDBPath()
	}

	store, err := storage.NewSQLiteStorage(path)
	if err != nil {
		return nil, err
	}
	if err := store.Initialize(); err != nil {
		return nil, err
	}
	return store, nil
}

// run command - create and run a debate
var (
	roundsFlag    int
	statementFlag string
	noSaveFlag    bool
)

var runCmd = &cobra.Command{
	Use:   "run [topic]",
	Short: "Run a debate on the given topic",
	Long: `Run a debate between the configured proponent and skeptic.

Examples:
  athens run "Is AI beneficial for humanity?"
  athens run "Should software be open source?" --rounds 5
  athens run "Climate policy" --statement "Carbon taxes work."`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDebate,
}

func init() {
	runCmd.Flags().IntVarP(&roundsFlag, "rounds", "r", 0, "Maximum rounds (default from config)")
	runCmd.Flags().StringVarP(&statementFlag, "statement", "s", "", "Initial statement for the proponent")
	runCmd.Flags().BoolVar(&noSaveFlag, "no-save", false, "Do not persist the debate")
}

func runDebate(cmd *cobra.Command, args []string) error {
	topic := strings.Join(args, " ")

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	settings := cfg.Debate
	if roundsFlag > 0 {
		settings.MaxRounds = roundsFlag
	}

	registry := cfg.CreateRegistry()
	provA, err := registry.Get(cfg.Agents.ProponentProvider)
	if err != nil {
		return fmt.Errorf("proponent provider: %w", err)
	}
	provB, err := registry.Get(cfg.Agents.SkepticProvider)
	if err != nil {
		return fmt.Errorf("skeptic provider: %w", err)
	}

	first := agent.NewProponent(cfg.Agents.ProponentName, provA)
	second := agent.NewSkeptic(cfg.Agents.SkepticName, provB)

	mgr := debate.New(first, second, topic, settings)
	mgr.SetCallbacks(debate.Callbacks{
		OnRoundStart: func(number int, initiator string) {
			fmt.Printf("\n── Round %d (%s opens) %s\n", number, initiator, strings.Repeat("─", 30))
		},
		OnMessageSent: func(m *core.Message) {
			fmt.Printf("\n[%s] %s\n%s\n", m.Category, m.Sender, m.Content)
		},
	})

	fmt.Printf("\nDebate: %s\n", topic)
	fmt.Printf("  %s vs %s | up to %d rounds\n", first.Name(), second.Name(), settings.MaxRounds)
	fmt.Println(strings.Repeat("─", 60))

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\n\nInterrupted, ending debate...")
		cancel()
	}()

	summary := mgr.Run(ctx)

	fmt.Println()
	fmt.Println(strings.Repeat("═", 60))
	fmt.Printf("Debate %s after %d round(s): %s\n",
		summary.Status.State, summary.Status.CurrentRound, summary.Status.TerminationReason)
	fmt.Printf("  %d messages in %s, average quality %.2f\n",
		summary.Status.TotalMessages,
		time.Duration(summary.Status.DurationSeconds*float64(time.Second)).Round(time.Second),
		summary.Metrics.AverageQuality())

	if noSaveFlag {
		return nil
	}

	store, err := getStorage(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	if err := saveDebate(store, mgr, summary); err != nil {
		return fmt.Errorf("failed to save debate: %w", err)
	}
	fmt.Printf("\nSaved as %s\n", mgr.Conversation().ID)
	return nil
}

func saveDebate(store storage.Storage, mgr *debate.Manager, summary debate.Summary) error {
	now := time.Now()
	rec := &storage.DebateRecord{
		ID:           mgr.Conversation().ID,
		Topic:        summary.Status.Topic,
		State:        summary.Status.State,
		Reason:       summary.Status.TerminationReason,
		Participants: summary.Status.Participants,
		Rounds:       summary.Rounds,
		Metrics:      summary.Metrics,
		CreatedAt:    summary.Status.StartedAt,
		UpdatedAt:    now,
	}
	if core.IsTerminal(summary.Status.State) {
		rec.CompletedAt = &now
	}

	if err := store.SaveDebate(rec); err != nil {
		return err
	}
	return store.SaveConversation(rec.ID, mgr.Conversation())
}

// list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored debates",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := getStorage(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		debates, err := store.ListDebates(50, 0)
		if err != nil {
			return err
		}
		if len(debates) == 0 {
			fmt.Println("No debates found. Start one with: athens run \"Your topic\"")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTOPIC\tSTATE\tREASON\tMESSAGES\tCREATED")
		for _, d := range debates {
			topic := d.Topic
			if len(topic) > 40 {
				topic = topic[:37] + "..."
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
				d.ID, topic, d.State, d.Reason, d.MessageCount,
				d.CreatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

// show command
var showCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a stored debate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := getStorage(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		id, err := resolveDebateID(store, args[0])
		if err != nil {
			return err
		}

		rec, err := store.GetDebate(id)
		if err != nil {
			return err
		}
		if rec == nil {
			return fmt.Errorf("debate not found: %s", id)
		}

		fmt.Printf("\nDebate: %s\n", rec.Topic)
		fmt.Printf("  ID: %s\n", rec.ID)
		fmt.Printf("  State: %s\n", rec.State)
		if rec.Reason != "" {
			fmt.Printf("  Reason: %s\n", rec.Reason)
		}
		fmt.Printf("  Participants: %s vs %s\n", rec.Participants[0], rec.Participants[1])
		fmt.Printf("  Created: %s\n", rec.CreatedAt.Format(time.RFC3339))

		conv, err := store.LoadConversation(id)
		if err != nil {
			return err
		}
		if conv == nil {
			return nil
		}

		fmt.Println()
		fmt.Println(strings.Repeat("─", 60))
		for _, m := range conv.Messages() {
			fmt.Printf("\n[%s] %s\n%s\n", m.Category, m.Sender, m.Content)
		}
		return nil
	},
}

// delete command
var deleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a stored debate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := getStorage(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		id, err := resolveDebateID(store, args[0])
		if err != nil {
			return err
		}
		if err := store.DeleteDebate(id); err != nil {
			return err
		}
		fmt.Printf("Deleted debate: %s\n", id)
		return nil
	},
}

// export command
var (
	formatFlag string
	outputFlag string
)

var exportCmd = &cobra.Command{
	Use:   "export [id]",
	Short: "Export a stored debate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := getStorage(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		id, err := resolveDebateID(store, args[0])
		if err != nil {
			return err
		}
		rec, err := store.GetDebate(id)
		if err != nil {
			return err
		}
		if rec == nil {
			return fmt.Errorf("debate not found: %s", id)
		}
		conv, err := store.LoadConversation(id)
		if err != nil {
			return err
		}

		exporter, err := export.GetExporter(export.Format(formatFlag))
		if err != nil {
			return err
		}

		var doc *conversation.Document
		if conv != nil {
			doc = conv.Export()
		}
		summary := export.SummaryFromRecord(rec, conv)

		path := outputFlag
		if path == "" {
			path = export.GenerateFilename(rec.Topic, exporter.FileExtension())
		}
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()

		if err := exporter.Export(summary, doc, f); err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
		fmt.Printf("Exported to %s\n", path)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&formatFlag, "format", "f", "markdown", "Export format (json, markdown, pdf)")
	exportCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Output file (default: generated name)")
}

// resolveDebateID matches a full ID or a unique prefix against stored
// debates.
func resolveDebateID(store storage.Storage, arg string) (string, error) {
	debates, err := store.ListDebates(100, 0)
	if err != nil {
		return "", err
	}
	var match string
	for _, d := range debates {
		if d.ID == arg {
			return d.ID, nil
		}
		if strings.HasPrefix(d.ID, arg) {
			if match != "" {
				return "", fmt.Errorf("ambiguous debate id: %s", arg)
			}
			match = d.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("debate not found: %s", arg)
	}
	return match, nil
}

// serve command
var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the status API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := getStorage(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		defer store.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		h := handlers.New(store, nil)
		server := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: h.Router(),
		}

		go func() {
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			<-sigCh
			fmt.Println("\nShutting down...")
			server.Close()
		}()

		fmt.Printf("Listening on http://localhost:%d\n", port)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Server port (default from config)")
}
