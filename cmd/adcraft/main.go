package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"adcraft/internal/assets"
	"adcraft/internal/campaign"
	"adcraft/internal/config"
	"adcraft/internal/gate"
	"adcraft/internal/logging"
	"adcraft/internal/orchestrator"
	"adcraft/internal/provider"
	"adcraft/internal/storage"
)

var (
	// Global flags
	verbose    bool
	configPath string

	logger *zap.Logger
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "adcraft",
	Short: "adcraft - campaign content-production pipeline",
	Long: `adcraft coordinates a four-stage content-production pipeline:
content authoring, design and asset selection, quality validation,
and delivery. Each stage is a semi-autonomous specialist; the
orchestration core validates every cross-stage handoff and routes
campaigns through the quality gate.`,
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
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// runCmd creates a campaign and drives it to completion.
var runCmd = &cobra.Command{
	Use:   "run [name]",
	Short: "Create a campaign and run it through all four stages",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCampaign,
}

// statusCmd prints stored progress for the most recent campaign.
// Campaign state is rebuilt from the phase store; only phases that
// were persisted by a run are visible here.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored progress for the most recent campaign",
	RunE:  showStatus,
}

// listCmd prints every campaign with persisted phase data.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List campaigns with stored phase data",
	RunE:  listCampaigns,
}

// clearCmd wipes campaign state and persisted phase blobs.
var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all campaigns and stored phase data",
	RunE:  clearAll,
}

var brand string

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "adcraft.yaml", "path to config file")
	runCmd.Flags().StringVarP(&brand, "brand", "b", "default", "brand identifier for the campaign")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(clearCmd)
}

// buildPipeline wires the orchestrator and its collaborators from
// configuration. The returned cleanup closes the phase store.
func buildPipeline(ctx context.Context, cfg config.Config) (*orchestrator.Orchestrator, *campaign.Registry, func(), error) {
	if err := logging.Initialize(logging.Options{
		DebugMode:  cfg.Logging.DebugMode,
		Dir:        cfg.Logging.Dir,
		Level:      cfg.Logging.Level,
		Categories: cfg.Logging.Categories,
	}); err != nil {
		return nil, nil, nil, err
	}

	var client provider.TextClient
	switch cfg.LLM.Provider {
	case "genai":
		c, err := provider.NewGenAIClient(ctx, cfg.LLM.APIKey, cfg.LLM.Model)
		if err != nil {
			return nil, nil, nil, err
		}
		client = c
	default:
		client = provider.NewHTTPClient(provider.HTTPConfig{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Timeout: cfg.ProviderTimeout(),
		})
	}

	store, err := storage.NewPhaseStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open phase store: %w", err)
	}

	registry := campaign.NewRegistry()
	orch := orchestrator.New(orchestrator.Config{
		Registry: registry,
		Client:   client,
		Reviewer: orchestrator.NewLLMReviewer(client, cfg.ProviderTimeout()),
		Router: gate.NewRouter(gate.Policy{
			AdvanceScore: cfg.Gate.AdvanceScore,
			RetryScore:   cfg.Gate.RetryScore,
			MaxRollbacks: cfg.Gate.MaxRollbacks,
		}),
		Assets:  assets.NewCache(assets.NewCatalogSearcher(defaultCatalog)),
		Store:   store,
		Timeout: cfg.ProviderTimeout(),
	})

	cleanup := func() {
		store.Close()
		logging.Close()
	}
	return orch, registry, cleanup, nil
}

func runCampaign(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	orch, registry, cleanup, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	c := registry.Create(campaign.Campaign{Name: args[0], Brand: brand})
	logger.Info("Campaign created",
		zap.String("id", c.ID),
		zap.String("name", c.Name),
		zap.String("brand", c.Brand))

	start := time.Now()
	final, err := orch.Run(ctx, c.ID)
	if err != nil {
		logger.Error("Campaign run failed",
			zap.String("id", c.ID),
			zap.Error(err))
		return err
	}

	logger.Info("Campaign finished",
		zap.String("id", final.ID),
		zap.String("status", string(final.Status)),
		zap.Duration("elapsed", time.Since(start)))
	return printJSON(final)
}

func showStatus(cmd *cobra.Command, args []string) error {
	summaries, closeStore, err := storedSummaries(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore()

	if len(summaries) == 0 {
		fmt.Println("No campaign data stored.")
		return nil
	}
	return printJSON(summaries[0])
}

func listCampaigns(cmd *cobra.Command, args []string) error {
	summaries, closeStore, err := storedSummaries(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore()

	for _, s := range summaries {
		fmt.Printf("%s  %-32s %s\n", s.CampaignID, strings.Join(s.Phases, ","), s.UpdatedAt.Format(time.RFC3339))
	}
	return nil
}

// storedSummaries rehydrates campaign progress from the phase store.
func storedSummaries(ctx context.Context) ([]storage.CampaignSummary, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	store, err := storage.NewPhaseStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open phase store: %w", err)
	}
	summaries, err := store.Summaries(ctx)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return summaries, func() { store.Close() }, nil
}

func clearAll(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	store, err := storage.NewPhaseStore(cfg.Storage.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open phase store: %w", err)
	}
	defer store.Close()

	if err := store.Clear(cmd.Context()); err != nil {
		return err
	}
	logger.Info("Cleared all campaign state",
		zap.String("database", cfg.Storage.DatabasePath))
	fmt.Println("All campaign state cleared.")
	return nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// defaultCatalog is the built-in asset catalog used when no external
// search provider is configured.
var defaultCatalog = []assets.CatalogEntry{
	{Name: "hero-banner-01.png", Source: assets.SourcePrimary, Category: "banner", Tags: []string{"hero", "launch", "default"}},
	{Name: "hero-banner-02.png", Source: assets.SourcePrimary, Category: "banner", Tags: []string{"hero", "seasonal"}},
	{Name: "product-grid.png", Source: assets.SourcePrimary, Category: "layout", Tags: []string{"product", "grid", "default"}},
	{Name: "lifestyle-shot-01.jpg", Source: assets.SourceExternal, Category: "photo", Tags: []string{"lifestyle", "outdoor"}},
	{Name: "lifestyle-shot-02.jpg", Source: assets.SourceExternal, Category: "photo", Tags: []string{"lifestyle", "indoor", "default"}},
	{Name: "logo-lockup.svg", Source: assets.SourcePrimary, Category: "brand", Tags: []string{"logo", "brand", "default"}},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
