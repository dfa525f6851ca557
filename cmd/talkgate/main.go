package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/soluna-labs/talkgate/internal/chat"
	"github.com/soluna-labs/talkgate/internal/config"
	"github.com/soluna-labs/talkgate/internal/conversation"
	"github.com/soluna-labs/talkgate/internal/identity"
	"github.com/soluna-labs/talkgate/internal/llm"
	"github.com/soluna-labs/talkgate/internal/maintenance"
	"github.com/soluna-labs/talkgate/internal/memory"
	"github.com/soluna-labs/talkgate/internal/registry"
	"github.com/soluna-labs/talkgate/internal/server"
	"github.com/soluna-labs/talkgate/internal/storage"
	"github.com/soluna-labs/talkgate/internal/udpcast"
	"github.com/soluna-labs/talkgate/internal/voice"
)

var rootCmd = &cobra.Command{
	Use:   "talkgate",
	Short: "talkgate - real-time conversational gateway",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway (websocket server + chat pipeline)",
	RunE:  runServe,
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize config, database, and demo identities",
	RunE:  runOnboard,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show talkgate status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(serveCmd, onboardCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// sessionAdapter lets the validator ask the registry about live sessions.
type sessionAdapter struct {
	reg *registry.Registry
}

func (s sessionAdapter) SessionExists(id string) bool {
	_, ok := s.reg.Get(id)
	return ok
}

func newMemoryStore(cfg *config.Config) (memory.Store, error) {
	if !cfg.Memory.Enabled {
		return nil, nil
	}
	embedder := memory.NewEmbedder(cfg.Memory.EmbeddingURL, cfg.Memory.EmbeddingKey, cfg.Memory.EmbeddingModel)
	switch cfg.Memory.Backend {
	case "qdrant":
		return memory.NewQdrantStore(cfg.Memory.QdrantAddr, cfg.Memory.Collection, embedder)
	case "sqlite":
		return memory.NewSQLiteStore(cfg.Memory.DBPath, embedder)
	default:
		return nil, fmt.Errorf("unknown memory backend %q", cfg.Memory.Backend)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.LLM.APIKey == "" {
		return fmt.Errorf("API key not set. Run 'talkgate onboard' or set TALKGATE_API_KEY / OPENAI_API_KEY")
	}

	db, err := storage.Open(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	idents, err := identity.NewStore(db)
	if err != nil {
		return err
	}
	history, err := conversation.NewStore(db, cfg.Chat.MaxContentLen)
	if err != nil {
		return err
	}

	memStore, err := newMemoryStore(cfg)
	if err != nil {
		return fmt.Errorf("memory store: %w", err)
	}
	if memStore != nil {
		defer memStore.Close()
	}

	reg := registry.New()
	caster := udpcast.New()

	var tts *chat.TTSHandler
	if cfg.Voice.Enabled {
		tts = chat.NewTTSHandler(voice.NewClient(cfg.Voice.BaseURL, cfg.Voice.APIKey), voice.DefaultCatalog())
	}

	var searcher chat.MemorySearcher
	var memWriter chat.MemoryWriter
	if memStore != nil {
		searcher = memStore
		memWriter = memStore
	}
	pre := chat.NewPreprocessor(searcher, history, idents, cfg.Memory.TopK, cfg.Chat.HistoryCount, chat.Sampling{
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Model:       cfg.LLM.Model,
	})

	orch := chat.NewOrchestrator(
		chat.NewValidator(sessionAdapter{reg: reg}, idents),
		pre,
		chat.NewLLMHandler(llm.NewClient(cfg.LLM.BaseURL, cfg.LLM.APIKey)),
		tts,
		chat.NewPersister(history, memWriter),
		chat.NewSender(reg, caster),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	maint := maintenance.NewService(maintenance.Config{
		TrimSchedule:  maintenance.DefaultConfig().TrimSchedule,
		SweepSchedule: maintenance.DefaultConfig().SweepSchedule,
		RetentionKeep: cfg.Chat.RetentionKeep,
	}, history, reg)
	if err := maint.Start(ctx); err != nil {
		return fmt.Errorf("start maintenance: %w", err)
	}

	srv := server.New(cfg.Gateway.Addr(), reg, orch, caster)
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	<-ctx.Done()
	srv.Stop()
	maint.Stop()
	return nil
}

func runOnboard(cmd *cobra.Command, args []string) error {
	cfgPath := config.ConfigPath()
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		if err := config.SaveConfig(config.DefaultConfig()); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Printf("Created config: %s\n", cfgPath)
	} else {
		fmt.Printf("Config already exists: %s\n", cfgPath)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := storage.Open(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	idents, err := identity.NewStore(db)
	if err != nil {
		return err
	}
	if _, err := conversation.NewStore(db, cfg.Chat.MaxContentLen); err != nil {
		return err
	}

	ctx := cmd.Context()
	existing, err := idents.ListCharacters(ctx)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		for _, c := range defaultCharacters() {
			if err := idents.CreateCharacter(ctx, c); err != nil {
				return err
			}
		}
		if err := idents.CreateUser(ctx, "demo", "Demo User"); err != nil {
			return err
		}
		fmt.Printf("Seeded %d characters and a demo user\n", len(defaultCharacters()))
	}

	fmt.Printf("Database ready: %s\n", cfg.Storage.DBPath)
	fmt.Println("\nNext steps:")
	fmt.Printf("  1. Edit %s to set your API key\n", cfgPath)
	fmt.Println("  2. Or set TALKGATE_API_KEY environment variable")
	fmt.Println("  3. Run 'talkgate serve' and connect to /ws")
	return nil
}

func defaultCharacters() []identity.Character {
	return []identity.Character{
		{
			ID:            "hyewon",
			Name:          "Hyewon",
			PersonaPrompt: "You are Hyewon, a warm and playful companion who keeps answers conversational.",
			Instructions:  "Reply in the user's language. Keep responses under three sentences.",
			VoiceName:     "hyewon",
		},
		{
			ID:            "haru",
			Name:          "Haru",
			PersonaPrompt: "You are Haru, a calm and thoughtful listener.",
			Instructions:  "Ask a gentle follow-up question when the user seems unsure.",
			VoiceName:     "haru",
		},
		{
			ID:            "miya",
			Name:          "Miya",
			PersonaPrompt: "You are Miya, an energetic guide who loves explaining things.",
			Instructions:  "Prefer concrete examples over abstract descriptions.",
			VoiceName:     "miya",
		},
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Config: error (%v)\n", err)
		return nil
	}

	fmt.Printf("Config: %s\n", config.ConfigPath())
	fmt.Printf("Gateway: %s\n", cfg.Gateway.Addr())
	fmt.Printf("Model: %s\n", cfg.LLM.Model)
	if cfg.LLM.APIKey != "" && len(cfg.LLM.APIKey) > 8 {
		masked := cfg.LLM.APIKey[:4] + "..." + cfg.LLM.APIKey[len(cfg.LLM.APIKey)-4:]
		fmt.Printf("API Key: %s\n", masked)
	} else if cfg.LLM.APIKey != "" {
		fmt.Println("API Key: set")
	} else {
		fmt.Println("API Key: not set")
	}
	fmt.Printf("Memory: enabled=%v backend=%s\n", cfg.Memory.Enabled, cfg.Memory.Backend)
	fmt.Printf("Voice: enabled=%v\n", cfg.Voice.Enabled)

	if _, err := os.Stat(cfg.Storage.DBPath); err != nil {
		fmt.Println("Database: not found (run 'talkgate onboard')")
		return nil
	}
	fmt.Printf("Database: %s\n", cfg.Storage.DBPath)

	db, err := storage.Open(cfg.Storage.DBPath)
	if err != nil {
		return nil
	}
	defer db.Close()
	if idents, err := identity.NewStore(db); err == nil {
		if chars, err := idents.ListCharacters(cmd.Context()); err == nil {
			fmt.Printf("Characters: %d\n", len(chars))
		}
	}
	return nil
}
