package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"osananajimi-bot/backend/internal/adapter"
	"osananajimi-bot/backend/internal/discord"
	"osananajimi-bot/backend/internal/history"
	"osananajimi-bot/backend/internal/pipeline"
	"osananajimi-bot/backend/internal/server"
	"osananajimi-bot/backend/internal/state"
	"osananajimi-bot/backend/internal/tts"
	"osananajimi-bot/backend/internal/voice"
	"osananajimi-bot/backend/pkg/config"
	"osananajimi-bot/backend/pkg/logger"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Initialize logger
	if err := logger.Init(os.Getenv("ENV")); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting Discord bot...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	if cfg.DiscordBotToken == "" {
		log.Fatal("DISCORD_BOT_TOKEN is required")
	}

	// Create Discord session
	dg, err := discordgo.New("Bot " + cfg.DiscordBotToken)
	if err != nil {
		log.Fatal("Failed to create Discord session", zap.Error(err))
	}

	// Initialize dependencies
	llmAdapter := adapter.NewLLMAdapter(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.ModelID, cfg.SessionMode)
	synthesizer, err := tts.New(cfg)
	if err != nil {
		log.Fatal("Failed to create synthesizer", zap.Error(err))
	}
	voiceManager := voice.NewManager(cfg.FallbackAudioPath)
	contextBuilder := history.NewBuilder(dg)
	orchestrator := pipeline.NewOrchestrator(
		contextBuilder,
		llmAdapter,
		synthesizer,
		voiceManager,
		cfg.PromptTemplatePath,
		cfg.HistoryWindow,
	)
	tracker := state.NewTracker()
	handler := discord.NewHandler(orchestrator, voiceManager, tracker, cfg.WakeURL, log)

	// Connection-state transitions come only from gateway events
	dg.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		tracker.HandleConnect()
		log.Info("Logged in", zap.String("user", r.User.Username))

		if _, err := s.ApplicationCommandBulkOverwrite(r.User.ID, "", handler.Commands()); err != nil {
			log.Error("Failed to register commands", zap.Error(err))
		}
	})
	dg.AddHandler(func(s *discordgo.Session, d *discordgo.Disconnect) {
		tracker.HandleDisconnect()
	})
	dg.AddHandler(handler.HandleInteraction)

	// Required intents: guilds for channel lookups, guild messages for the
	// history window, voice states for join/leave
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentsGuildVoiceStates

	// Open connection
	if err := dg.Open(); err != nil {
		log.Fatal("Failed to open Discord connection", zap.Error(err))
	}
	defer dg.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Keep-alive HTTP server runs alongside the gateway session
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		router := server.NewRouter(tracker, cfg.IsProduction())
		log.Info("Keep-alive server listening", zap.String("port", cfg.Port))
		return server.Run(gctx, router, cfg.Port)
	})

	log.Info("Discord bot is running. Press CTRL-C to exit.")

	<-ctx.Done()
	log.Info("Shutting down Discord bot...")

	if err := g.Wait(); err != nil {
		log.Warn("Keep-alive server stopped", zap.Error(err))
	}
}
