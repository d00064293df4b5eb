package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/anthropics/discord-gemini-bot/internal/biz/repo"
	"github.com/anthropics/discord-gemini-bot/internal/biz/usecase"
	"github.com/anthropics/discord-gemini-bot/internal/conf"
	"github.com/anthropics/discord-gemini-bot/internal/data"
	"github.com/anthropics/discord-gemini-bot/internal/infra/discord"
	"github.com/anthropics/discord-gemini-bot/internal/infra/gemini"
	"github.com/anthropics/discord-gemini-bot/internal/infra/openai"
	"github.com/anthropics/discord-gemini-bot/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := conf.LoadFromEnv()
	if err := config.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	oracle, err := buildOracle(ctx, config)
	if err != nil {
		log.Fatalf("Failed to create oracle client: %v", err)
	}

	settings, err := data.NewSettingsRepo(config.Settings.DBPath)
	if err != nil {
		log.Printf("[Settings] sqlite unavailable (%v), styles will not persist", err)
		settings = data.NewMemorySettingsRepo()
	}

	rest := discord.NewClient(config.Discord.Token)

	planUC := usecase.NewAutoActionUsecase(oracle, config.ToPlannerConfig())
	autoSvc := service.NewAutoActionService(planUC, rest, config.AutoAction)

	memory := usecase.NewChannelMemory(config.Chat.MaxContextMessages)
	convSvc := service.NewConversationService(oracle, rest, memory, settings, autoSvc, config.Chat, config.AutoAction)

	gateway := discord.NewGateway(config.Discord.Token, rest, func(msg *discord.InboundMessage) {
		req := &service.MessageRequest{
			MessageID:   msg.ID,
			ChannelID:   msg.ChannelID,
			GuildID:     msg.GuildID,
			AuthorID:    msg.AuthorID,
			AuthorName:  msg.AuthorName,
			AuthorIsBot: msg.AuthorIsBot,
			MentionsBot: msg.MentionsBot,
			Content:     msg.Content,
		}
		for _, att := range msg.Attachments {
			req.Attachments = append(req.Attachments, service.AttachmentRef{Name: att.Name, URL: att.URL})
		}
		convSvc.HandleMessage(ctx, req)
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		cancel()
	}()

	if autoSvc.Enabled() {
		log.Printf("[Bot] auto actions every %d messages, window %d",
			config.AutoAction.EveryNMessages, config.AutoAction.WindowSize)
	} else {
		log.Println("[Bot] auto actions disabled")
	}

	log.Printf("[Bot] starting with %s oracle", config.Oracle.Provider)
	if err := gateway.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("Gateway error: %v", err)
	}
}

func buildOracle(ctx context.Context, config *conf.Config) (repo.Oracle, error) {
	prompts := config.Prompts
	if prompts == nil {
		prompts = conf.DefaultPrompts()
	}

	switch config.Oracle.Provider {
	case "openai":
		return openai.NewClient(
			config.Oracle.OpenAIAPIKey,
			config.Oracle.OpenAIBaseURL,
			config.Oracle.OpenAIModel,
			prompts.Chat.SystemInstruction,
		), nil
	default:
		return gemini.NewClient(
			ctx,
			config.Oracle.GeminiAPIKey,
			config.Oracle.GeminiModel,
			prompts.Chat.SystemInstruction,
			config.Oracle.GeminiEnableSearch,
		)
	}
}
