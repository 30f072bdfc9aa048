package main

import (
	"context"
	"log"
	"os"

	"skazkabot/dialogue"
	"skazkabot/logger"
	"skazkabot/modelapi/deepseekapi"
	"skazkabot/modelapi/speechkitapi"
	"skazkabot/session"
	"skazkabot/speechtext"
	"skazkabot/stats"
	"skazkabot/telegram"

	"github.com/joho/godotenv"

	"github.com/hyperdxio/opentelemetry-logs-go/exporters/otlp/otlplogs"
	sdk "github.com/hyperdxio/opentelemetry-logs-go/sdk/logs"
	"github.com/hyperdxio/otel-config-go/otelconfig"
)

func main() {
	godotenv.Load()
	production := os.Getenv("PRODUCTION") != ""

	otelShutdown, err := otelconfig.ConfigureOpenTelemetry()
	if err != nil {
		log.Fatalf("Error setting up OTel SDK - %e", err)
	}
	defer otelShutdown()
	ctx := context.Background()

	logExporter, _ := otlplogs.NewExporter(ctx)
	loggerProvider := sdk.NewLoggerProvider(sdk.WithBatcher(logExporter))
	defer loggerProvider.Shutdown(ctx)

	LogMiddleware := logger.Connect(logger.LoggerConnectProps{Production: production, LoggerProvider: loggerProvider})

	usageLog := stats.Connect(ctx, stats.StatsConnectProps{Logger: LogMiddleware})

	pipeline, err := speechtext.New(speechtext.SnowballAnalyzer{})
	if err != nil {
		LogMiddleware.Logger(ctx).Fatal("Failed to build speech text pipeline")
	}

	deepseekClient := deepseekapi.Connect(ctx, deepseekapi.DeepSeekConnectProps{Logger: LogMiddleware})
	speechkitClient := speechkitapi.Connect(ctx, speechkitapi.SpeechKitConnectProps{Logger: LogMiddleware, Pipeline: pipeline})

	engine := dialogue.Connect(ctx, dialogue.EngineConnectProps{
		Logger:      LogMiddleware,
		Sessions:    session.NewStore(),
		Generator:   deepseekClient,
		Synthesizer: speechkitClient,
		Usage:       usageLog,
	})

	telegramBot := telegram.Connect(ctx, telegram.TelegramConnectProps{
		Logger: LogMiddleware,
		Engine: engine,
		Stats:  usageLog,
	})

	Logger := LogMiddleware.Logger(ctx)

	if production {
		Logger.Info("[Telegram] Bot starting in production mode")
	} else {
		Logger.Info("[Telegram] Bot starting in development mode")
	}

	// Start Telegram bot (blocking call)
	telegramBot.Listen(ctx)
}
