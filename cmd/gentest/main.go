package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/wolfman30/vision-helper/internal/app/bootstrap"
	appconfig "github.com/wolfman30/vision-helper/internal/config"
	"github.com/wolfman30/vision-helper/internal/conversation"
	"github.com/wolfman30/vision-helper/internal/generation"
	"github.com/wolfman30/vision-helper/internal/persona"
	"github.com/wolfman30/vision-helper/internal/queue"
	"github.com/wolfman30/vision-helper/pkg/logging"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	prompt := flag.String("prompt", "今天天氣很好，陪我聊聊天吧。", "message to send")
	role := flag.String("persona", string(persona.Companion), "persona whose system prompt is used: companion, medical or security")
	repeat := flag.Int("n", 1, "number of requests, to observe the minimum interval")
	timeout := flag.Duration("timeout", 3*time.Minute, "overall deadline")
	flag.Parse()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("generation smoke test",
		"model", cfg.GeminiModel,
		"transport", cfg.GeminiTransport,
		"api_key_set", cfg.GeminiAPIKey != "",
	)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	backend, closeBackend := bootstrap.BuildBackend(ctx, cfg, logger)
	defer closeBackend()
	client, err := bootstrap.BuildClient(cfg, backend, cfg.GeminiModel, nil, nil, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build client: %v\n", err)
		os.Exit(1)
	}
	q := queue.New(client, queue.WithMinInterval(cfg.MinRequestInterval), queue.WithLogger(logger))
	defer q.Close()

	p, ok := persona.DefaultCatalog().Get(persona.ID(*role))
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown persona %q\n", *role)
		os.Exit(2)
	}

	store := conversation.NewContextStore(cfg.ContextCapacity)
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Generation test: %s via %s as %s\n", cfg.GeminiModel, backend.Name(), p.Name)
	fmt.Println(strings.Repeat("=", 60))

	for i := 0; i < *repeat; i++ {
		store.AppendUser(*prompt)
		history := conversation.Contents(store.ComposeHistory(p.SystemPrompt))

		start := time.Now()
		text, err := q.Generate(ctx, history, generation.DefaultConfig())
		elapsed := time.Since(start).Round(time.Millisecond)
		if err != nil {
			fmt.Printf("\n[%d] error after %v: %v\n", i+1, elapsed, err)
			os.Exit(1)
		}
		store.AppendAssistant(text)
		fmt.Printf("\n[%d] reply (%v):\n%s\n", i+1, elapsed, text)
	}
}
