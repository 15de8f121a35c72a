package main

import (
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"gopkg.in/yaml.v3"

	http_adapter "github.com/JoeShih716/go-fx-ledger/internal/app/rates/adapter/in/http"
	"github.com/JoeShih716/go-fx-ledger/internal/app/rates/repository"
	"github.com/JoeShih716/go-fx-ledger/internal/app/rates/service"
)

// Config 匯率服務配置
type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	RatesFile string `yaml:"rates_file"`
}

func main() {
	cfg := loadConfig()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	// 匯率表啟動時載入一次，之後固定
	repo, err := repository.NewFileRepository(cfg.RatesFile)
	if err != nil {
		log.Fatalf("Failed to load rates: %v", err)
	}
	slog.Info("exchange rates loaded", "file", cfg.RatesFile, "count", len(repo.AllRates()))

	svc := service.NewService(repo)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	http_adapter.NewHandler(svc).RegisterRoutes(app)

	go func() {
		slog.Info("rates service starting", "addr", cfg.Server.Addr)
		if err := app.Listen(cfg.Server.Addr); err != nil {
			log.Fatalf("failed to serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	if err := app.Shutdown(); err != nil {
		slog.Error("server shutdown failed", "err", err)
	}
	slog.Info("server exited")
}

func loadConfig() Config {
	var cfg Config
	cfgData, err := os.ReadFile("config/rates.yaml")
	if err == nil {
		if err := yaml.Unmarshal(cfgData, &cfg); err != nil {
			log.Fatalf("Failed to parse config: %v", err)
		}
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8081"
	}
	if cfg.RatesFile == "" {
		cfg.RatesFile = "config/rates.json"
	}
	return cfg
}
