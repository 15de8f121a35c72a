package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"gopkg.in/yaml.v3"

	http_adapter "github.com/JoeShih716/go-fx-ledger/internal/app/core/adapter/in/http"
	"github.com/JoeShih716/go-fx-ledger/internal/app/core/adapter/out/exchange"
	memory_adapter "github.com/JoeShih716/go-fx-ledger/internal/app/core/adapter/out/memory"
	mysql_adapter "github.com/JoeShih716/go-fx-ledger/internal/app/core/adapter/out/mysql"
	"github.com/JoeShih716/go-fx-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-fx-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-fx-ledger/pkg/mysql"
	"github.com/JoeShih716/go-fx-ledger/pkg/wal"
)

// Config 帳務服務配置
type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	// Ledger 儲存層選擇
	// type: "mysql" (Level 0)、"memory" (Level 1, Mutex + WAL)
	// 或 "lmax" (Level 2, 單一寫入者 + WAL)
	Ledger struct {
		Type        string `yaml:"type"`
		WALPath     string `yaml:"wal_path"`
		AutoMigrate bool   `yaml:"auto_migrate"`
	} `yaml:"ledger"`

	MySQL mysql.Config `yaml:"mysql"`

	Exchange struct {
		URL     string        `yaml:"url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"exchange"`

	// Policy 授權政策: "deposit_owner" (原系統行為) 或 "owner_only"
	Policy string `yaml:"policy"`

	// Accounts 本地啟動用的帳戶 seed (開戶由外部系統負責)
	Accounts []struct {
		ID     int64  `yaml:"id"`
		Number string `yaml:"number"`
		Owner  string `yaml:"owner"`
	} `yaml:"accounts"`
}

func main() {
	// 1. 載入設定與 Logger
	cfg := loadConfig()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	// 2. 初始化 RateOracle 客戶端
	oracle := exchange.NewClient(cfg.Exchange.URL, cfg.Exchange.Timeout)

	// 3. 初始化儲存層
	ctx, cancel := context.WithCancel(context.Background())
	store, cleanup := buildStore(ctx, cfg)
	defer cleanup()
	defer cancel()

	// 4. 初始化帳務引擎
	var policy usecase.AuthPolicy
	switch cfg.Policy {
	case "owner_only":
		policy = usecase.OwnerOnlyPolicy{}
	default:
		policy = usecase.DepositOwnerPolicy{}
	}
	core := usecase.NewAccountUseCase(store, oracle, policy)

	// 5. 初始化 HTTP Adapter (Driving Adapter)
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	http_adapter.NewHandler(core).RegisterRoutes(app)

	// 6. 啟動 HTTP Server
	go func() {
		slog.Info("ledger service starting", "addr", cfg.Server.Addr, "ledger", cfg.Ledger.Type)
		if err := app.Listen(cfg.Server.Addr); err != nil {
			log.Fatalf("failed to serve: %v", err)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	if err := app.Shutdown(); err != nil {
		slog.Error("server shutdown failed", "err", err)
	}
	slog.Info("server exited")
}

// buildStore 依設定建立儲存層，回傳 store 與資源釋放函式
func buildStore(ctx context.Context, cfg Config) (usecase.LedgerStore, func()) {
	switch cfg.Ledger.Type {
	case "mysql":
		dbClient := connectMySQL(cfg)
		ledgerRepo := mysql_adapter.NewMySQLLedger(dbClient)
		if cfg.Ledger.AutoMigrate {
			if err := ledgerRepo.Migrate(); err != nil {
				log.Fatalf("Failed to migrate schema: %v", err)
			}
		}
		seedAccounts(ledgerRepo, cfg)
		return ledgerRepo, func() { dbClient.Close() }

	case "memory", "":
		accounts, closeDB := loadAccounts(cfg)

		walFile, err := wal.NewWAL(cfg.Ledger.WALPath)
		if err != nil {
			log.Fatalf("Failed to init WAL: %v", err)
		}

		mutexLedger, err := memory_adapter.NewMutexLedger(accounts, walFile)
		if err != nil {
			log.Fatalf("Failed to init MutexLedger: %v", err)
		}
		return mutexLedger, func() { walFile.Close(); closeDB() }

	case "lmax":
		accounts, closeDB := loadAccounts(cfg)

		walFile, err := wal.NewWAL(cfg.Ledger.WALPath)
		if err != nil {
			log.Fatalf("Failed to init WAL: %v", err)
		}

		lmaxLedger, err := memory_adapter.NewLMAXLedger(accounts, walFile)
		if err != nil {
			log.Fatalf("Failed to init LMAXLedger: %v", err)
		}
		lmaxLedger.Start(ctx)
		return lmaxLedger, func() { walFile.Close(); closeDB() }

	default:
		log.Fatalf("Invalid ledger type: %s", cfg.Ledger.Type)
		return nil, nil
	}
}

// loadAccounts 取得記憶體帳本的初始帳戶 Map
// 有配置 MySQL 時帳戶以資料庫為準 (記憶體帳本疊在 MySQL 之上)，
// 否則退回設定檔中的本地 seed
func loadAccounts(cfg Config) (map[int64]*domain.Account, func()) {
	if cfg.MySQL.Host != "" {
		dbClient := connectMySQL(cfg)
		ledgerRepo := mysql_adapter.NewMySQLLedger(dbClient)
		if cfg.Ledger.AutoMigrate {
			if err := ledgerRepo.Migrate(); err != nil {
				log.Fatalf("Failed to migrate schema: %v", err)
			}
		}
		seedAccounts(ledgerRepo, cfg)

		accounts, err := ledgerRepo.LoadAllAccounts(context.Background())
		if err != nil {
			log.Fatalf("Failed to load all accounts: %v", err)
		}
		slog.Info("accounts loaded from mysql", "count", len(accounts))
		return accounts, func() { dbClient.Close() }
	}

	accounts := make(map[int64]*domain.Account, len(cfg.Accounts))
	for _, a := range cfg.Accounts {
		accounts[a.ID] = &domain.Account{
			ID:        a.ID,
			Number:    a.Number,
			Owner:     a.Owner,
			CreatedAt: time.Now(),
		}
	}
	return accounts, func() {}
}

func connectMySQL(cfg Config) *mysql.Client {
	dbClient, err := mysql.NewClient(cfg.MySQL)
	if err != nil {
		log.Fatalf("Failed to connect to MySQL: %v", err)
	}
	return dbClient
}

// seedAccounts 寫入設定檔中的帳戶 (已存在則略過)
func seedAccounts(repo *mysql_adapter.MySQLLedger, cfg Config) {
	for _, a := range cfg.Accounts {
		account := &domain.Account{
			ID:        a.ID,
			Number:    a.Number,
			Owner:     a.Owner,
			CreatedAt: time.Now(),
		}
		if err := repo.CreateAccount(context.Background(), account); err != nil {
			log.Fatalf("Failed to seed account %d: %v", a.ID, err)
		}
	}
}

func loadConfig() Config {
	cfgData, err := os.ReadFile("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to read config file: %v", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(cfgData, &cfg); err != nil {
		log.Fatalf("Failed to parse config: %v", err)
	}

	// 補全預設配置 (如果 yaml 沒寫)
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Ledger.WALPath == "" {
		cfg.Ledger.WALPath = "wal.log"
	}
	if cfg.Exchange.URL == "" {
		cfg.Exchange.URL = "http://localhost:8081"
	}
	if cfg.MySQL.MaxOpenConns == 0 {
		cfg.MySQL.MaxOpenConns = 100
	}
	if cfg.MySQL.MaxIdleConns == 0 {
		cfg.MySQL.MaxIdleConns = 10
	}
	if cfg.MySQL.ConnMaxLifetime == 0 {
		cfg.MySQL.ConnMaxLifetime = 30 * time.Minute
	}
	return cfg
}
