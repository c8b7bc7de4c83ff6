package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/JoeShih716/go-account-ledger/internal/app/ledger/domain"
	"github.com/JoeShih716/go-account-ledger/pkg/database"
	"github.com/JoeShih716/go-account-ledger/pkg/logger"
)

// EnvPrefix 環境變數前綴，例如 LEDGER_LOCK_TIMEOUT=3s
const EnvPrefix = "LEDGER"

// 儲存層種類
const (
	BackendMemory   = "memory"
	BackendMySQL    = "mysql"
	BackendPostgres = "postgres"
)

type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Storage  StorageConfig   `yaml:"storage"`
	Database database.Config `yaml:"database"`
	Lock     LockConfig      `yaml:"lock"`
	Redis    RedisConfig     `yaml:"redis"`
	Log      logger.Config   `yaml:"log"`
	Seed     SeedConfig      `yaml:"seed" ignored:"true"`
}

type ServerConfig struct {
	HTTPAddr        string        `yaml:"http_addr" split_words:"true"`
	GRPCAddr        string        `yaml:"grpc_addr" split_words:"true"`
	RequestTimeout  time.Duration `yaml:"request_timeout" split_words:"true"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" split_words:"true"`
}

type StorageConfig struct {
	Backend string `yaml:"backend"`
	// WALPath memory 使用，空字串表示不落地
	WALPath string `yaml:"wal_path" split_words:"true"`
	// Migrate mysql / postgres 啟動時自動建表
	Migrate bool `yaml:"migrate"`
	// FailureRecordTimeout 寫入失敗紀錄的時間上限
	FailureRecordTimeout time.Duration `yaml:"failure_record_timeout" split_words:"true"`
}

type LockConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// RedisConfig URL 為空時不啟用查詢快取
type RedisConfig struct {
	URL    string        `yaml:"url"`
	Prefix string        `yaml:"prefix"`
	TTL    time.Duration `yaml:"ttl"`
}

// SeedConfig 啟動時建立的使用者與帳戶
type SeedConfig struct {
	Users    []SeedUser    `yaml:"users"`
	Accounts []SeedAccount `yaml:"accounts"`
}

type SeedUser struct {
	ID   int64  `yaml:"id"`
	Name string `yaml:"name"`
}

type SeedAccount struct {
	ID            int64     `yaml:"id"`
	AccountNumber string    `yaml:"account_number"`
	UserID        int64     `yaml:"user_id"`
	Balance       int64     `yaml:"balance"`
	Status        string    `yaml:"status"`
	RegisteredAt  time.Time `yaml:"registered_at"`
}

// Load 載入設定
// 順序: .env -> YAML 檔 -> LEDGER_ 環境變數 -> 預設值
//
// 參數:
//
//	path: YAML 設定檔路徑 (檔案不存在時只使用環境變數)
//	envFiles: .env 檔案 (未指定時嘗試目前目錄的 .env)
//
// 回傳:
//
//	*Config: 設定
//	error: 解析或驗證失敗
func Load(path string, envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}

	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults 補全預設配置 (如果 yaml 與環境變數都沒寫)
func (c *Config) setDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = ":8080"
	}
	if c.Server.GRPCAddr == "" {
		c.Server.GRPCAddr = ":50051"
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = 10 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendMemory
	}
	if c.Storage.FailureRecordTimeout == 0 {
		c.Storage.FailureRecordTimeout = 3 * time.Second
	}

	if c.Storage.Backend != BackendMemory && c.Database.Driver == "" {
		c.Database.Driver = c.Storage.Backend
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 100
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 10
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 30 * time.Minute
	}

	if c.Lock.Timeout == 0 {
		c.Lock.Timeout = 5 * time.Second
	}

	if c.Redis.TTL == 0 {
		c.Redis.TTL = 10 * time.Minute
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate 檢查設定是否可用
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendMySQL, BackendPostgres:
		if c.Database.Driver != c.Storage.Backend {
			return fmt.Errorf("database.driver %q does not match storage.backend %q", c.Database.Driver, c.Storage.Backend)
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Lock.Timeout < 0 {
		return fmt.Errorf("lock.timeout must be positive, got %s", c.Lock.Timeout)
	}
	for _, a := range c.Seed.Accounts {
		if !domain.IsValidAccountNumber(a.AccountNumber) {
			return fmt.Errorf("seed account %d: invalid account number %q", a.ID, a.AccountNumber)
		}
		if a.Balance < 0 {
			return fmt.Errorf("seed account %s: negative balance", a.AccountNumber)
		}
	}
	return nil
}

// DomainUsers 轉成 domain.User
func (s SeedConfig) DomainUsers() []domain.User {
	users := make([]domain.User, 0, len(s.Users))
	for _, u := range s.Users {
		users = append(users, domain.User{ID: u.ID, Name: u.Name})
	}
	return users
}

// DomainAccounts 轉成 domain.Account，未指定狀態時為 IN_USE
func (s SeedConfig) DomainAccounts() []domain.Account {
	accounts := make([]domain.Account, 0, len(s.Accounts))
	for _, a := range s.Accounts {
		status := domain.AccountStatus(a.Status)
		if status == "" {
			status = domain.AccountStatusInUse
		}
		registeredAt := a.RegisteredAt
		if registeredAt.IsZero() {
			registeredAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		}
		accounts = append(accounts, domain.Account{
			ID:            a.ID,
			AccountNumber: a.AccountNumber,
			UserID:        a.UserID,
			Balance:       a.Balance,
			Status:        status,
			RegisteredAt:  registeredAt,
		})
	}
	return accounts
}
