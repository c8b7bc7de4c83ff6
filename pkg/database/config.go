package database

import (
	"fmt"
	"time"
)

// 支援的資料庫
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// Config 定義資料庫連線與連線池的配置
type Config struct {
	Driver   string `yaml:"driver"`   // mysql 或 postgres
	Host     string `yaml:"host"`     // 資料庫主機地址
	Port     int    `yaml:"port"`     // 資料庫埠號 (預設 mysql 3306 / postgres 5432)
	User     string `yaml:"user"`     // 使用者名稱
	Password string `yaml:"password"` // 密碼
	DBName   string `yaml:"dbname" split_words:"true"`
	SSLMode  string `yaml:"sslmode" split_words:"true"` // 只有 postgres 使用

	// 連線池設定 (Connection Pool)
	// 參考: https://github.com/go-sql-driver/mysql#important-settings
	MaxOpenConns    int           `yaml:"max_open_conns" split_words:"true"`    // 最大開啟連線數
	MaxIdleConns    int           `yaml:"max_idle_conns" split_words:"true"`    // 最大閒置連線數
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" split_words:"true"` // 連線最大存活時間

	// 啟動時的重試
	MaxRetries    int           `yaml:"max_retries" split_words:"true"`
	RetryInterval time.Duration `yaml:"retry_interval" split_words:"true"`

	// GORM 設定
	LogLevel string `yaml:"log_level" split_words:"true"` // Log 等級: "silent", "error", "warn", "info"
}

// DSN (Data Source Name) 產生連線字串
//
// mysql:    user:password@tcp(host:port)/dbname?charset=utf8mb4&parseTime=True&loc=UTC
// postgres: host=... user=... password=... dbname=... port=... sslmode=... TimeZone=UTC
func (c *Config) DSN() string {
	switch c.Driver {
	case DriverPostgres:
		sslMode := c.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=UTC",
			c.Host,
			c.User,
			c.Password,
			c.DBName,
			c.port(),
			sslMode,
		)
	default:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			c.User,
			c.Password,
			c.Host,
			c.port(),
			c.DBName,
		)
	}
}

func (c *Config) port() int {
	if c.Port != 0 {
		return c.Port
	}
	if c.Driver == DriverPostgres {
		return 5432
	}
	return 3306
}
