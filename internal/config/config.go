package config

import (
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Auction  AuctionConfig  `mapstructure:"auction"`
	Deals    DealsConfig    `mapstructure:"deals"`
	Lots     []LotConfig    `mapstructure:"lots"`
	Bidders  []BidderConfig `mapstructure:"bidders"`
}

type ServerConfig struct {
	Port     string `mapstructure:"port"`
	Mode     string `mapstructure:"mode"`      // gin mode: debug, release, test
	ReadOnly bool   `mapstructure:"read_only"` // reject player writes, admin still allowed
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type AuthConfig struct {
	AdminKey string `mapstructure:"admin_key"`
}

type DatabaseConfig struct {
	DSN                  string `mapstructure:"dsn"`
	DealRetentionDays    int    `mapstructure:"deal_retention_days"`
	CleanupIntervalHours int    `mapstructure:"cleanup_interval_hours"`
}

type RedisConfig struct {
	Addr                  string `mapstructure:"addr"`
	Password              string `mapstructure:"password"`
	DB                    int    `mapstructure:"db"`
	DealsKey              string `mapstructure:"deals_key"`
	DealsMax              int    `mapstructure:"deals_max"`
	IdempotencyTTLSeconds int    `mapstructure:"idempotency_ttl_seconds"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type RateConfig struct {
	QPS   float64 `mapstructure:"qps"`
	Burst int     `mapstructure:"burst"`
}

type AuctionConfig struct {
	HumanBidderID           string        `mapstructure:"human_bidder_id"`
	AutoReset               bool          `mapstructure:"auto_reset"`
	ResetDelay              time.Duration `mapstructure:"reset_delay"`
	LotSelection            string        `mapstructure:"lot_selection"` // round_robin | random
	TieBreak                string        `mapstructure:"tie_break"`     // first | random | top_n
	TieBreakTopN            int           `mapstructure:"tie_break_top_n"`
	TieBreakBestProbability float64       `mapstructure:"tie_break_best_probability"`
	Seed                    int64         `mapstructure:"seed"` // 0 seeds from the clock
	CatalogFile             string        `mapstructure:"catalog_file"`
	HumanRate               RateConfig    `mapstructure:"human_rate"`
}

type DealsConfig struct {
	LogDir string `mapstructure:"log_dir"`
	Buffer int    `mapstructure:"buffer"`
}

// LotConfig is shared by the inline config and the standalone catalog file.
type LotConfig struct {
	Name          string   `mapstructure:"name" yaml:"name"`
	Description   string   `mapstructure:"description" yaml:"description"`
	StartingPrice float64  `mapstructure:"starting_price" yaml:"starting_price"`
	FloorPrice    float64  `mapstructure:"floor_price" yaml:"floor_price"`
	PriceStep     float64  `mapstructure:"price_step" yaml:"price_step"`
	TickInterval  string   `mapstructure:"tick_interval" yaml:"tick_interval"` // e.g. "2s"
	DemandIndex   float64  `mapstructure:"demand_index" yaml:"demand_index"`
	Categories    []string `mapstructure:"categories" yaml:"categories"`
}

type BidderConfig struct {
	ID                  string   `mapstructure:"id"`
	Name                string   `mapstructure:"name"`
	Balance             float64  `mapstructure:"balance"`
	Human               bool     `mapstructure:"human"`
	Strategy            string   `mapstructure:"strategy"`
	PreferredCategories []string `mapstructure:"preferred_categories"`
	Threshold           float64  `mapstructure:"threshold"`
	PatienceFactor      float64  `mapstructure:"patience_factor"`
	BaseThreshold       float64  `mapstructure:"base_threshold"`
	SoftThreshold       float64  `mapstructure:"soft_threshold"`
	BuyChance           float64  `mapstructure:"buy_chance"`
	Reserve             float64  `mapstructure:"reserve"`
	TriggerPrice        float64  `mapstructure:"trigger_price"`
}

// Load reads config.yaml from . or ./configs, or the file named by AUCTION_CONFIG.
func Load() (*Config, error) {
	v := viper.New()
	if path := os.Getenv("AUCTION_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}
	return load(v)
}

// LoadFile reads an explicit config file.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	// Environment variables support
	// e.g. AUCTION_AUCTION_RESET_DELAY=3s
	v.SetEnvPrefix("auction")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 14)
	v.SetDefault("database.deal_retention_days", 90)
	v.SetDefault("database.cleanup_interval_hours", 24)
	v.SetDefault("redis.deals_key", "auction:deals")
	v.SetDefault("redis.deals_max", 10000)
	v.SetDefault("redis.idempotency_ttl_seconds", 86400)
	v.SetDefault("kafka.topic", "auction.outcomes")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("auction.human_bidder_id", "human")
	v.SetDefault("auction.auto_reset", true)
	v.SetDefault("auction.reset_delay", "5s")
	v.SetDefault("auction.lot_selection", "round_robin")
	v.SetDefault("auction.tie_break", "top_n")
	v.SetDefault("auction.tie_break_top_n", 3)
	v.SetDefault("auction.tie_break_best_probability", 0.7)
	v.SetDefault("auction.human_rate.qps", 5)
	v.SetDefault("auction.human_rate.burst", 10)
	v.SetDefault("deals.buffer", 1000)
}
