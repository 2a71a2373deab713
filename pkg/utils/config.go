package utils

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App          AppConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	AMQP         AMQPConfig
	Payment      PaymentConfig
	Geocode      GeocodeConfig
	Dispatch     DispatchConfig
	Ranking      RankingConfig
	Fees         FeeConfig
	Quota        QuotaConfig
	Notification NotificationConfig
}

type AppConfig struct {
	Name          string
	Port          string
	Debug         bool
	LogPath       string
	Timezone      string
	SweepInterval time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	MaxConns int32
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AMQPConfig struct {
	URL      string
	Exchange string
}

type PaymentConfig struct {
	PublicKey   string
	SecretKey   string
	Currency    string
	MaxAttempts int
	RetryBase   time.Duration
}

type GeocodeConfig struct {
	URL     string
	Timeout time.Duration
}

// DispatchConfig drives offer dispatch and request expiry.
type DispatchConfig struct {
	Mode           string // sequential | broadcast
	OfferWindow    time.Duration
	BroadcastGap   float64
	BroadcastBatch int
	CandidateLimit int
	TTLNow         time.Duration
	TTLWithin30Min time.Duration
	TTLWithin1Hour time.Duration
}

type RankingConfig struct {
	WeightDistance float64
	WeightRating   float64
	WeightLatency  float64
	WeightPrice    float64
	DefaultLatency time.Duration
	// normalization bounds for the distance and latency terms
	SearchRadius float64
	MaxLatency   time.Duration
}

type FeeConfig struct {
	Rush           int64
	Holiday        int64
	Night          int64
	NightStartHour int
	NightEndHour   int
	Holidays       []string
	PlatformRate   float64
}

type QuotaConfig struct {
	MonthlyCap int
}

type NotificationConfig struct {
	Buffer int
}

func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")

	// Set defaults
	viper.SetDefault("APP_NAME", "photo-dispatch")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("DEBUG", false)
	viper.SetDefault("LOG_PATH", "logs/")
	viper.SetDefault("TIMEZONE", "Asia/Tokyo")
	viper.SetDefault("SWEEP_INTERVAL", "30s")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_MAX_CONNS", 10)
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("AMQP_EXCHANGE", "photo.dispatch")
	viper.SetDefault("PAYMENT_CURRENCY", "jpy")
	viper.SetDefault("PAYMENT_MAX_ATTEMPTS", 3)
	viper.SetDefault("PAYMENT_RETRY_BASE", "200ms")
	viper.SetDefault("GEOCODE_TIMEOUT", "2s")
	viper.SetDefault("DISPATCH_MODE", "sequential")
	viper.SetDefault("OFFER_WINDOW", "75s")
	viper.SetDefault("BROADCAST_GAP", 0.05)
	viper.SetDefault("BROADCAST_MAX_BATCH", 3)
	viper.SetDefault("CANDIDATE_LIMIT", 10)
	viper.SetDefault("REQUEST_TTL_NOW", "10m")
	viper.SetDefault("REQUEST_TTL_WITHIN_30MIN", "30m")
	viper.SetDefault("REQUEST_TTL_WITHIN_1HOUR", "60m")
	viper.SetDefault("RANK_WEIGHT_DISTANCE", 0.4)
	viper.SetDefault("RANK_WEIGHT_RATING", 0.3)
	viper.SetDefault("RANK_WEIGHT_LATENCY", 0.15)
	viper.SetDefault("RANK_WEIGHT_PRICE", 0.15)
	viper.SetDefault("DEFAULT_LATENCY", "30s")
	viper.SetDefault("SEARCH_RADIUS_M", 10000)
	viper.SetDefault("MAX_LATENCY", "90s")
	viper.SetDefault("MONTHLY_REQUEST_CAP", 3)
	viper.SetDefault("FEE_RUSH", 1000)
	viper.SetDefault("FEE_HOLIDAY", 500)
	viper.SetDefault("FEE_NIGHT", 500)
	viper.SetDefault("NIGHT_START_HOUR", 18)
	viper.SetDefault("NIGHT_END_HOUR", 6)
	viper.SetDefault("HOLIDAYS", "")
	viper.SetDefault("PLATFORM_RATE", 0.2)
	viper.SetDefault("NOTIFY_BUFFER", 32)

	// .env is optional, the environment wins either way
	if err := viper.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	viper.AutomaticEnv()

	config := &Config{
		App: AppConfig{
			Name:          viper.GetString("APP_NAME"),
			Port:          viper.GetString("PORT"),
			Debug:         viper.GetBool("DEBUG"),
			LogPath:       viper.GetString("LOG_PATH"),
			Timezone:      viper.GetString("TIMEZONE"),
			SweepInterval: viper.GetDuration("SWEEP_INTERVAL"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			Name:     viper.GetString("DB_NAME"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASS"),
			MaxConns: viper.GetInt32("DB_MAX_CONNS"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("REDIS_ADDR"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		AMQP: AMQPConfig{
			URL:      viper.GetString("AMQP_URL"),
			Exchange: viper.GetString("AMQP_EXCHANGE"),
		},
		Payment: PaymentConfig{
			PublicKey:   viper.GetString("OMISE_PUBLIC_KEY"),
			SecretKey:   viper.GetString("OMISE_SECRET_KEY"),
			Currency:    viper.GetString("PAYMENT_CURRENCY"),
			MaxAttempts: viper.GetInt("PAYMENT_MAX_ATTEMPTS"),
			RetryBase:   viper.GetDuration("PAYMENT_RETRY_BASE"),
		},
		Geocode: GeocodeConfig{
			URL:     viper.GetString("GEOCODE_URL"),
			Timeout: viper.GetDuration("GEOCODE_TIMEOUT"),
		},
		Dispatch: DispatchConfig{
			Mode:           viper.GetString("DISPATCH_MODE"),
			OfferWindow:    viper.GetDuration("OFFER_WINDOW"),
			BroadcastGap:   viper.GetFloat64("BROADCAST_GAP"),
			BroadcastBatch: viper.GetInt("BROADCAST_MAX_BATCH"),
			CandidateLimit: viper.GetInt("CANDIDATE_LIMIT"),
			TTLNow:         viper.GetDuration("REQUEST_TTL_NOW"),
			TTLWithin30Min: viper.GetDuration("REQUEST_TTL_WITHIN_30MIN"),
			TTLWithin1Hour: viper.GetDuration("REQUEST_TTL_WITHIN_1HOUR"),
		},
		Ranking: RankingConfig{
			WeightDistance: viper.GetFloat64("RANK_WEIGHT_DISTANCE"),
			WeightRating:   viper.GetFloat64("RANK_WEIGHT_RATING"),
			WeightLatency:  viper.GetFloat64("RANK_WEIGHT_LATENCY"),
			WeightPrice:    viper.GetFloat64("RANK_WEIGHT_PRICE"),
			DefaultLatency: viper.GetDuration("DEFAULT_LATENCY"),
			SearchRadius:   viper.GetFloat64("SEARCH_RADIUS_M"),
			MaxLatency:     viper.GetDuration("MAX_LATENCY"),
		},
		Fees: FeeConfig{
			Rush:           viper.GetInt64("FEE_RUSH"),
			Holiday:        viper.GetInt64("FEE_HOLIDAY"),
			Night:          viper.GetInt64("FEE_NIGHT"),
			NightStartHour: viper.GetInt("NIGHT_START_HOUR"),
			NightEndHour:   viper.GetInt("NIGHT_END_HOUR"),
			Holidays:       splitList(viper.GetString("HOLIDAYS")),
			PlatformRate:   viper.GetFloat64("PLATFORM_RATE"),
		},
		Quota: QuotaConfig{
			MonthlyCap: viper.GetInt("MONTHLY_REQUEST_CAP"),
		},
		Notification: NotificationConfig{
			Buffer: viper.GetInt("NOTIFY_BUFFER"),
		},
	}

	return config, nil
}

// Location resolves the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
