package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// SharpThresholds are the |money% - tickets%| cut points for a league
type SharpThresholds struct {
	Moderate   float64 `yaml:"moderate"`
	Strong     float64 `yaml:"strong"`
	VeryStrong float64 `yaml:"very_strong"`
}

// TierThresholds are the minimum edge points for each recommendation tier
type TierThresholds struct {
	MaxBet   float64 `yaml:"max_bet"`
	Strong   float64 `yaml:"strong"`
	Moderate float64 `yaml:"moderate"`
	Lean     float64 `yaml:"lean"`
}

// LeagueConfig holds the thresholds that differ by league liquidity
type LeagueConfig struct {
	Sharp SharpThresholds `yaml:"sharp"`
	Tiers TierThresholds  `yaml:"tiers"`
}

// MarketConfig controls the respect-the-market rule
type MarketConfig struct {
	DiscardThreshold float64 `yaml:"discard_threshold"`
	BlendThreshold   float64 `yaml:"blend_threshold"`
	ModelWeight      float64 `yaml:"model_weight"`
}

// ConfidenceConfig weights the inputs of an edge's confidence score
type ConfidenceConfig struct {
	Base            float64 `yaml:"base"`
	MaturityWeight  float64 `yaml:"maturity_weight"`
	CapPenalty      float64 `yaml:"cap_penalty"`
	SharpModerate   float64 `yaml:"sharp_moderate"`
	SharpStrong     float64 `yaml:"sharp_strong"`
	SharpVeryStrong float64 `yaml:"sharp_very_strong"`
	LowConfidence   float64 `yaml:"low_confidence"`
	MaturityGames   int     `yaml:"maturity_games"`
}

// StakingConfig holds fractional Kelly parameters and bankroll guards
type StakingConfig struct {
	StartingBankroll  float64 `yaml:"starting_bankroll"`
	EdgeScale         float64 `yaml:"edge_scale"`
	KellyCap          float64 `yaml:"kelly_cap"`
	KellyMultiplier   float64 `yaml:"kelly_multiplier"`
	MaxBetPct         float64 `yaml:"max_bet_pct"`
	WeeklyExposurePct float64 `yaml:"weekly_exposure_pct"`
	StopLossPct       float64 `yaml:"stop_loss_pct"`
	WeekRolloverCron  string  `yaml:"week_rollover_cron"`
}

// CLVConfig controls closing-line capture and reporting
type CLVConfig struct {
	ClosingCutoff  time.Duration `yaml:"closing_cutoff"`
	RollingWindow  int           `yaml:"rolling_window"`
	BiasMinSamples int           `yaml:"bias_min_samples"`
	CaptureCron    string        `yaml:"capture_cron"`
	ReportCron     string        `yaml:"report_cron"`
	ArchiveBucket  string        `yaml:"archive_bucket"`
	ArchivePrefix  string        `yaml:"archive_prefix"`
	ArchiveCron    string        `yaml:"archive_cron"`
}

// ServiceConfig holds outer collaborator settings
type ServiceConfig struct {
	Port          string        `yaml:"port"`
	RedisURL      string        `yaml:"redis_url"`
	RedisPassword string        `yaml:"-"`
	HolocronDSN   string        `yaml:"holocron_dsn"`
	ConsumerID    string        `yaml:"consumer_id"`
	GroupName     string        `yaml:"group_name"`
	Workers       int           `yaml:"workers"`
	LogLevel      string        `yaml:"log_level"`
	LogPretty     bool          `yaml:"log_pretty"`
	StreamLeagues []string      `yaml:"stream_leagues"`
	DedupTTL      time.Duration `yaml:"dedup_ttl"`
	APIRateLimit  float64       `yaml:"api_rate_limit"`
	APIRateBurst  int           `yaml:"api_rate_burst"`
	CORSOrigins   []string      `yaml:"cors_origins"`
}

// Config holds all handicapper configuration
type Config struct {
	Service    ServiceConfig           `yaml:"service"`
	Leagues    map[string]LeagueConfig `yaml:"leagues"`
	Market     MarketConfig            `yaml:"market"`
	Confidence ConfidenceConfig        `yaml:"confidence"`
	Staking    StakingConfig           `yaml:"staking"`
	CLV        CLVConfig               `yaml:"clv"`
}

// Default returns the reference configuration
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Port:          "8086",
			RedisURL:      "localhost:6380",
			ConsumerID:    "handicapper-1",
			GroupName:     "handicappers",
			Workers:       8,
			LogLevel:      "info",
			StreamLeagues: []string{"americanfootball_nfl", "americanfootball_ncaaf"},
			DedupTTL:      12 * time.Hour,
			APIRateLimit:  20,
			APIRateBurst:  40,
		},
		Leagues: map[string]LeagueConfig{
			"americanfootball_nfl": {
				Sharp: SharpThresholds{Moderate: 5, Strong: 10, VeryStrong: 15},
				Tiers: TierThresholds{MaxBet: 7, Strong: 4, Moderate: 2, Lean: 1},
			},
			"americanfootball_ncaaf": {
				Sharp: SharpThresholds{Moderate: 20, Strong: 30, VeryStrong: 40},
				Tiers: TierThresholds{MaxBet: 7, Strong: 4, Moderate: 2, Lean: 1},
			},
		},
		Market: MarketConfig{
			DiscardThreshold: 10,
			BlendThreshold:   7,
			ModelWeight:      0.3,
		},
		Confidence: ConfidenceConfig{
			Base:            0.5,
			MaturityWeight:  0.3,
			CapPenalty:      0.1,
			SharpModerate:   0.05,
			SharpStrong:     0.1,
			SharpVeryStrong: 0.15,
			LowConfidence:   0.4,
			MaturityGames:   12,
		},
		Staking: StakingConfig{
			StartingBankroll:  10000,
			EdgeScale:         20,
			KellyCap:          0.25,
			KellyMultiplier:   0.25,
			MaxBetPct:         0.03,
			WeeklyExposurePct: 0.15,
			StopLossPct:       0.10,
			WeekRolloverCron:  "0 0 6 * * TUE",
		},
		CLV: CLVConfig{
			ClosingCutoff:  5 * time.Minute,
			RollingWindow:  50,
			BiasMinSamples: 20,
			CaptureCron:    "0 */1 * * * *",
			ReportCron:     "0 0 * * * *",
			ArchivePrefix:  "handicapper/clv",
			ArchiveCron:    "0 30 7 * * *",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// environment overrides, in that order. A .env file is loaded if present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		path = os.Getenv("HANDICAPPER_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Service.Port = getEnv("PORT", c.Service.Port)
	c.Service.RedisURL = getEnv("REDIS_URL", c.Service.RedisURL)
	c.Service.RedisPassword = getEnv("REDIS_PASSWORD", c.Service.RedisPassword)
	c.Service.HolocronDSN = getEnv("HOLOCRON_DSN", c.Service.HolocronDSN)
	c.Service.ConsumerID = getEnv("HANDICAPPER_CONSUMER_ID", c.Service.ConsumerID)
	c.Service.GroupName = getEnv("HANDICAPPER_GROUP_NAME", c.Service.GroupName)
	c.Service.Workers = getEnvInt("HANDICAPPER_WORKERS", c.Service.Workers)
	c.Service.LogLevel = getEnv("LOG_LEVEL", c.Service.LogLevel)
	c.Service.LogPretty = getEnvBool("LOG_PRETTY", c.Service.LogPretty)

	c.Staking.StartingBankroll = getEnvFloat("STARTING_BANKROLL", c.Staking.StartingBankroll)
	c.Staking.KellyMultiplier = getEnvFloat("KELLY_FRACTION", c.Staking.KellyMultiplier)
	c.Staking.MaxBetPct = getEnvFloat("MAX_BET_PERCENTAGE", c.Staking.MaxBetPct)
	c.Staking.WeeklyExposurePct = getEnvFloat("MAX_WEEKLY_EXPOSURE", c.Staking.WeeklyExposurePct)
	c.Staking.StopLossPct = getEnvFloat("STOP_LOSS_PERCENTAGE", c.Staking.StopLossPct)

	c.CLV.ClosingCutoff = getEnvDuration("CLOSING_LINE_CUTOFF", c.CLV.ClosingCutoff)
	c.CLV.CaptureCron = getEnv("CLOSING_CAPTURE_CRON", c.CLV.CaptureCron)
	c.CLV.ReportCron = getEnv("CLV_REPORT_CRON", c.CLV.ReportCron)
	c.CLV.ArchiveBucket = getEnv("CLV_ARCHIVE_BUCKET", c.CLV.ArchiveBucket)
	c.CLV.ArchivePrefix = getEnv("CLV_ARCHIVE_PREFIX", c.CLV.ArchivePrefix)
	c.CLV.ArchiveCron = getEnv("CLV_ARCHIVE_CRON", c.CLV.ArchiveCron)
	c.Staking.WeekRolloverCron = getEnv("WEEK_ROLLOVER_CRON", c.Staking.WeekRolloverCron)

	c.Service.DedupTTL = getEnvDuration("DEDUP_TTL", c.Service.DedupTTL)
	c.Service.APIRateLimit = getEnvFloat("API_RATE_LIMIT", c.Service.APIRateLimit)
	c.Service.APIRateBurst = getEnvInt("API_RATE_BURST", c.Service.APIRateBurst)
	if origins := getEnv("CORS_ORIGINS", ""); origins != "" {
		c.Service.CORSOrigins = splitList(origins)
	}
	if leagues := getEnv("STREAM_LEAGUES", ""); leagues != "" {
		c.Service.StreamLeagues = splitList(leagues)
	}
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks ranges that would make sizing or classification meaningless
func (c *Config) Validate() error {
	if c.Service.Workers <= 0 {
		return fmt.Errorf("service.workers must be positive")
	}
	if c.Market.BlendThreshold >= c.Market.DiscardThreshold {
		return fmt.Errorf("market.blend_threshold must be below market.discard_threshold")
	}
	if c.Market.ModelWeight < 0 || c.Market.ModelWeight > 1 {
		return fmt.Errorf("market.model_weight must be between 0 and 1")
	}
	if c.Staking.EdgeScale <= 0 {
		return fmt.Errorf("staking.edge_scale must be positive")
	}
	if c.Staking.MaxBetPct <= 0 || c.Staking.MaxBetPct > 1 {
		return fmt.Errorf("staking.max_bet_pct must be in (0, 1]")
	}
	if c.Staking.WeeklyExposurePct <= 0 || c.Staking.WeeklyExposurePct > 1 {
		return fmt.Errorf("staking.weekly_exposure_pct must be in (0, 1]")
	}
	if c.Confidence.MaturityGames <= 0 {
		return fmt.Errorf("confidence.maturity_games must be positive")
	}
	for key, league := range c.Leagues {
		t := league.Tiers
		if !(t.MaxBet > t.Strong && t.Strong > t.Moderate && t.Moderate > t.Lean && t.Lean > 0) {
			return fmt.Errorf("leagues.%s.tiers must be strictly decreasing and positive", key)
		}
		s := league.Sharp
		if !(s.VeryStrong > s.Strong && s.Strong > s.Moderate && s.Moderate > 0) {
			return fmt.Errorf("leagues.%s.sharp must be strictly increasing and positive", key)
		}
	}
	return nil
}

// League returns the thresholds for a league. Unconfigured leagues get the
// most conservative value of every threshold across configured leagues.
func (c *Config) League(key string) LeagueConfig {
	if league, ok := c.Leagues[key]; ok {
		return league
	}
	return c.conservative()
}

func (c *Config) conservative() LeagueConfig {
	var out LeagueConfig
	for _, league := range c.Leagues {
		out.Sharp.Moderate = max(out.Sharp.Moderate, league.Sharp.Moderate)
		out.Sharp.Strong = max(out.Sharp.Strong, league.Sharp.Strong)
		out.Sharp.VeryStrong = max(out.Sharp.VeryStrong, league.Sharp.VeryStrong)
		out.Tiers.MaxBet = max(out.Tiers.MaxBet, league.Tiers.MaxBet)
		out.Tiers.Strong = max(out.Tiers.Strong, league.Tiers.Strong)
		out.Tiers.Moderate = max(out.Tiers.Moderate, league.Tiers.Moderate)
		out.Tiers.Lean = max(out.Tiers.Lean, league.Tiers.Lean)
	}
	if len(c.Leagues) == 0 {
		return Default().Leagues["americanfootball_ncaaf"]
	}
	return out
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
