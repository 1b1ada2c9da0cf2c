package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	StorageModeLocal = "local"
	StorageModeS3    = "s3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Email     EmailConfig     `yaml:"email"`
	Storage   StorageConfig   `yaml:"storage"`
	Transcode TranscodeConfig `yaml:"transcode"`
	Feed      FeedConfig      `yaml:"feed"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
}

type ServerConfig struct {
	Name    string `yaml:"name"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	BaseURL string `yaml:"base_url"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
	OTPTTL    time.Duration `yaml:"otp_ttl"`
}

type EmailConfig struct {
	SMTP    SMTPConfig    `yaml:"smtp"`
	Timeout time.Duration `yaml:"timeout"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type StorageConfig struct {
	Mode           string   `yaml:"mode"` // local or s3
	UploadDir      string   `yaml:"upload_dir"`
	TmpDir         string   `yaml:"tmp_dir"`
	UploadMaxBytes int64    `yaml:"upload_max_bytes"`
	S3             S3Config `yaml:"s3"`
}

type S3Config struct {
	Bucket        string `yaml:"bucket"`
	Region        string `yaml:"region"`
	Endpoint      string `yaml:"endpoint"` // set for MinIO and other S3-compatible stores
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
	PublicBaseURL string `yaml:"public_base_url"`
	Prefix        string `yaml:"prefix"`
}

type TranscodeConfig struct {
	Enabled    bool          `yaml:"enabled"`
	FFmpegPath string        `yaml:"ffmpeg_path"`
	Bitrate    string        `yaml:"bitrate"`
	SampleRate int           `yaml:"sample_rate"`
	Channels   int           `yaml:"channels"`
	Timeout    time.Duration `yaml:"timeout"`
}

type FeedConfig struct {
	PromoteInterval time.Duration `yaml:"promote_interval"`
}

type RateLimitConfig struct {
	OTPRequestsPerMinute   int `yaml:"otp_requests_per_minute"`
	LoginRequestsPerMinute int `yaml:"login_requests_per_minute"`
	WSUpgradesPerMinute    int `yaml:"ws_upgrades_per_minute"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.validateDirs(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("ECHOBOX_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("ECHOBOX_SMTP_PASSWORD"); v != "" {
		c.Email.SMTP.Password = v
	}
	if v := os.Getenv("ECHOBOX_REDIS_URL"); v != "" {
		c.Redis.URL = v
	}
	if v := os.Getenv("ECHOBOX_S3_SECRET_KEY"); v != "" {
		c.Storage.S3.SecretKey = v
	}
}

func (c *Config) validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 characters")
	}
	if c.Redis.URL == "" {
		return fmt.Errorf("redis.url is required")
	}
	if c.Email.SMTP.Host == "" {
		return fmt.Errorf("email.smtp.host is required")
	}
	if c.Email.SMTP.Port == 0 {
		return fmt.Errorf("email.smtp.port is required")
	}
	if c.Email.SMTP.From == "" {
		return fmt.Errorf("email.smtp.from is required")
	}
	switch c.Storage.Mode {
	case "", StorageModeLocal:
	case StorageModeS3:
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required in s3 mode")
		}
		if c.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required in s3 mode")
		}
	default:
		return fmt.Errorf("storage.mode must be %q or %q", StorageModeLocal, StorageModeS3)
	}
	if c.Storage.UploadMaxBytes < 0 {
		return fmt.Errorf("storage.upload_max_bytes must be >= 0")
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.Name == "" {
		c.Server.Name = "EchoBox"
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = fmt.Sprintf("http://%s:%d", c.Server.Host, c.Server.Port)
	}
	if c.Database.Path == "" {
		c.Database.Path = "./data/echobox.db"
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.OTPTTL == 0 {
		c.Auth.OTPTTL = 10 * time.Minute
	}
	if c.Email.Timeout == 0 {
		c.Email.Timeout = 10 * time.Second
	}
	if c.Storage.Mode == "" {
		c.Storage.Mode = StorageModeLocal
	}
	if c.Storage.UploadDir == "" {
		c.Storage.UploadDir = "./uploads/audio"
	}
	if c.Storage.TmpDir == "" {
		c.Storage.TmpDir = "./uploads/tmp"
	}
	if c.Storage.UploadMaxBytes == 0 {
		c.Storage.UploadMaxBytes = 10 << 20 // 10 MB
	}
	if c.Storage.S3.Prefix == "" {
		c.Storage.S3.Prefix = "echoes"
	}
	if c.Transcode.FFmpegPath == "" {
		c.Transcode.FFmpegPath = "ffmpeg"
	}
	if c.Transcode.Bitrate == "" {
		c.Transcode.Bitrate = "64k"
	}
	if c.Transcode.SampleRate == 0 {
		c.Transcode.SampleRate = 44100
	}
	if c.Transcode.Channels == 0 {
		c.Transcode.Channels = 1
	}
	if c.Transcode.Timeout == 0 {
		c.Transcode.Timeout = 2 * time.Minute
	}
	if c.Feed.PromoteInterval == 0 {
		c.Feed.PromoteInterval = time.Minute
	}
	if c.RateLimit.OTPRequestsPerMinute == 0 {
		c.RateLimit.OTPRequestsPerMinute = 5
	}
	if c.RateLimit.LoginRequestsPerMinute == 0 {
		c.RateLimit.LoginRequestsPerMinute = 10
	}
	if c.RateLimit.WSUpgradesPerMinute == 0 {
		c.RateLimit.WSUpgradesPerMinute = 10
	}
}

// validateDirs runs after defaults so unset directories are compared too.
// The transient directory is swept periodically and must not overlap stored
// audio.
func (c *Config) validateDirs() error {
	uploadDir, err := filepath.Abs(c.Storage.UploadDir)
	if err != nil {
		return fmt.Errorf("resolving storage.upload_dir: %w", err)
	}
	tmpDir, err := filepath.Abs(c.Storage.TmpDir)
	if err != nil {
		return fmt.Errorf("resolving storage.tmp_dir: %w", err)
	}
	if isWithin(uploadDir, tmpDir) || isWithin(tmpDir, uploadDir) {
		return fmt.Errorf("storage.tmp_dir and storage.upload_dir must not overlap")
	}
	return nil
}

// isWithin reports whether path is dir or below it.
func isWithin(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
