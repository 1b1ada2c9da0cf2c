package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validYAML = `
auth:
  jwt_secret: "0123456789abcdef0123456789abcdef"
redis:
  url: "redis://localhost:6379/0"
email:
  smtp:
    host: "smtp.example.com"
    port: 587
    from: "noreply@example.com"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("os.WriteFile() error = %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Auth.TokenTTL != 30*24*time.Hour {
		t.Fatalf("Auth.TokenTTL = %v, want 720h", cfg.Auth.TokenTTL)
	}
	if cfg.Auth.OTPTTL != 10*time.Minute {
		t.Fatalf("Auth.OTPTTL = %v, want 10m", cfg.Auth.OTPTTL)
	}
	if cfg.Email.Timeout != 10*time.Second {
		t.Fatalf("Email.Timeout = %v, want 10s", cfg.Email.Timeout)
	}
	if cfg.Storage.Mode != StorageModeLocal {
		t.Fatalf("Storage.Mode = %q, want %q", cfg.Storage.Mode, StorageModeLocal)
	}
	if cfg.Storage.UploadMaxBytes != 10<<20 {
		t.Fatalf("Storage.UploadMaxBytes = %d, want %d", cfg.Storage.UploadMaxBytes, 10<<20)
	}
	if cfg.Transcode.Bitrate != "64k" || cfg.Transcode.SampleRate != 44100 || cfg.Transcode.Channels != 1 {
		t.Fatalf("Transcode = %+v, want 64k/44100/mono", cfg.Transcode)
	}
	if cfg.Addr() != "0.0.0.0:8000" {
		t.Fatalf("Addr() = %q, want 0.0.0.0:8000", cfg.Addr())
	}
}

func TestLoadEnvOverridesSecrets(t *testing.T) {
	t.Setenv("ECHOBOX_JWT_SECRET", "ffffffffffffffffffffffffffffffffffff")
	t.Setenv("ECHOBOX_REDIS_URL", "redis://cache:6379/1")

	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Auth.JWTSecret != "ffffffffffffffffffffffffffffffffffff" {
		t.Fatalf("Auth.JWTSecret = %q, want env override", cfg.Auth.JWTSecret)
	}
	if cfg.Redis.URL != "redis://cache:6379/1" {
		t.Fatalf("Redis.URL = %q, want env override", cfg.Redis.URL)
	}
}

func TestLoadAcceptsSiblingStorageDirs(t *testing.T) {
	body := validYAML + "storage:\n  upload_dir: ./uploads/audio\n  tmp_dir: ./uploads/audio-tmp\n"
	if _, err := Load(writeConfig(t, body)); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "short_secret",
			body:    strings.Replace(validYAML, "0123456789abcdef0123456789abcdef", "short", 1),
			wantErr: "at least 32 characters",
		},
		{
			name:    "missing_redis",
			body:    strings.Replace(validYAML, `url: "redis://localhost:6379/0"`, `url: ""`, 1),
			wantErr: "redis.url is required",
		},
		{
			name:    "unknown_storage_mode",
			body:    validYAML + "storage:\n  mode: ftp\n",
			wantErr: "storage.mode",
		},
		{
			name:    "s3_without_bucket",
			body:    validYAML + "storage:\n  mode: s3\n  s3:\n    region: us-east-1\n",
			wantErr: "storage.s3.bucket is required",
		},
		{
			name:    "tmp_dir_equals_upload_dir",
			body:    validYAML + "storage:\n  upload_dir: ./uploads/audio\n  tmp_dir: ./uploads/audio\n",
			wantErr: "must not overlap",
		},
		{
			name:    "tmp_dir_inside_upload_dir",
			body:    validYAML + "storage:\n  upload_dir: ./uploads/audio\n  tmp_dir: ./uploads/audio/tmp\n",
			wantErr: "must not overlap",
		},
		{
			name:    "upload_dir_inside_tmp_dir",
			body:    validYAML + "storage:\n  tmp_dir: ./uploads\n",
			wantErr: "must not overlap",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("Load() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Load() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
