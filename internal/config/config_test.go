package config

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		HostID:   "test-host-abc",
		BaseDir:  "/home/user/.local/share/fim",
		LogDir:   "/home/user/.local/share/fim/log",
		Baseline: BaselineConfig{Type: "file", Path: "/srv/fim/baseline.json"},
		Scan: ScanConfig{
			DefaultAlgorithm: "sha256",
			Workers:          4,
			Ignore:           []string{"*.log", ".git/"},
		},
		Database: DatabaseConfig{Type: "sqlite", DataDir: "/home/user/.local/share/fim/db"},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  "/home/user/.local/share/fim/keys/fim.pub",
			PrivateKeyPath: "/home/user/.local/share/fim/keys/fim.key",
		},
		Mirror: MirrorConfig{
			Type:       "s3",
			Encrypt:    true,
			S3Bucket:   "integrity",
			S3Prefix:   "hosts",
			S3Region:   "eu-west-1",
			S3Endpoint: "http://localhost:9000",
		},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if !reflect.DeepEqual(got, original) {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", got, original)
	}
}

func TestManager_Read_Partial(t *testing.T) {
	input := `
host_id = "h1"

[scan]
default_algorithm = "sha512"

[mirror]
type = "filesystem"
fs_root = "/mnt/offsite"
`
	cfg, err := (&Manager{}).Read(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if cfg.Scan.DefaultAlgorithm != "sha512" {
		t.Errorf("DefaultAlgorithm = %q, want sha512", cfg.Scan.DefaultAlgorithm)
	}
	if cfg.Mirror.FSRoot != "/mnt/offsite" {
		t.Errorf("Mirror.FSRoot = %q", cfg.Mirror.FSRoot)
	}
	if cfg.Scan.Workers != 0 {
		t.Errorf("Workers = %d, want 0", cfg.Scan.Workers)
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("host-1", "/data/fim")

	checks := []struct {
		name, got, want string
	}{
		{"HostID", cfg.HostID, "host-1"},
		{"BaseDir", cfg.BaseDir, "/data/fim"},
		{"LogDir", cfg.LogDir, "/data/fim/log"},
		{"Baseline.Type", cfg.Baseline.Type, "file"},
		{"Baseline.Path", cfg.Baseline.Path, "/data/fim/baseline.json"},
		{"Scan.DefaultAlgorithm", cfg.Scan.DefaultAlgorithm, "sha1"},
		{"Database.DataDir", cfg.Database.DataDir, "/data/fim/db"},
		{"Encryption.PublicKeyPath", cfg.Encryption.PublicKeyPath, "/data/fim/keys/fim.pub"},
		{"Encryption.PrivateKeyPath", cfg.Encryption.PrivateKeyPath, "/data/fim/keys/fim.key"},
		{"Mirror.Type", cfg.Mirror.Type, "none"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.name, c.got, c.want)
		}
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"missing host id", func(c *Config) { c.HostID = "" }, true},
		{"negative workers", func(c *Config) { c.Scan.Workers = -1 }, true},
		{"memory baseline", func(c *Config) { c.Baseline = BaselineConfig{Type: "memory"} }, false},
		{"file baseline without path", func(c *Config) { c.Baseline.Path = "" }, true},
		{"unknown baseline type", func(c *Config) { c.Baseline.Type = "redis" }, true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := NewConfig("h", "/data/fim")
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "nested", "fim.toml")
		cfg := NewConfig("h1", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		if _, err := os.Stat(path); err != nil {
			t.Fatalf("config file not created: %v", err)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "fim.toml")
		cfg := NewConfig("h1", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}

		if err := Init(path, cfg); err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "fim.toml")
		cfg := NewConfig("read-test", dir)
		cfg.Database = DatabaseConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.HostID != "read-test" {
			t.Errorf("HostID = %q, want %q", got.HostID, "read-test")
		}
		if got.Database.Type != "memory" {
			t.Errorf("Database.Type = %q, want memory", got.Database.Type)
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		if _, err := ReadFromFile("/nonexistent/path/fim.toml"); err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}
