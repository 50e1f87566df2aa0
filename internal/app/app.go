package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"fim-go/internal/config"
	"fim-go/internal/database"
	"fim-go/internal/encryption"
	"fim-go/internal/fim"
	"fim-go/internal/fs"
	"fim-go/internal/hasher"
	"fim-go/internal/mirror"
	"fim-go/internal/snapshot"
)

// LogFileName is the name of the log file inside the configured log directory.
const LogFileName = "fim.log"

// Options tunes how the app reports progress.
type Options struct {
	// ConsoleLevel is the lowest level echoed to stderr. The log file
	// always receives every level.
	ConsoleLevel slog.Level
}

// FIMApp is the application layer between the CLI and FIMService.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw string paths and algorithm names, and releases resources on Close.
type FIMApp struct {
	cfg       *config.Config
	db        fim.Database
	store     fim.SnapshotStore
	mirror    fim.Mirror
	encryptor fim.Encryptor
	service   *fim.FIMService
	logFile   *os.File
}

// NewFIMApp creates a fully wired FIMApp from the given config.
// The caller must call Close when done.
func NewFIMApp(cfg *config.Config, opts Options) (*FIMApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	store, err := snapshot.NewStoreFromConfig(cfg.Baseline)
	if err != nil {
		return nil, fmt.Errorf("creating baseline store: %w", err)
	}

	m, err := mirror.NewMirrorFromConfig(context.Background(), cfg.Mirror)
	if err != nil {
		return nil, fmt.Errorf("creating mirror: %w", err)
	}

	var enc fim.Encryptor
	if m != nil && cfg.Mirror.Encrypt {
		enc, err = encryption.NewEncryptorFromConfig(cfg.Encryption)
		if err != nil {
			return nil, fmt.Errorf("creating encryptor: %w", err)
		}
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.HostID)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	opID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, opID, opts.ConsoleLevel)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	scanner := fs.NewOSTreeScanner(cfg.Scan.Ignore, ownFiles(cfg)...)
	svc := fim.NewFIMService(store, scanner, hasher.NewOSFileHasher(), db,
		&slogAdapter{l: logger}, fim.RealClock{}, fim.UUIDGenerator{},
		fim.Options{
			Workers:   cfg.Scan.Workers,
			HostID:    cfg.HostID,
			Mirror:    m,
			Encryptor: enc,
		})

	return &FIMApp{
		cfg:       cfg,
		db:        db,
		store:     store,
		mirror:    m,
		encryptor: enc,
		service:   svc,
		logFile:   logFile,
	}, nil
}

// ownFiles lists the files fim itself writes, so that monitoring a tree
// that contains them does not report fim's own state as changes.
func ownFiles(cfg *config.Config) []string {
	var files []string
	if cfg.Baseline.Type == "file" || cfg.Baseline.Type == "" {
		files = append(files, cfg.Baseline.Path)
	}
	if cfg.LogDir != "" {
		files = append(files, filepath.Join(cfg.LogDir, LogFileName))
	}
	if cfg.Database.Type == "sqlite" && cfg.Database.DataDir != "" {
		files = append(files, filepath.Join(cfg.Database.DataDir, cfg.HostID+".db"))
	}
	return files
}

// ResolveAlgorithm parses name, falling back to the configured default
// and then to sha1 when name is empty.
func (a *FIMApp) ResolveAlgorithm(name string) (fim.Algorithm, error) {
	if name == "" {
		name = a.cfg.Scan.DefaultAlgorithm
	}
	if name == "" {
		return fim.DefaultAlgorithm, nil
	}
	return fim.ParseAlgorithm(name)
}

// resolveRoot makes rawPath absolute and checks that it is an existing directory.
func resolveRoot(rawPath string) (string, error) {
	p, err := filepath.Abs(rawPath)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("path %s does not exist", rawPath)
		}
		return "", fmt.Errorf("checking path: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("path %s is not a directory", rawPath)
	}
	return p, nil
}

// CreateBaseline resolves rawPath and records a new baseline of it.
func (a *FIMApp) CreateBaseline(rawPath, algoName string) (*fim.BaselineResult, error) {
	algo, err := a.ResolveAlgorithm(algoName)
	if err != nil {
		return nil, err
	}
	root, err := resolveRoot(rawPath)
	if err != nil {
		return nil, err
	}
	return a.service.CreateBaseline(root, algo)
}

// Check resolves rawPath and compares it against the stored baseline.
func (a *FIMApp) Check(rawPath, algoName string) (*fim.CheckResult, error) {
	algo, err := a.ResolveAlgorithm(algoName)
	if err != nil {
		return nil, err
	}
	root, err := resolveRoot(rawPath)
	if err != nil {
		return nil, err
	}
	return a.service.Check(root, algo)
}

// Tree resolves rawPath and enumerates it.
func (a *FIMApp) Tree(rawPath string) (*fim.ScanResult, error) {
	root, err := resolveRoot(rawPath)
	if err != nil {
		return nil, err
	}
	return a.service.Tree(root)
}

// Info summarises the stored baseline.
func (a *FIMApp) Info() (*fim.BaselineInfo, error) {
	return a.service.Info()
}

// GetHistory returns the most recent runs.
func (a *FIMApp) GetHistory(limit int) ([]*fim.Run, error) {
	return a.service.GetHistory(limit)
}

// MirrorEncrypted reports whether mirrored copies are encrypted, in which
// case pull and verify need the key passphrase.
func (a *FIMApp) MirrorEncrypted() bool {
	return a.encryptor != nil
}

// PushBaseline checks the mirror is reachable and uploads the stored baseline.
func (a *FIMApp) PushBaseline() (int64, error) {
	if a.mirror == nil {
		return 0, fmt.Errorf("no mirror configured: set [mirror] type in the config")
	}
	if err := a.mirror.ValidateSetup(); err != nil {
		return 0, fmt.Errorf("mirror not ready: %w", err)
	}
	if a.encryptor != nil && !a.encryptor.IsConfigured() {
		return 0, fmt.Errorf("mirror encryption is enabled but no keys exist: run `fim key init` first")
	}
	return a.service.PushBaseline()
}

// PullBaseline replaces the local baseline with the mirrored copy.
// passphrase is only used when mirrored copies are encrypted.
func (a *FIMApp) PullBaseline(passphrase string) (*fim.Baseline, error) {
	dec, err := a.unlock(passphrase)
	if err != nil {
		return nil, err
	}
	return a.service.PullBaseline(dec)
}

// VerifyMirror compares the local baseline with the mirrored copy.
func (a *FIMApp) VerifyMirror(passphrase string) (*fim.MirrorReport, error) {
	dec, err := a.unlock(passphrase)
	if err != nil {
		return nil, err
	}
	return a.service.VerifyMirror(dec)
}

func (a *FIMApp) unlock(passphrase string) (fim.DecryptionContext, error) {
	if a.encryptor == nil {
		return nil, nil
	}
	dec, err := a.encryptor.Unlock(passphrase)
	if err != nil {
		return nil, fmt.Errorf("unlocking private key: %w", err)
	}
	return dec, nil
}

// Close closes the database and the log file.
func (a *FIMApp) Close() error {
	var firstErr error
	if err := a.db.Close(); err != nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}
	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing log file: %w", err)
		}
	}
	return firstErr
}

// SetupKeys generates the age key pair used to encrypt mirrored baselines.
// It needs no app instance, so it works before any baseline exists.
func SetupKeys(cfg *config.Config, passphrase string) error {
	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	if err := enc.Setup(passphrase); err != nil {
		return fmt.Errorf("generating keys: %w", err)
	}
	return nil
}
