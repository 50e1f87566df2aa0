package fim

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"
)

// Options holds the optional collaborators of FIMService.
type Options struct {
	// Workers bounds concurrent hashing. Values below 1 mean runtime.NumCPU().
	Workers int

	// HostID names this host's objects in the mirror.
	HostID string

	// Mirror receives offsite baseline copies. Nil disables mirror operations.
	Mirror Mirror

	// Encryptor encrypts mirrored copies. Nil stores them in plaintext.
	Encryptor Encryptor
}

// FIMService is the orchestration layer that coordinates the scanner, hasher,
// snapshot store and diff engine to perform the operations needed by the CLI.
type FIMService struct {
	store     SnapshotStore
	scanner   Scanner
	hasher    Hasher
	database  Database
	logger    Logger
	clock     Clock
	idgen     IDGenerator
	engine    *Engine
	workers   int
	hostID    string
	mirror    Mirror
	encryptor Encryptor
}

// NewFIMService creates a new FIMService with the provided dependencies.
func NewFIMService(store SnapshotStore, scanner Scanner, hasher Hasher, database Database, logger Logger, clock Clock, idgen IDGenerator, opts Options) *FIMService {
	engine := NewEngine(hasher, logger, opts.Workers)
	return &FIMService{
		store:     store,
		scanner:   scanner,
		hasher:    hasher,
		database:  database,
		logger:    logger,
		clock:     clock,
		idgen:     idgen,
		engine:    engine,
		workers:   engine.workers,
		hostID:    opts.HostID,
		mirror:    opts.Mirror,
		encryptor: opts.Encryptor,
	}
}

// CreateBaseline scans root, hashes every file with algo and replaces the
// stored baseline. Files that cannot be read, or that change while being
// hashed, are reported in the result and left out of the baseline.
// A failure to save is returned as *PersistError.
func (s *FIMService) CreateBaseline(root string, algo Algorithm) (result *BaselineResult, err error) {
	if !algo.Valid() {
		return nil, fmt.Errorf("invalid hash algorithm %q", algo)
	}

	run, err := s.startRun("baseline", root, algo)
	if err != nil {
		return nil, err
	}
	defer func() { s.finishRun(run, err) }()

	s.logger.Info("creating baseline", "root", root, "algorithm", algo)

	scan, err := s.scanner.Scan(root)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	run.FilesScanned = len(scan.Entries)

	records := make([]*FileRecord, len(scan.Entries))
	hashErrs := make([]*FileError, len(scan.Entries))
	forEach(s.workers, len(scan.Entries), func(i int) {
		records[i], hashErrs[i] = s.recordFile(scan.Entries[i], algo)
	})

	baseline := &Baseline{
		Algorithm: algo,
		CreatedAt: s.clock.Now().UTC().Format(time.RFC3339),
		Version:   BaselineVersion,
		Root:      root,
		Files:     make(map[string]*FileRecord, len(records)),
	}
	errs := append([]*FileError(nil), scan.Errors...)
	for i, rec := range records {
		if hashErrs[i] != nil {
			s.logger.Warn("failed to hash", "path", scan.Entries[i].Path, "error", hashErrs[i].Err)
			errs = append(errs, hashErrs[i])
			continue
		}
		baseline.Files[rec.Path] = rec
		s.logger.Debug("recorded", "path", rec.Path, "algorithm", algo)
	}
	run.ErrorCount = len(errs)

	if err := s.store.Save(baseline); err != nil {
		return nil, err
	}

	s.logger.Info("baseline created", "files", len(baseline.Files), "algorithm", algo, "location", s.store.Location())
	return &BaselineResult{Baseline: baseline, Errors: errs}, nil
}

// recordFile hashes one scanned file and verifies that its size and mtime
// did not change while it was being read.
func (s *FIMService) recordFile(entry ScanEntry, algo Algorithm) (*FileRecord, *FileError) {
	sum, err := s.hasher.Hash(entry.FullPath, algo)
	if err != nil {
		return nil, asFileError(entry.Path, "hash", err)
	}

	size, mtime, err := s.scanner.Stat(entry.FullPath)
	if err != nil {
		return nil, &FileError{Path: entry.Path, Op: "stat", Err: err}
	}
	if size != entry.Size || mtime != entry.Mtime {
		return nil, &FileError{Path: entry.Path, Op: "hash", Err: errors.New("file changed while hashing")}
	}

	return &FileRecord{Path: entry.Path, Hash: sum, Size: entry.Size, Mtime: entry.Mtime}, nil
}

// Check compares the tree at root with the stored baseline.
// It returns ErrNotFound when there is no baseline and *AlgorithmMismatchError,
// without scanning or hashing anything, when algo differs from the
// baseline's algorithm.
func (s *FIMService) Check(root string, algo Algorithm) (result *CheckResult, err error) {
	run, err := s.startRun("check", root, algo)
	if err != nil {
		return nil, err
	}
	defer func() {
		if result != nil {
			run.FilesScanned = result.Scanned
			run.NewCount = result.Count(StatusNew)
			run.ModifiedCount = result.Count(StatusModified)
			run.DeletedCount = result.Count(StatusDeleted)
			run.FalsePositives = len(result.FalsePositives)
			run.ErrorCount = len(result.Errors)
		}
		s.finishRun(run, err)
	}()

	baseline, err := s.loadBaseline()
	if err != nil {
		return nil, err
	}

	if baseline.Algorithm != algo {
		return nil, &AlgorithmMismatchError{Baseline: baseline.Algorithm, Requested: algo}
	}
	s.logger.Info("checking file integrity", "root", root, "algorithm", algo)

	if baseline.Root == "" {
		var moved int
		baseline, moved = baseline.RelativeTo(root)
		if moved > 0 {
			s.logger.Info("baseline paths rewritten relative to check root", "root", root, "paths", moved)
		}
	} else if filepath.Clean(baseline.Root) != filepath.Clean(root) {
		s.logger.Warn("check root differs from baseline root", "baseline_root", baseline.Root, "root", root)
	}

	scan, err := s.scanner.Scan(root)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}

	result, err = s.engine.Compare(baseline, scan, algo)
	if err != nil {
		return nil, err
	}

	for _, ev := range result.Events {
		s.logger.Info("change detected", "path", ev.Path, "status", ev.Status)
	}
	s.logger.Info("check complete",
		"changes", len(result.Events),
		"unchanged", result.Unchanged,
		"false_positives", len(result.FalsePositives),
		"errors", len(result.Errors),
	)
	return result, nil
}

// Info summarises the stored baseline.
func (s *FIMService) Info() (*BaselineInfo, error) {
	baseline, err := s.loadBaseline()
	if err != nil {
		return nil, err
	}
	return &BaselineInfo{
		Algorithm: baseline.Algorithm,
		CreatedAt: baseline.CreatedAt,
		Version:   baseline.Version,
		Root:      baseline.Root,
		FileCount: len(baseline.Files),
		TotalSize: baseline.TotalSize(),
		Legacy:    baseline.Legacy,
		Location:  s.store.Location(),
	}, nil
}

// Tree enumerates root for display.
func (s *FIMService) Tree(root string) (*ScanResult, error) {
	scan, err := s.scanner.Scan(root)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	return scan, nil
}

// loadBaseline loads the stored baseline and surfaces legacy-format warnings.
func (s *FIMService) loadBaseline() (*Baseline, error) {
	baseline, err := s.store.Load()
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w at %s: create one with the baseline command first", ErrNotFound, s.store.Location())
		}
		return nil, fmt.Errorf("loading baseline: %w", err)
	}

	if baseline.Legacy {
		s.logger.Warn("old baseline format detected, hash algorithm unknown (assuming sha1)", "location", s.store.Location())
		for _, path := range baseline.Paths() {
			if guess := DetectAlgorithmFromLength(baseline.Files[path].Hash); guess != AlgorithmSHA1 {
				s.logger.Warn("legacy baseline hash does not look like sha1", "path", path, "detected", guess)
				break
			}
		}
	}
	return baseline, nil
}
