package fim

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
)

// mirrorObjectName is the name under which the baseline is mirrored.
const mirrorObjectName = "baseline"

// MirrorReport is the result of comparing the local baseline with its mirrored copy.
type MirrorReport struct {
	RemoteVersion   int64
	MetadataDiffers bool
	OnlyLocal       []string
	OnlyRemote      []string
	RecordsDiffer   []string
}

// Matches reports whether the local baseline is identical to the mirrored copy.
func (r *MirrorReport) Matches() bool {
	return !r.MetadataDiffers && len(r.OnlyLocal) == 0 && len(r.OnlyRemote) == 0 && len(r.RecordsDiffer) == 0
}

var errNoMirror = errors.New("no mirror configured")

// PushBaseline uploads the stored baseline to the mirror, encrypting it when
// an encryptor is configured. Returns the version stored with the copy.
func (s *FIMService) PushBaseline() (int64, error) {
	if s.mirror == nil {
		return 0, errNoMirror
	}

	baseline, err := s.loadBaseline()
	if err != nil {
		return 0, err
	}

	var plain bytes.Buffer
	if err := EncodeBaseline(&plain, baseline); err != nil {
		return 0, err
	}

	payload := &plain
	if s.encryptor != nil {
		var sealed bytes.Buffer
		if err := s.encryptor.Encrypt(&plain, &sealed); err != nil {
			return 0, fmt.Errorf("encrypting baseline: %w", err)
		}
		payload = &sealed
	}

	version := s.clock.Now().Unix()
	size := int64(payload.Len())
	if err := s.mirror.Put(s.hostID, mirrorObjectName, payload, size, version); err != nil {
		return 0, fmt.Errorf("uploading baseline to mirror: %w", err)
	}

	s.logger.Info("baseline mirrored", "host", s.hostID, "version", version, "bytes", size)
	return version, nil
}

// PullBaseline replaces the local baseline with the mirrored copy.
// dec is required when mirrored copies are encrypted.
func (s *FIMService) PullBaseline(dec DecryptionContext) (*Baseline, error) {
	remote, _, err := s.fetchMirror(dec)
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(remote); err != nil {
		return nil, err
	}
	s.logger.Info("baseline restored from mirror", "host", s.hostID, "files", len(remote.Files))
	return remote, nil
}

// VerifyMirror compares the local baseline with the mirrored copy.
// A mismatch means one of the two copies was altered after the last push.
func (s *FIMService) VerifyMirror(dec DecryptionContext) (*MirrorReport, error) {
	remote, version, err := s.fetchMirror(dec)
	if err != nil {
		return nil, err
	}
	local, err := s.loadBaseline()
	if err != nil {
		return nil, err
	}

	report := compareBaselines(local, remote)
	report.RemoteVersion = version
	if !report.Matches() {
		s.logger.Warn("local baseline differs from mirrored copy",
			"only_local", len(report.OnlyLocal),
			"only_remote", len(report.OnlyRemote),
			"differ", len(report.RecordsDiffer),
		)
	}
	return report, nil
}

func (s *FIMService) fetchMirror(dec DecryptionContext) (*Baseline, int64, error) {
	if s.mirror == nil {
		return nil, 0, errNoMirror
	}

	version, err := s.mirror.Version(s.hostID, mirrorObjectName)
	if err != nil {
		return nil, 0, fmt.Errorf("checking mirror version: %w", err)
	}
	if version == 0 {
		return nil, 0, fmt.Errorf("mirror has no baseline for host %s", s.hostID)
	}

	var payload bytes.Buffer
	if err := s.mirror.Get(s.hostID, mirrorObjectName, &payload); err != nil {
		return nil, 0, fmt.Errorf("downloading baseline from mirror: %w", err)
	}

	plain := &payload
	if s.encryptor != nil {
		if dec == nil {
			return nil, 0, errors.New("mirrored baseline is encrypted: unlock the private key first")
		}
		var out bytes.Buffer
		if err := dec.Decrypt(&payload, &out); err != nil {
			return nil, 0, fmt.Errorf("decrypting mirrored baseline: %w", err)
		}
		plain = &out
	}

	remote, err := DecodeBaseline(plain)
	if err != nil {
		return nil, 0, fmt.Errorf("reading mirrored baseline: %w", err)
	}
	return remote, version, nil
}

func compareBaselines(local, remote *Baseline) *MirrorReport {
	report := &MirrorReport{
		MetadataDiffers: local.Algorithm != remote.Algorithm ||
			local.CreatedAt != remote.CreatedAt ||
			local.Version != remote.Version ||
			local.Root != remote.Root,
	}
	for path, l := range local.Files {
		r, ok := remote.Files[path]
		switch {
		case !ok:
			report.OnlyLocal = append(report.OnlyLocal, path)
		case l.Hash != r.Hash || l.Size != r.Size || l.Mtime != r.Mtime:
			report.RecordsDiffer = append(report.RecordsDiffer, path)
		}
	}
	for path := range remote.Files {
		if _, ok := local.Files[path]; !ok {
			report.OnlyRemote = append(report.OnlyRemote, path)
		}
	}
	sort.Strings(report.OnlyLocal)
	sort.Strings(report.OnlyRemote)
	sort.Strings(report.RecordsDiffer)
	return report
}
