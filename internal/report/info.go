package report

import (
	"time"

	"fim-go/internal/fim"
)

type infoDoc struct {
	Algorithm string `json:"algorithm"`
	Files     int    `json:"files"`
	TotalSize int64  `json:"total_size"`
	CreatedAt string `json:"created_at,omitempty"`
	Version   string `json:"version,omitempty"`
	Root      string `json:"root,omitempty"`
	Legacy    bool   `json:"legacy"`
	Location  string `json:"location"`
}

// Info renders the stored baseline's metadata.
func (r *Renderer) Info(info *fim.BaselineInfo) error {
	doc := infoDoc{
		Algorithm: string(info.Algorithm),
		Files:     info.FileCount,
		TotalSize: info.TotalSize,
		CreatedAt: info.CreatedAt,
		Version:   info.Version,
		Root:      info.Root,
		Legacy:    info.Legacy,
		Location:  info.Location,
	}
	if done, err := r.encode(doc); done {
		return err
	}

	r.printf("%s\n", r.paint(r.title, "Baseline Information:"))
	r.printf("  Hash Algorithm: %s\n", info.Algorithm.Display())
	r.printf("  Total Files:    %d\n", info.FileCount)
	r.printf("  Total Size:     %s\n", HumanSize(info.TotalSize))
	if info.CreatedAt != "" {
		r.printf("  Created:        %s\n", info.CreatedAt)
	}
	if info.Version != "" {
		r.printf("  Version:        %s\n", info.Version)
	}
	if info.Root != "" {
		r.printf("  Root:           %s\n", info.Root)
	}
	r.printf("  Location:       %s\n", info.Location)
	if info.Legacy {
		r.printf("  %s\n", r.paint(r.warning, "Old baseline format: algorithm assumed SHA1"))
	}
	return nil
}

type runDoc struct {
	ID             int64  `json:"id"`
	RunID          string `json:"run_id"`
	Operation      string `json:"operation"`
	Root           string `json:"root"`
	Algorithm      string `json:"algorithm"`
	StartedAt      string `json:"started_at"`
	FinishedAt     string `json:"finished_at,omitempty"`
	Status         string `json:"status"`
	FilesScanned   int    `json:"files_scanned"`
	New            int    `json:"new"`
	Modified       int    `json:"modified"`
	Deleted        int    `json:"deleted"`
	FalsePositives int    `json:"false_positives"`
	Errors         int    `json:"errors"`
}

// History renders recorded runs, newest first.
func (r *Renderer) History(runs []*fim.Run) error {
	docs := make([]runDoc, 0, len(runs))
	for _, run := range runs {
		d := runDoc{
			ID:             run.ID,
			RunID:          run.RunID,
			Operation:      run.Operation,
			Root:           run.Root,
			Algorithm:      string(run.Algorithm),
			StartedAt:      run.StartedAt.UTC().Format(time.RFC3339),
			Status:         run.Status,
			FilesScanned:   run.FilesScanned,
			New:            run.NewCount,
			Modified:       run.ModifiedCount,
			Deleted:        run.DeletedCount,
			FalsePositives: run.FalsePositives,
			Errors:         run.ErrorCount,
		}
		if run.FinishedAt.Valid {
			d.FinishedAt = run.FinishedAt.Time.UTC().Format(time.RFC3339)
		}
		docs = append(docs, d)
	}
	if done, err := r.encode(docs); done {
		return err
	}

	if len(runs) == 0 {
		r.printf("No runs recorded.\n")
		return nil
	}
	for _, run := range runs {
		duration := ""
		if run.FinishedAt.Valid {
			d := run.FinishedAt.Time.Sub(run.StartedAt)
			duration = d.Truncate(time.Millisecond).String()
		}
		r.printf("#%d  %-8s  %s  %-7s  %-7s  %5d files  +%d ~%d -%d  %s  %s\n",
			run.ID,
			run.Operation,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.Algorithm,
			run.Status,
			run.FilesScanned,
			run.NewCount,
			run.ModifiedCount,
			run.DeletedCount,
			duration,
			run.Root,
		)
	}
	return nil
}

type mirrorDoc struct {
	Matches         bool     `json:"matches"`
	RemoteVersion   int64    `json:"remote_version"`
	MetadataDiffers bool     `json:"metadata_differs"`
	OnlyLocal       []string `json:"only_local"`
	OnlyRemote      []string `json:"only_remote"`
	RecordsDiffer   []string `json:"records_differ"`
}

// Mirror renders the comparison of the local baseline with its mirrored copy.
func (r *Renderer) Mirror(rep *fim.MirrorReport) error {
	doc := mirrorDoc{
		Matches:         rep.Matches(),
		RemoteVersion:   rep.RemoteVersion,
		MetadataDiffers: rep.MetadataDiffers,
		OnlyLocal:       append([]string{}, rep.OnlyLocal...),
		OnlyRemote:      append([]string{}, rep.OnlyRemote...),
		RecordsDiffer:   append([]string{}, rep.RecordsDiffer...),
	}
	if done, err := r.encode(doc); done {
		return err
	}

	pushed := time.Unix(rep.RemoteVersion, 0).Local().Format("2006-01-02 15:04:05")
	if rep.Matches() {
		r.printf("%s (mirrored copy pushed %s)\n", r.paint(r.added, "Local baseline matches the mirrored copy."), pushed)
		return nil
	}

	r.printf("%s (mirrored copy pushed %s)\n", r.paint(r.warning, "Local baseline differs from the mirrored copy!"), pushed)
	if rep.MetadataDiffers {
		r.printf("   metadata differs\n")
	}
	for _, p := range rep.OnlyLocal {
		r.printf("   only in local baseline: %s\n", p)
	}
	for _, p := range rep.OnlyRemote {
		r.printf("   only in mirrored copy:  %s\n", p)
	}
	for _, p := range rep.RecordsDiffer {
		r.printf("   record differs:         %s\n", p)
	}
	return nil
}
