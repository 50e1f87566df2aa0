package report

import (
	"fim-go/internal/fim"
)

type changeDoc struct {
	Path    string `json:"path"`
	Status  string `json:"status"`
	OldHash string `json:"old_hash,omitempty"`
	NewHash string `json:"new_hash,omitempty"`
}

type fileErrorDoc struct {
	Path  string `json:"path"`
	Op    string `json:"op"`
	Error string `json:"error"`
}

type checkDoc struct {
	Algorithm      string         `json:"algorithm"`
	Changes        []changeDoc    `json:"changes"`
	Scanned        int            `json:"scanned"`
	Unchanged      int            `json:"unchanged"`
	Hashed         int            `json:"hashed"`
	FalsePositives []string       `json:"false_positives"`
	Errors         []fileErrorDoc `json:"errors"`
}

func fileErrorDocs(errs []*fim.FileError) []fileErrorDoc {
	docs := make([]fileErrorDoc, 0, len(errs))
	for _, e := range errs {
		docs = append(docs, fileErrorDoc{Path: e.Path, Op: e.Op, Error: e.Err.Error()})
	}
	return docs
}

// Check renders the outcome of an integrity check. Machine formats carry
// full hashes; text output shows the short prefixes.
func (r *Renderer) Check(res *fim.CheckResult) error {
	doc := checkDoc{
		Algorithm:      string(res.Algorithm),
		Changes:        make([]changeDoc, 0, len(res.Events)),
		Scanned:        res.Scanned,
		Unchanged:      res.Unchanged,
		Hashed:         res.Hashed,
		FalsePositives: append([]string{}, res.FalsePositives...),
		Errors:         fileErrorDocs(res.Errors),
	}
	for _, ev := range res.Events {
		doc.Changes = append(doc.Changes, changeDoc{
			Path:    ev.Path,
			Status:  string(ev.Status),
			OldHash: ev.OldHash,
			NewHash: ev.NewHash,
		})
	}
	if done, err := r.encode(doc); done {
		return err
	}

	r.printf("Using %s hash algorithm (matches baseline)\n", res.Algorithm.Display())
	for _, path := range res.FalsePositives {
		r.printf("   %s - false alarm (same hash): %s\n", path, r.paint(r.warning, "size or mtime changed but content is identical"))
	}
	for _, e := range res.Errors {
		r.printf("   %s - error checking: %v\n", e.Path, e.Err)
	}

	if !res.HasChanges() {
		r.printf("%s\n", r.paint(r.added, "No changes detected."))
	} else {
		r.printf("\nFound %d changes:\n", len(res.Events))
		for _, ev := range res.Events {
			switch ev.Status {
			case fim.StatusModified:
				r.printf("%s\n", r.paint(r.modified, "   MODIFIED: "+ev.Path))
				r.printf("   Old: %s -> New: %s\n", ev.ShortOldHash(), ev.ShortNewHash())
			case fim.StatusNew:
				r.printf("%s\n", r.paint(r.added, "   NEW: "+ev.Path))
			case fim.StatusDeleted:
				r.printf("%s\n", r.paint(r.deleted, "   DELETED: "+ev.Path))
			}
		}
	}

	r.printf("\n%d scanned, %d unchanged, %d hashed, %d false alarms, %d errors\n",
		res.Scanned, res.Unchanged, res.Hashed, len(res.FalsePositives), len(res.Errors))
	return nil
}

type baselineDoc struct {
	Algorithm string         `json:"algorithm"`
	Root      string         `json:"root"`
	CreatedAt string         `json:"created_at"`
	Files     int            `json:"files"`
	Errors    []fileErrorDoc `json:"errors"`
}

// Baseline renders the outcome of creating a baseline.
func (r *Renderer) Baseline(res *fim.BaselineResult) error {
	b := res.Baseline
	doc := baselineDoc{
		Algorithm: string(b.Algorithm),
		Root:      b.Root,
		CreatedAt: b.CreatedAt,
		Files:     len(b.Files),
		Errors:    fileErrorDocs(res.Errors),
	}
	if done, err := r.encode(doc); done {
		return err
	}

	for _, e := range res.Errors {
		r.printf("   %s - failed to %s: %v\n", e.Path, e.Op, e.Err)
	}
	r.printf("Baseline created! %d files recorded using %s\n", len(b.Files), b.Algorithm.Display())
	return nil
}
