package report

import (
	"path"
	"path/filepath"
	"sort"
	"strings"

	"fim-go/internal/fim"
)

type treeNode struct {
	path  string
	isDir bool
}

// comparePaths orders slash-separated paths component by component, so a
// directory's contents sort directly after it.
func comparePaths(a, b string) int {
	as, bs := strings.Split(a, "/"), strings.Split(b, "/")
	for i := 0; i < len(as) && i < len(bs); i++ {
		if c := strings.Compare(as[i], bs[i]); c != 0 {
			return c
		}
	}
	return len(as) - len(bs)
}

type treeDoc struct {
	Root  string   `json:"root"`
	Dirs  []string `json:"dirs"`
	Files []string `json:"files"`
}

// Tree renders the directories and files of a scan as an indented tree.
func (r *Renderer) Tree(scan *fim.ScanResult) error {
	files := make([]string, 0, len(scan.Entries))
	for _, e := range scan.Entries {
		files = append(files, e.Path)
	}
	if done, err := r.encode(treeDoc{Root: scan.Root, Dirs: append([]string{}, scan.Dirs...), Files: files}); done {
		return err
	}

	nodes := make([]treeNode, 0, len(scan.Dirs)+len(files))
	for _, d := range scan.Dirs {
		nodes = append(nodes, treeNode{path: d, isDir: true})
	}
	for _, f := range files {
		nodes = append(nodes, treeNode{path: f})
	}
	sort.Slice(nodes, func(i, j int) bool {
		return comparePaths(nodes[i].path, nodes[j].path) < 0
	})

	r.printf("Root Directory:\n")
	r.printf("%s\n", r.paint(r.dir, filepath.Base(scan.Root)+"/"))
	for _, n := range nodes {
		indent := strings.Repeat("    ", strings.Count(n.path, "/")+1)
		name := path.Base(n.path)
		if n.isDir {
			r.printf("%s%s\n", indent, r.paint(r.dir, name+"/"))
			continue
		}
		r.printf("%s%s\n", indent, name)
	}
	for _, e := range scan.Errors {
		r.printf("   %s - %v\n", e.Path, e.Err)
	}
	return nil
}
