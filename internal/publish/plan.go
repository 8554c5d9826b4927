package publish

import (
	"sort"

	"github.com/ochronus/goneocities/internal/site"
)

// ChangeReason says why a local file is scheduled for upload.
type ChangeReason string

const (
	ReasonNew     ChangeReason = "new"
	ReasonChanged ChangeReason = "changed"
)

// protectedPaths are refused by the delete endpoint.
var protectedPaths = map[string]bool{
	"/index.html": true,
}

// Change is a local file that differs from the site.
type Change struct {
	File   LocalFile
	Reason ChangeReason
}

// Plan is the set of operations that bring the site in line with a local directory.
type Plan struct {
	Uploads   []Change
	Unchanged []LocalFile
	Deletes   []string
}

// Empty reports whether the plan has nothing to do.
func (p Plan) Empty() bool {
	return len(p.Uploads) == 0 && len(p.Deletes) == 0
}

// UploadBytes sums the sizes of the files to upload.
func (p Plan) UploadBytes() int64 {
	var total int64
	for _, c := range p.Uploads {
		total += c.File.Size
	}
	return total
}

// BuildPlan compares local files against the catalog. Remote files missing
// locally are listed in Deletes only when deleteRemote is set; directories
// and protected paths are never deleted.
func BuildPlan(catalog *site.Catalog, local []LocalFile, deleteRemote bool) Plan {
	var plan Plan
	seen := make(map[string]bool, len(local))

	for _, f := range local {
		remote := f.RemotePath()
		seen[remote] = true

		if !catalog.HashChanged(f.Hash, remote) {
			plan.Unchanged = append(plan.Unchanged, f)
			continue
		}
		reason := ReasonNew
		if catalog.FileExists(remote) {
			reason = ReasonChanged
		}
		plan.Uploads = append(plan.Uploads, Change{File: f, Reason: reason})
	}

	if deleteRemote {
		for _, rf := range catalog.Files() {
			if seen[rf.Path] || protectedPaths[rf.Path] {
				continue
			}
			plan.Deletes = append(plan.Deletes, rf.Path)
		}
		sort.Strings(plan.Deletes)
	}

	sort.Slice(plan.Uploads, func(i, j int) bool {
		return plan.Uploads[i].File.RelPath < plan.Uploads[j].File.RelPath
	})
	return plan
}
