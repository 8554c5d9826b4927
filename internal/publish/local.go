package publish

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/ochronus/goneocities/internal/site"
)

// LocalFile is a file in the local site directory.
type LocalFile struct {
	RelPath string
	AbsPath string
	Hash    string
	Size    int64
}

// RemotePath returns the path the file will have on the site.
func (f LocalFile) RemotePath() string {
	return "/" + f.RelPath
}

type hashJob struct {
	relPath string
	absPath string
	size    int64
}

type hashResult struct {
	file LocalFile
	err  error
}

// resolveRoot follows symlinks in dir and requires the target to be a directory.
func resolveRoot(dir string) (string, error) {
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve site directory: %w", err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("failed to stat site directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("site directory %s is not a directory", dir)
	}
	return resolved, nil
}

// WalkLocal lists the regular files under dir, skipping excluded paths, and
// hashes them with up to workers goroutines. The result is sorted by path.
// dir may be a symlink but must resolve to a directory.
func WalkLocal(ctx context.Context, dir string, excludes []string, workers int) ([]LocalFile, error) {
	dir, err := resolveRoot(dir)
	if err != nil {
		return nil, err
	}
	matcher := NewExcludeMatcher(excludes)

	var jobs []hashJob
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		if matcher.Match(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		jobs = append(jobs, hashJob{relPath: rel, absPath: p, size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}
	if workers == 0 {
		return []LocalFile{}, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobCh := make(chan hashJob)
	resultCh := make(chan hashResult, len(jobs))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hashWorker(ctx, jobCh, resultCh)
		}()
	}

	go func() {
		defer close(jobCh)
		for _, j := range jobs {
			select {
			case <-ctx.Done():
				return
			case jobCh <- j:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	files := make([]LocalFile, 0, len(jobs))
	var firstErr error
	for r := range resultCh {
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
				cancel()
			}
			continue
		}
		files = append(files, r.file)
	}
	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil && len(files) != len(jobs) {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}

// hashWorker hashes files until jobs is closed or ctx is done
func hashWorker(ctx context.Context, jobs <-chan hashJob, results chan<- hashResult) {
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			hash, err := site.HashLocal(j.absPath)
			results <- hashResult{
				file: LocalFile{RelPath: j.relPath, AbsPath: j.absPath, Hash: hash, Size: j.size},
				err:  err,
			}
		}
	}
}
