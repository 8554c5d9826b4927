// Package site holds the remote file manifest of a Neocities site and answers
// whether local content differs from what is already published.
//
// The service reports a SHA-1 for every file in its list response, so
// comparing hashes avoids downloading anything. All paths begin with "/".
package site

import (
	"sort"
	"strings"
)

// Lister is the part of the gateway a Catalog needs.
type Lister interface {
	ListAll() (string, error)
}

// Catalog is the flat list of files and directories on a site, in the order
// the server returned them. A Catalog is not safe for concurrent Refresh.
type Catalog struct {
	lister  Lister
	entries []Entry
	index   map[string]Entry
}

// Load lists the authenticated user's site and parses the result.
func Load(lister Lister) (*Catalog, error) {
	c := &Catalog{lister: lister}
	if err := c.Refresh(); err != nil {
		return nil, err
	}
	return c, nil
}

// Refresh lists the site again and replaces every entry. On error the
// previously loaded entries are kept as they were.
func (c *Catalog) Refresh() error {
	body, err := c.lister.ListAll()
	if err != nil {
		return err
	}

	entries, err := ParseManifest(body)
	if err != nil {
		return err
	}

	index := make(map[string]Entry, len(entries))
	for _, e := range entries {
		if _, dup := index[e.EntryPath()]; !dup {
			index[e.EntryPath()] = e
		}
	}

	c.entries = entries
	c.index = index
	return nil
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Entries returns a copy of all entries in server order.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Files returns every file entry in server order.
func (c *Catalog) Files() []*File {
	var files []*File
	for _, e := range c.entries {
		if f, ok := e.(*File); ok {
			files = append(files, f)
		}
	}
	return files
}

// Dirs returns every directory entry in server order.
func (c *Catalog) Dirs() []*Dir {
	var dirs []*Dir
	for _, e := range c.entries {
		if d, ok := e.(*Dir); ok {
			dirs = append(dirs, d)
		}
	}
	return dirs
}

// Paths returns all entry paths, sorted.
func (c *Catalog) Paths() []string {
	paths := make([]string, 0, len(c.entries))
	for _, e := range c.entries {
		paths = append(paths, e.EntryPath())
	}
	sort.Strings(paths)
	return paths
}

// TotalSize sums the sizes of all files.
func (c *Catalog) TotalSize() uint64 {
	var total uint64
	for _, f := range c.Files() {
		total += f.Size
	}
	return total
}

// Lookup returns the entry at path. Matching is exact and case-sensitive.
func (c *Catalog) Lookup(path string) (Entry, bool) {
	e, ok := c.index[path]
	return e, ok
}

// LookupFile returns the file at path, or false if path is missing or a directory.
func (c *Catalog) LookupFile(path string) (*File, bool) {
	e, ok := c.Lookup(path)
	if !ok {
		return nil, false
	}
	f, ok := e.(*File)
	return f, ok
}

// LookupDir returns the directory at path, or false if path is missing or a file.
func (c *Catalog) LookupDir(path string) (*Dir, bool) {
	e, ok := c.Lookup(path)
	if !ok {
		return nil, false
	}
	d, ok := e.(*Dir)
	return d, ok
}

// Exists reports whether any entry has path.
func (c *Catalog) Exists(path string) bool {
	_, ok := c.Lookup(path)
	return ok
}

// FileExists reports whether path is a file.
func (c *Catalog) FileExists(path string) bool {
	_, ok := c.LookupFile(path)
	return ok
}

// DirExists reports whether path is a directory.
func (c *Catalog) DirExists(path string) bool {
	_, ok := c.LookupDir(path)
	return ok
}

// HashChanged reports whether a local content hash differs from the remote
// file at remotePath. A missing remote file, or a directory at that path,
// counts as changed.
func (c *Catalog) HashChanged(hash, remotePath string) bool {
	f, ok := c.LookupFile(remotePath)
	if !ok {
		return true
	}
	return !strings.EqualFold(f.SHA1Hash, hash)
}

// BytesChanged reports whether data differs from the remote file at remotePath.
func (c *Catalog) BytesChanged(data []byte, remotePath string) bool {
	return c.HashChanged(HashBytes(data), remotePath)
}

// FileChangedLocal reads localPath and reports whether it differs from the
// remote file at remotePath. The local file is always read, so an unreadable
// file is an error even when nothing exists remotely.
func (c *Catalog) FileChangedLocal(localPath, remotePath string) (bool, error) {
	hash, err := HashLocal(localPath)
	if err != nil {
		return false, err
	}
	return c.HashChanged(hash, remotePath), nil
}
