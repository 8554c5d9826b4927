package site

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ochronus/goneocities/internal/services/neocities"
)

// Entry is a file or directory on the site. The set of implementations is
// closed: *File and *Dir.
type Entry interface {
	EntryPath() string
	LastModified() time.Time
	isEntry()
}

// File represents a file on the site
type File struct {
	// Path from the site root, e.g. /index.html
	Path     string
	Modified time.Time
	SHA1Hash string
	Size     uint64
}

// Dir represents a directory on the site
type Dir struct {
	Path     string
	Modified time.Time
}

func (f *File) EntryPath() string       { return f.Path }
func (f *File) LastModified() time.Time { return f.Modified }
func (*File) isEntry()                  {}

func (d *Dir) EntryPath() string       { return d.Path }
func (d *Dir) LastModified() time.Time { return d.Modified }
func (*Dir) isEntry()                  {}

var (
	_ Entry = (*File)(nil)
	_ Entry = (*Dir)(nil)
)

// rfc2822Layouts covers the date forms RFC 2822 allows: optional weekday
// and optional seconds. Named zones are rewritten to numeric offsets first.
var rfc2822Layouts = []string{
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04 -0700",
	"2 Jan 2006 15:04 -0700",
}

// rfc2822Zones are the obsolete zone names of RFC 2822 section 4.3.
var rfc2822Zones = map[string]string{
	"UT":  "+0000",
	"GMT": "+0000",
	"Z":   "+0000",
	"EST": "-0500",
	"EDT": "-0400",
	"CST": "-0600",
	"CDT": "-0500",
	"MST": "-0700",
	"MDT": "-0600",
	"PST": "-0800",
	"PDT": "-0700",
}

// normalizeRFC2822 drops a trailing comment and replaces a named zone with
// its numeric offset. Unknown named zones are rejected.
func normalizeRFC2822(value string) (string, error) {
	value = strings.TrimSpace(value)
	if strings.HasSuffix(value, ")") {
		if i := strings.LastIndex(value, "("); i >= 0 {
			value = strings.TrimSpace(value[:i])
		}
	}

	i := strings.LastIndex(value, " ")
	if i < 0 {
		return value, nil
	}
	zone := value[i+1:]
	if zone == "" || zone[0] == '+' || zone[0] == '-' {
		return value, nil
	}
	offset, ok := rfc2822Zones[strings.ToUpper(zone)]
	if !ok {
		return "", fmt.Errorf("unknown time zone %q", zone)
	}
	return value[:i+1] + offset, nil
}

// ParseRFC2822 parses an RFC 2822 date and returns it in UTC.
func ParseRFC2822(value string) (time.Time, error) {
	normalized, err := normalizeRFC2822(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid RFC 2822 date %q: %w", value, err)
	}
	for _, layout := range rfc2822Layouts {
		if t, err := time.Parse(layout, normalized); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid RFC 2822 date %q", value)
}

// FormatRFC2822 renders t the way the service reports updated_at.
func FormatRFC2822(t time.Time) string {
	return t.UTC().Format(time.RFC1123Z)
}

type rawEntry map[string]json.RawMessage

func parseError(format string, args ...any) error {
	return neocities.ParseError("parse manifest entry", fmt.Errorf(format, args...))
}

func (r rawEntry) field(key string) (json.RawMessage, error) {
	raw, ok := r[key]
	if !ok {
		return nil, parseError("missing field %q", key)
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, parseError("field %q is null", key)
	}
	return raw, nil
}

func (r rawEntry) getString(key string) (string, error) {
	raw, err := r.field(key)
	if err != nil {
		return "", err
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", parseError("field %q is not a string", key)
	}
	return s, nil
}

func (r rawEntry) getBool(key string) (bool, error) {
	raw, err := r.field(key)
	if err != nil {
		return false, err
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false, parseError("field %q is not a boolean", key)
	}
	return b, nil
}

func (r rawEntry) getUint(key string) (uint64, error) {
	raw, err := r.field(key)
	if err != nil {
		return 0, err
	}
	var n uint64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, parseError("field %q is not a non-negative integer", key)
	}
	return n, nil
}

func (r rawEntry) common() (string, time.Time, error) {
	path, err := r.getString("path")
	if err != nil {
		return "", time.Time{}, err
	}
	updated, err := r.getString("updated_at")
	if err != nil {
		return "", time.Time{}, err
	}
	modified, err := ParseRFC2822(updated)
	if err != nil {
		return "", time.Time{}, parseError("field %q: %v", "updated_at", err)
	}
	// The server returns paths relative to the root.
	return "/" + path, modified, nil
}

// ParseEntry parses one element of the list endpoint's files array.
func ParseEntry(raw json.RawMessage) (Entry, error) {
	var r rawEntry
	if err := json.Unmarshal(raw, &r); err != nil || r == nil {
		return nil, parseError("entry is not a JSON object")
	}

	isDir, err := r.getBool("is_directory")
	if err != nil {
		return nil, err
	}

	path, modified, err := r.common()
	if err != nil {
		return nil, err
	}

	if isDir {
		return &Dir{Path: path, Modified: modified}, nil
	}

	hash, err := r.getString("sha1_hash")
	if err != nil {
		return nil, err
	}
	size, err := r.getUint("size")
	if err != nil {
		return nil, err
	}

	return &File{
		Path:     path,
		Modified: modified,
		SHA1Hash: hash,
		Size:     size,
	}, nil
}

// ParseManifest parses a whole list response body into entries, in the
// order the server returned them. The first malformed entry aborts parsing.
func ParseManifest(body string) ([]Entry, error) {
	if err := neocities.CheckResult(body); err != nil {
		return nil, err
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, neocities.ParseError("parse manifest", fmt.Errorf("invalid JSON: %w", err))
	}
	rawFiles, ok := doc["files"]
	if !ok || bytes.Equal(bytes.TrimSpace(rawFiles), []byte("null")) {
		return nil, neocities.ParseError("parse manifest", fmt.Errorf("missing files array"))
	}
	var files []json.RawMessage
	if err := json.Unmarshal(rawFiles, &files); err != nil {
		return nil, neocities.ParseError("parse manifest", fmt.Errorf("files is not an array"))
	}

	entries := make([]Entry, 0, len(files))
	for i, raw := range files {
		entry, err := ParseEntry(raw)
		if err != nil {
			return nil, fmt.Errorf("files[%d]: %w", i, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
