package oidcache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"
)

// FileStore persists one YAML file per device below Dir.
//
//	host: router01
//	entries:
//	  - oid: .1.3.6.1.2.1.1.1.0
//	    value: Cisco IOS Software
//	    found: true
type FileStore struct {
	Dir string
}

// NewFileStore creates dir if needed and returns a FileStore rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("oidcache: mkdir %s: %w", dir, err)
	}
	return &FileStore{Dir: dir}, nil
}

type fileEntry struct {
	Context string `yaml:"context,omitempty"`
	OID     string `yaml:"oid"`
	Value   string `yaml:"value"`
	Found   bool   `yaml:"found"`
}

type fileDoc struct {
	Host    string      `yaml:"host"`
	Entries []fileEntry `yaml:"entries"`
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

func (s *FileStore) path(id string) string {
	return filepath.Join(s.Dir, unsafeChars.ReplaceAllString(id, "_")+".yml")
}

// Load implements Store. A missing file yields an empty map.
func (s *FileStore) Load(_ context.Context, id string) (map[Key]Entry, error) {
	out := make(map[Key]Entry)
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, err
	}

	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path(id), err)
	}
	for _, e := range doc.Entries {
		out[Key{Context: e.Context, OID: e.OID}] = Entry{Value: e.Value, Found: e.Found}
	}
	return out, nil
}

// Save implements Store. The file is replaced atomically.
func (s *FileStore) Save(_ context.Context, id string, entries map[Key]Entry) error {
	doc := fileDoc{Host: id, Entries: make([]fileEntry, 0, len(entries))}
	for k, e := range entries {
		doc.Entries = append(doc.Entries, fileEntry{Context: k.Context, OID: k.OID, Value: e.Value, Found: e.Found})
	}
	sort.Slice(doc.Entries, func(i, j int) bool {
		if doc.Entries[i].Context != doc.Entries[j].Context {
			return doc.Entries[i].Context < doc.Entries[j].Context
		}
		return doc.Entries[i].OID < doc.Entries[j].OID
	})

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	target := s.path(id)
	tmp, err := os.CreateTemp(s.Dir, filepath.Base(target)+".tmp*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), target)
}
