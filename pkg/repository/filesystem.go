// SPDX-License-Identifier: MPL-2.0

package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"slices"

	"github.com/pakt/pakt/internal/fsutil"
	"github.com/pakt/pakt/pkg/pkgmeta"
)

// FilesystemRepository is a repository backed by a local JSON file.
//
// The file is either a JSON array of package records or an index document
// of the form {"packages": {"name": {"version": record}}}. Writes always
// produce the array form, sorted by name and version.
type FilesystemRepository struct {
	*ArrayRepository
	path         string
	allowMissing bool
}

// OpenFilesystemRepository loads a read-mostly repository from path. A
// missing or malformed file is reported as UnavailableError.
func OpenFilesystemRepository(path string) (*FilesystemRepository, error) {
	r := &FilesystemRepository{ArrayRepository: NewArrayRepository(path), path: path}
	if err := r.Reload(context.Background()); err != nil {
		return nil, err
	}
	return r, nil
}

// NewInstalledRepository loads the installed-package record at path. A
// missing file yields an empty repository; the file is created on the
// first Write.
func NewInstalledRepository(path string) (*FilesystemRepository, error) {
	r := &FilesystemRepository{ArrayRepository: NewArrayRepository("installed"), path: path, allowMissing: true}
	if err := r.Reload(context.Background()); err != nil {
		return nil, err
	}
	return r, nil
}

// Path returns the backing file.
func (r *FilesystemRepository) Path() string { return r.path }

// Reload re-reads the backing file, discarding in-memory changes.
func (r *FilesystemRepository) Reload(context.Context) error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && r.allowMissing {
			r.replaceAll(nil)
			return nil
		}
		return unavailable(r.Name(), "cannot read "+r.path, err)
	}
	records, err := decodeRecords(data)
	if err != nil {
		return unavailable(r.Name(), "cannot decode "+r.path, err)
	}
	pkgs := make([]*pkgmeta.Package, 0, len(records))
	for _, rec := range records {
		p, err := pkgmeta.FromRecord(rec)
		if err != nil {
			return unavailable(r.Name(), "invalid package in "+r.path, err)
		}
		pkgs = append(pkgs, p)
	}
	r.replaceAll(pkgs)
	return nil
}

// Write persists the repository atomically: the records are written to a
// temporary file in the same directory, synced, then renamed over the
// target.
func (r *FilesystemRepository) Write(context.Context) error {
	pkgs := r.Packages()
	records := make([]pkgmeta.Record, 0, len(pkgs))
	for _, p := range pkgs {
		records = append(records, p.Record())
	}
	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", r.path, err)
	}
	data = append(data, '\n')
	return fsutil.WriteFileAtomic(r.path, data)
}

func decodeRecords(data []byte) ([]pkgmeta.Record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var records []pkgmeta.Record
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, err
		}
		return records, nil
	}

	var doc struct {
		Packages json.RawMessage `json:"packages"`
	}
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, err
	}
	if len(doc.Packages) == 0 {
		return nil, nil
	}
	if bytes.HasPrefix(bytes.TrimSpace(doc.Packages), []byte("[")) {
		var records []pkgmeta.Record
		err := json.Unmarshal(doc.Packages, &records)
		return records, err
	}
	var byName map[string]map[string]pkgmeta.Record
	if err := json.Unmarshal(doc.Packages, &byName); err != nil {
		return nil, err
	}
	return flattenIndex(byName), nil
}

// flattenIndex turns a name → version → record map into a record list in
// deterministic order. Records missing name or version inherit the keys.
func flattenIndex(byName map[string]map[string]pkgmeta.Record) []pkgmeta.Record {
	var out []pkgmeta.Record
	for _, name := range slices.Sorted(maps.Keys(byName)) {
		versions := byName[name]
		for _, v := range slices.Sorted(maps.Keys(versions)) {
			rec := versions[v]
			if rec.Name == "" {
				rec.Name = name
			}
			if rec.Version == "" {
				rec.Version = v
			}
			out = append(out, rec)
		}
	}
	return out
}
