// Package planstore persists plan.PlanSpec definitions as `*.plan` files
// under a directory, the filesystem equivalent of the teacher's
// flowstore package (flow CRUD with optimistic-concurrency versioning).
// The teacher backs flows with a NATS JetStream KV bucket; that is a
// distributed dependency this module's Non-goals exclude, so the same
// Create/Get/Update/Delete/List contract is rebuilt here over plain
// files with atomic rename-on-write, matching the durability style the
// wal package already uses for segment writes.
package planstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/data-tracks/DataTracks/errors"
	"github.com/data-tracks/DataTracks/plan"
)

const fileExt = ".plan"

// Record wraps a plan.PlanSpec with the metadata planstore needs for
// optimistic concurrency and listing, mirroring flowstore.Flow's
// Version/CreatedAt/UpdatedAt fields.
type Record struct {
	Spec      plan.PlanSpec `json:"spec"`
	Version   int64         `json:"version"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Store manages plan definitions stored as individual files under Dir.
type Store struct {
	dir string
}

// New returns a Store rooted at dir, creating it if necessary.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.WrapInvalid(fmt.Errorf("directory cannot be empty"), "planstore", "New", "validate dir")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.WrapFatal(err, "planstore", "New", "create plan directory")
	}
	return &Store{dir: dir}, nil
}

func (s *Store) pathFor(id string) string {
	return filepath.Join(s.dir, id+fileExt)
}

// Create writes a new plan definition. It fails if a plan with the same
// id already exists.
func (s *Store) Create(spec plan.PlanSpec) error {
	if spec.ID == "" {
		return errors.WrapInvalid(fmt.Errorf("plan ID cannot be empty"), "planstore", "Create", "validate spec")
	}
	if _, err := plan.Build(spec); err != nil {
		return errors.WrapInvalid(err, "planstore", "Create", "validate plan topology")
	}

	path := s.pathFor(spec.ID)
	if _, err := os.Stat(path); err == nil {
		return errors.WrapInvalid(fmt.Errorf("plan %q already exists", spec.ID), "planstore", "Create", "duplicate id")
	}

	now := nowFunc()
	rec := Record{Spec: spec, Version: 1, CreatedAt: now, UpdatedAt: now}
	return s.writeAtomic(path, rec)
}

// Get reads a plan definition by id.
func (s *Store) Get(id string) (*Record, error) {
	if id == "" {
		return nil, errors.WrapInvalid(fmt.Errorf("plan ID cannot be empty"), "planstore", "Get", "validate id")
	}
	data, err := os.ReadFile(s.pathFor(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapInvalid(err, "planstore", "Get", "plan not found")
		}
		return nil, errors.WrapTransient(err, "planstore", "Get", "read plan file")
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.WrapFatal(err, "planstore", "Get", "unmarshal plan")
	}
	return &rec, nil
}

// Update replaces an existing plan's spec, enforcing optimistic
// concurrency against expectedVersion the same way flowstore.Update
// checks Flow.Version against the stored copy.
func (s *Store) Update(spec plan.PlanSpec, expectedVersion int64) (*Record, error) {
	current, err := s.Get(spec.ID)
	if err != nil {
		return nil, err
	}
	if current.Version != expectedVersion {
		return nil, errors.WrapInvalid(
			fmt.Errorf("version mismatch: expected %d, got %d", expectedVersion, current.Version),
			"planstore", "Update", "conflict: plan was modified concurrently")
	}
	if _, err := plan.Build(spec); err != nil {
		return nil, errors.WrapInvalid(err, "planstore", "Update", "validate plan topology")
	}

	rec := Record{
		Spec:      spec,
		Version:   current.Version + 1,
		CreatedAt: current.CreatedAt,
		UpdatedAt: nowFunc(),
	}
	if err := s.writeAtomic(s.pathFor(spec.ID), rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Delete removes a plan definition by id.
func (s *Store) Delete(id string) error {
	if err := os.Remove(s.pathFor(id)); err != nil {
		if os.IsNotExist(err) {
			return errors.WrapInvalid(err, "planstore", "Delete", "plan not found")
		}
		return errors.WrapTransient(err, "planstore", "Delete", "remove plan file")
	}
	return nil
}

// List returns every stored plan id, sorted lexically.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.WrapTransient(err, "planstore", "List", "read plan directory")
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), fileExt))
	}
	sort.Strings(ids)
	return ids, nil
}

// writeAtomic marshals rec and writes it via a temp file + rename so a
// crash mid-write never leaves a truncated plan file behind, the same
// guarantee wal segment rollover relies on.
func (s *Store) writeAtomic(path string, rec Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return errors.WrapFatal(err, "planstore", "writeAtomic", "marshal plan record")
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.WrapFatal(err, "planstore", "writeAtomic", "write temp file")
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.WrapFatal(err, "planstore", "writeAtomic", "rename temp file")
	}
	return nil
}

// nowFunc is a var so tests can pin timestamps deterministically.
var nowFunc = time.Now
