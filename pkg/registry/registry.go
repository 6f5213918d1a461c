package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sitedock/sitedock/pkg/util"
)

// SchemaRecoveryError reports a registry file that could not be parsed
// even with lenient reconstruction. The registry starts empty; the
// caller should surface the warning but keep going.
type SchemaRecoveryError struct {
	Path string
	Err  error
}

func (e *SchemaRecoveryError) Error() string {
	return fmt.Sprintf("registry file %s is unreadable, starting with an empty registry: %v", e.Path, e.Err)
}

func (e *SchemaRecoveryError) Unwrap() error { return e.Err }

// LoadResult describes how the registry file was decoded.
type LoadResult struct {
	// Recovered is true when strict decoding failed but the registry
	// was rebuilt leniently (and written back).
	Recovered bool
	// Warning is set when even lenient parsing failed. The registry
	// is empty in that case. Never fatal.
	Warning error
}

// Registry owns the persisted collection of sites. It is the single
// source of truth; sites are mutated only through its entry points.
type Registry struct {
	filePath string
	Sites    []Site
}

// New creates a registry backed by the given file path. An empty path
// selects the default per-user location.
func New(filePath string) *Registry {
	if filePath == "" {
		filePath = filepath.Join(util.BaseDir(), "sites.json")
	}
	return &Registry{filePath: filePath}
}

// Path returns the registry file location.
func (r *Registry) Path() string { return r.filePath }

// Load reads the registry file. A missing file yields an empty
// registry without error. A file that fails strict decoding is
// rebuilt leniently and written back immediately (self-healing).
func (r *Registry) Load() (LoadResult, error) {
	data, err := os.ReadFile(r.filePath)
	if os.IsNotExist(err) {
		r.Sites = []Site{}
		return LoadResult{}, nil
	}
	if err != nil {
		return LoadResult{}, fmt.Errorf("failed to read registry: %w", err)
	}

	var sites []Site
	if err := json.Unmarshal(data, &sites); err == nil {
		for i := range sites {
			sites[i].Normalize()
		}
		r.Sites = sites
		r.sort()
		return LoadResult{}, nil
	}

	// Strict decoding failed. Fall back to lenient reconstruction
	// from generic records.
	var raw []map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		r.Sites = []Site{}
		return LoadResult{Warning: &SchemaRecoveryError{Path: r.filePath, Err: err}}, nil
	}

	recovered := make([]Site, 0, len(raw))
	for _, record := range raw {
		recovered = append(recovered, recoverSite(record))
	}
	r.Sites = recovered
	r.sort()

	// Persist the recovered shape right away so the next load is strict.
	if err := r.Save(); err != nil {
		fmt.Printf("Warning: failed to write recovered registry: %v\n", err)
	}
	return LoadResult{Recovered: true}, nil
}

// Save persists the registry atomically (write to temp, then rename).
func (r *Registry) Save() error {
	if r.Sites == nil {
		r.Sites = []Site{}
	}

	data, err := json.MarshalIndent(r.Sites, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(r.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".sites-*.json")
	if err != nil {
		return fmt.Errorf("failed to persist registry: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to persist registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to persist registry: %w", err)
	}
	if err := os.Rename(tmpName, r.filePath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to persist registry: %w", err)
	}
	return nil
}

// Upsert normalizes the site and inserts or replaces it by ID.
func (r *Registry) Upsert(site Site) error {
	site.Normalize()

	replaced := false
	for i, existing := range r.Sites {
		if existing.ID == site.ID {
			r.Sites[i] = site
			replaced = true
			break
		}
	}
	if !replaced {
		r.Sites = append(r.Sites, site)
	}

	r.sort()
	return r.Save()
}

// Remove deletes a site by ID. Removing an unknown ID is a no-op.
func (r *Registry) Remove(id string) error {
	kept := r.Sites[:0]
	for _, s := range r.Sites {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	r.Sites = kept
	return r.Save()
}

// SetOnlyServed is the sole enforcement point of the single-served
// invariant: marking one site served clears the flag everywhere else.
func (r *Registry) SetOnlyServed(id string, served bool) error {
	for i := range r.Sites {
		if r.Sites[i].ID == id {
			r.Sites[i].Served = served
		} else if served {
			r.Sites[i].Served = false
		}
	}
	return r.Save()
}

// ServedSites returns the (0 or 1 element) served subset.
func (r *Registry) ServedSites() []Site {
	var served []Site
	for _, s := range r.Sites {
		if s.Served {
			served = append(served, s)
		}
	}
	return served
}

// ByID looks a site up by its identity.
func (r *Registry) ByID(id string) (Site, bool) {
	for _, s := range r.Sites {
		if s.ID == id {
			return s, true
		}
	}
	return Site{}, false
}

// ByName looks a site up by name (case-insensitive).
func (r *Registry) ByName(name string) (Site, bool) {
	for _, s := range r.Sites {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return Site{}, false
}

// sort orders sites by case-insensitive name, with ID as tie-breaker
// so the order is stable for identical names.
func (r *Registry) sort() {
	sort.SliceStable(r.Sites, func(i, j int) bool {
		a := strings.ToLower(r.Sites[i].Name)
		b := strings.ToLower(r.Sites[j].Name)
		if a != b {
			return a < b
		}
		return r.Sites[i].ID < r.Sites[j].ID
	})
}
