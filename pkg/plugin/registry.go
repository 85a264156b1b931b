package plugin

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Masterminds/semver/v3"

	"infogenai/pkg/logger"
)

// DefaultExtension is the file suffix of loadable agents.
const DefaultExtension = ".so"

// ErrSealed is returned when registering into a registry that finished loading.
var ErrSealed = errors.New("agent registry is sealed")

// LoadError describes why a single agent could not be added to the registry.
type LoadError struct {
	Name  string
	Path  string
	Stage string
	Err   error
}

func (e *LoadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s agent %s (%s): %v", e.Stage, e.Name, e.Path, e.Err)
	}
	return fmt.Sprintf("%s agent %s: %v", e.Stage, e.Name, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Registry keeps the agents discovered at startup in load order.
type Registry struct {
	mu        sync.RWMutex
	order     []string
	records   map[string]*Record
	sealed    bool
	failures  []*LoadError
	stale     atomic.Bool
	loader    Loader
	manifest  Manifest
	extension string
	isolate   bool
	log       *slog.Logger
}

// Option modifies the behaviour of a registry.
type Option func(*Registry)

// WithLoader overrides the default shared object loader.
func WithLoader(loader Loader) Option {
	return func(r *Registry) {
		if loader != nil {
			r.loader = loader
		}
	}
}

// WithManifest supplies per-agent settings.
func WithManifest(m Manifest) Option {
	return func(r *Registry) {
		r.manifest = m
	}
}

// WithExtension changes the file suffix considered during directory scans.
func WithExtension(ext string) Option {
	return func(r *Registry) {
		if ext == "" {
			return
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		r.extension = ext
	}
}

// WithFailureIsolation makes LoadDir skip agents that fail to load instead of
// aborting. Skipped agents are reported by Failures.
func WithFailureIsolation(isolate bool) Option {
	return func(r *Registry) {
		r.isolate = isolate
	}
}

// WithLogger sets the logger used for load diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// NewRegistry constructs an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		records:   make(map[string]*Record),
		loader:    GoPluginLoader{},
		extension: DefaultExtension,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.Named("registry")
	}
	return r
}

// LoadDir scans dir and registers every agent file it finds. Files starting
// with "_" or "." are ignored, as are files that export no agent.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read agents directory: %w", err)
	}
	for _, entry := range entries {
		name, ok := r.agentName(entry)
		if !ok {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if !r.manifest.Lookup(name).IsEnabled() {
			r.log.Info("agent disabled by manifest", slog.String("agent", name))
			continue
		}
		if err := r.loadFile(name, path); err != nil {
			var loadErr *LoadError
			if r.isolate && errors.As(err, &loadErr) {
				r.log.Warn("skipping agent", slog.String("agent", name), slog.Any("error", err))
				r.mu.Lock()
				r.failures = append(r.failures, loadErr)
				r.mu.Unlock()
				continue
			}
			return err
		}
	}
	return nil
}

func (r *Registry) agentName(entry os.DirEntry) (string, bool) {
	if entry.IsDir() {
		return "", false
	}
	file := entry.Name()
	if strings.HasPrefix(file, "_") || strings.HasPrefix(file, ".") {
		return "", false
	}
	if !strings.HasSuffix(file, r.extension) {
		return "", false
	}
	name := strings.TrimSuffix(file, r.extension)
	return name, name != ""
}

func (r *Registry) loadFile(name, path string) error {
	factory, err := r.loader.Load(path)
	if err != nil {
		if errors.Is(err, ErrNoAgent) {
			r.log.Debug("no agent exported", slog.String("agent", name), slog.String("path", path), slog.Any("reason", err))
			return nil
		}
		return &LoadError{Name: name, Path: path, Stage: "load", Err: err}
	}
	instance, err := construct(factory)
	if err != nil {
		return &LoadError{Name: name, Path: path, Stage: "construct", Err: err}
	}
	if instance == nil {
		r.log.Debug("constructor returned nil", slog.String("agent", name), slog.String("path", path))
		return nil
	}
	return r.add(name, path, instance)
}

// Register adds an instance directly. Manifest settings apply the same way as
// for agents found on disk.
func (r *Registry) Register(name string, instance any) error {
	if name == "" {
		return errors.New("agent name cannot be empty")
	}
	if instance == nil {
		return errors.New("agent implementation cannot be nil")
	}
	r.mu.RLock()
	sealed := r.sealed
	r.mu.RUnlock()
	if sealed {
		return ErrSealed
	}
	if !r.manifest.Lookup(name).IsEnabled() {
		r.log.Info("agent disabled by manifest", slog.String("agent", name))
		return nil
	}
	return r.add(name, SourceManual, instance)
}

func (r *Registry) add(name, source string, instance any) error {
	cfg := r.manifest.Lookup(name)
	path := ""
	if source != SourceManual {
		path = source
	}

	if c, ok := instance.(Configurable); ok {
		if err := c.Configure(cloneConfig(cfg.Config)); err != nil {
			return &LoadError{Name: name, Path: path, Stage: "configure", Err: err}
		}
	}

	version := ""
	if v, ok := instance.(Versioned); ok {
		version = v.Version()
	}
	if err := checkVersion(cfg.Version, version); err != nil {
		return &LoadError{Name: name, Path: path, Stage: "version", Err: err}
	}

	description := DefaultDescription
	if d, ok := instance.(Describer); ok {
		description = d.Description()
	} else if cfg.Description != "" {
		description = cfg.Description
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return ErrSealed
	}
	if _, exists := r.records[name]; exists {
		return &LoadError{Name: name, Path: path, Stage: "register", Err: errors.New("agent already registered")}
	}
	r.records[name] = &Record{
		Name:        name,
		Description: description,
		Version:     version,
		Source:      source,
		Instance:    instance,
	}
	r.order = append(r.order, name)
	r.log.Info("agent registered",
		slog.String("agent", name),
		slog.String("source", source),
		slog.Bool("processor", r.records[name].CanProcess()),
	)
	return nil
}

// Seal freezes the registry; further registrations fail with ErrSealed.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// List returns name and description for every agent in registry order.
func (r *Registry) List() []Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Summary, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.records[name].Summary())
	}
	return out
}

// Records returns a snapshot of all records in registry order.
func (r *Registry) Records() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Record, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, *r.records[name])
	}
	return out
}

// Get returns the agent instance registered under name. The boolean is false
// when no such agent exists.
func (r *Registry) Get(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[name]
	if !ok {
		return nil, false
	}
	return rec.Instance, true
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Failures lists the agents skipped while loading with failure isolation on.
func (r *Registry) Failures() []*LoadError {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*LoadError(nil), r.failures...)
}

// Stale reports whether the agents directory changed after loading.
func (r *Registry) Stale() bool {
	return r.stale.Load()
}

func (r *Registry) markStale() {
	r.stale.Store(true)
}

func construct(factory Factory) (instance any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("constructor panicked: %v", rec)
		}
	}()
	return factory()
}

func checkVersion(constraint, version string) error {
	if strings.TrimSpace(constraint) == "" {
		return nil
	}
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return fmt.Errorf("invalid version constraint %q: %w", constraint, err)
	}
	if version == "" {
		return fmt.Errorf("constraint %q set but agent reports no version", constraint)
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("invalid agent version %q: %w", version, err)
	}
	if !c.Check(v) {
		return fmt.Errorf("version %s does not satisfy %s", v, constraint)
	}
	return nil
}
