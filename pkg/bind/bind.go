package bind

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrMissingHostPath is returned when a read-side mount points at a host
// path that does not exist. Writable mounts are created on demand instead.
var ErrMissingHostPath = errors.New("host path does not exist")

// Spec describes a single bind mount between the host filesystem and the
// container filesystem.
type Spec struct {
	Host      string
	Container string
	ReadOnly  bool
}

// String renders the spec in the runtime's bind syntax: "host:container[:ro]".
func (s Spec) String() string {
	if s.ReadOnly {
		return s.Host + ":" + s.Container + ":ro"
	}
	return s.Host + ":" + s.Container
}

// Resolver translates host paths into bind mounts under a fixed container
// mount root. Each logical role ("output", "tmp", "models", ...) gets its
// own directory under the root, so two mounts never collide inside the
// container.
type Resolver struct {
	root   string
	logger *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger attaches a logger for bind tracing.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

// NewResolver creates a Resolver that mounts everything under root
// (e.g. "/mnt/").
func NewResolver(root string, opts ...Option) *Resolver {
	r := &Resolver{root: root}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return r
}

// Root returns the container mount root.
func (r *Resolver) Root() string {
	return r.root
}

// writableRole reports whether the role's host directory is created on
// demand. Everything else must already exist on the host.
func writableRole(role string) bool {
	return strings.HasPrefix(role, "output") || role == "tmp" || strings.HasSuffix(role, "cache")
}

// Resolve maps a host path to a bind Spec plus the path the mounted item is
// addressable at inside the container.
//
// Directories are mounted directly at <root>/<role>. For files the parent
// directory is mounted instead, and the returned container path appends the
// file's base name so callers can reference the file itself.
//
// For writable roles (output*, tmp, *cache) the host directory is created
// if absent; the call is idempotent. For every other role a missing host
// path is a configuration error wrapping ErrMissingHostPath.
func (r *Resolver) Resolve(role, hostPath string, isDir, readOnly bool) (Spec, string, error) {
	abs, err := normalize(hostPath)
	if err != nil {
		return Spec{}, "", fmt.Errorf("normalizing %q for mount %s: %w", hostPath, role, err)
	}

	target := path.Join(r.root, role)

	source := abs
	containerPath := target
	if !isDir {
		// Bind the directory containing the file; address the file inside it.
		source = filepath.Dir(abs)
		containerPath = path.Join(target, filepath.Base(abs))
	}

	if writableRole(role) {
		if err := os.MkdirAll(source, 0o755); err != nil {
			return Spec{}, "", fmt.Errorf("creating host directory for mount %s: %w", role, err)
		}
	} else if _, err := os.Stat(source); err != nil {
		return Spec{}, "", fmt.Errorf("mount %s: %w: %s", role, ErrMissingHostPath, source)
	}

	// Expand symlinks so the runtime binds the real location. Best effort:
	// the path was just stat'd or created, but races are possible.
	if resolved, err := filepath.EvalSymlinks(source); err == nil {
		source = resolved
	}

	spec := Spec{Host: source, Container: target, ReadOnly: readOnly}
	r.logger.Debug("bind resolved",
		"role", role, "host", source, "container", containerPath, "read_only", readOnly)
	return spec, containerPath, nil
}

// normalize expands a leading "~" and makes the path absolute.
func normalize(p string) (string, error) {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		p = filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return filepath.Abs(p)
}

// Set is an ordered, duplicate-free collection of bind Specs. Order is
// preserved so generated commands are reproducible.
type Set struct {
	specs []Spec
}

// Add appends a spec unless an identical host:container pair is already
// present.
func (s *Set) Add(spec Spec) {
	for _, existing := range s.specs {
		if existing.Host == spec.Host && existing.Container == spec.Container {
			return
		}
	}
	s.specs = append(s.specs, spec)
}

// Specs returns the collected specs in insertion order.
func (s *Set) Specs() []Spec {
	return s.specs
}

// Len returns the number of collected specs.
func (s *Set) Len() int {
	return len(s.specs)
}

// Arg renders the whole set as a single comma-separated bind argument, the
// form the container runtime accepts for --bind.
func (s *Set) Arg() string {
	parts := make([]string, 0, len(s.specs))
	for _, spec := range s.specs {
		parts = append(parts, spec.String())
	}
	return strings.Join(parts, ",")
}
