// Package singularity invokes commands inside Singularity/Apptainer
// container images, streaming their combined output back to the caller.
package singularity

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sort"

	"github.com/epigenomicscode/foldlaunch/pkg/bind"
)

// ErrImageNotFound is returned when the configured image path does not
// point at an existing file.
var ErrImageNotFound = errors.New("container image not found")

// Image is a loaded container image descriptor.
type Image struct {
	Path string
}

// Load verifies the image exists on disk and returns its descriptor. The
// error names the offending path so users can fix their configuration.
func Load(path string) (Image, error) {
	if path == "" {
		return Image{}, fmt.Errorf("%w: no image path configured", ErrImageNotFound)
	}
	if _, err := os.Stat(path); err != nil {
		return Image{}, fmt.Errorf("%w: %s", ErrImageNotFound, path)
	}
	return Image{Path: path}, nil
}

// Options carries the runtime options for one container execution.
type Options struct {
	Binds bind.Set
	Env   map[string]string
	// NV enables the NVIDIA runtime (--nv) so GPUs are visible inside the
	// container.
	NV bool
}

// Client executes commands inside container images via the singularity
// binary.
type Client struct {
	executable string
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithExecutable overrides the runtime binary ("singularity" by default).
// Also the seam tests use to substitute a fake runtime.
func WithExecutable(path string) ClientOption {
	return func(c *Client) {
		c.executable = path
	}
}

// WithLogger attaches a logger for invocation tracing.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a Client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{executable: "singularity"}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c
}

// Args builds the full host-side argument list for one execution, without
// running anything. Env vars are emitted in sorted order so the argv is
// reproducible.
func (c *Client) Args(img Image, command []string, opts Options) []string {
	args := []string{"exec"}
	if opts.NV {
		args = append(args, "--nv")
	}
	if opts.Binds.Len() > 0 {
		args = append(args, "--bind", opts.Binds.Arg())
	}
	keys := make([]string, 0, len(opts.Env))
	for k := range opts.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--env", k+"="+opts.Env[k])
	}
	args = append(args, img.Path)
	args = append(args, command...)
	return args
}

// Exec runs command inside the image and streams the combined
// stdout/stderr to out line-by-line as it arrives. It blocks until the
// container process terminates; cancelling ctx kills the process. A
// non-zero exit or launch failure is returned as an error, with no retry.
func (c *Client) Exec(ctx context.Context, img Image, command []string, opts Options, out io.Writer) error {
	args := c.Args(img, command, opts)
	c.logger.Debug("invoking container runtime", "executable", c.executable, "args", args)

	cmd := exec.CommandContext(ctx, c.executable, args...)
	pipe, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("container runtime pipe: %w", err)
	}
	// Merge stderr into the same pipe; the wrapped tools interleave
	// progress output across both streams.
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting container runtime %q: %w", c.executable, err)
	}

	scanner := bufio.NewScanner(pipe)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		fmt.Fprintln(out, scanner.Text())
	}
	scanErr := scanner.Err()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("container execution failed: %w", err)
	}
	if scanErr != nil {
		return fmt.Errorf("reading container output: %w", scanErr)
	}
	return nil
}
