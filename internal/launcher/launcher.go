// Package launcher orchestrates single-shot container runs of the wrapped
// prediction tools: resolve bind mounts, assemble the tool command, invoke
// the container runtime, stream its output. One generic pipeline, three
// per-tool builders.
package launcher

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/epigenomicscode/foldlaunch/internal/config"
	"github.com/epigenomicscode/foldlaunch/internal/tui"
	"github.com/epigenomicscode/foldlaunch/pkg/singularity"
	"github.com/epigenomicscode/foldlaunch/pkg/toolcmd"
)

// colabfoldURL is the public MSA server both boltz and chai default to.
const colabfoldURL = "https://api.colabfold.com"

// Launch is a fully built, ready-to-execute container run. Built once by a
// per-tool builder, consumed exactly once by Run.
type Launch struct {
	Tool       string
	Image      singularity.Image
	Invocation *toolcmd.Invocation
	// GPU enables the NVIDIA runtime for this run.
	GPU bool
}

// Launcher drives tool runs. Construct with New and the functional options.
type Launcher struct {
	cfg    *config.Config
	client *singularity.Client
	logger *slog.Logger
	out    io.Writer
	errOut io.Writer
	banner bool
}

// Option configures a Launcher.
type Option func(*Launcher)

// WithClient injects the container runtime client.
func WithClient(c *singularity.Client) Option {
	return func(l *Launcher) {
		l.client = c
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(l *Launcher) {
		l.logger = log
	}
}

// WithOutput redirects the streamed container output (stdout by default).
func WithOutput(w io.Writer) Option {
	return func(l *Launcher) {
		l.out = w
	}
}

// WithBanner toggles the run summary banner printed before invocation.
func WithBanner(enabled bool) Option {
	return func(l *Launcher) {
		l.banner = enabled
	}
}

// New creates a Launcher around the given configuration.
func New(cfg *config.Config, opts ...Option) *Launcher {
	l := &Launcher{
		cfg:    cfg,
		out:    os.Stdout,
		errOut: os.Stderr,
		banner: true,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if l.client == nil {
		l.client = singularity.NewClient(singularity.WithLogger(l.logger))
	}
	return l
}

// Config exposes the resolved configuration to the CLI layer.
func (l *Launcher) Config() *config.Config {
	return l.cfg
}

// Run executes a built Launch, streaming the container's combined output
// line-by-line to the configured writer. No retry on failure.
func (l *Launcher) Run(ctx context.Context, launch *Launch) error {
	command := launch.Invocation.Argv()

	if l.banner {
		tui.PrintRunSummary(l.errOut, launch.Tool, launch.Image.Path, launch.Invocation.Binds, command)
	}
	l.logger.Info("running container command",
		"tool", launch.Tool,
		"image", launch.Image.Path,
		"command", strings.Join(command, " "))

	opts := singularity.Options{
		Binds: launch.Invocation.Binds,
		Env:   launch.Invocation.Env,
		NV:    launch.GPU,
	}
	if err := l.client.Exec(ctx, launch.Image, command, opts, l.out); err != nil {
		l.logger.Error("container execution failed", "tool", launch.Tool, "error", err)
		return err
	}

	l.logger.Info("prediction finished", "tool", launch.Tool)
	return nil
}
