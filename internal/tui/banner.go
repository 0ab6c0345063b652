package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"

	"github.com/epigenomicscode/foldlaunch/pkg/bind"
)

// PrintRunSummary writes a short colored header describing what is about
// to run: the tool, the image, and the bind mounts. Colors degrade
// gracefully on non-TTY output via termenv's profile detection.
func PrintRunSummary(w io.Writer, tool, image string, binds bind.Set, command []string) {
	p := termenv.ColorProfile()

	title := termenv.String("foldlaunch").Foreground(p.Color("#818cf8")).Bold()
	label := func(s string) termenv.Style {
		return termenv.String(s).Foreground(p.Color("#a78bfa"))
	}

	fmt.Fprintf(w, "%s %s\n", title, tool)
	fmt.Fprintf(w, "  %s %s\n", label("image:"), image)
	for _, spec := range binds.Specs() {
		fmt.Fprintf(w, "  %s %s\n", label("bind: "), spec.String())
	}
	fmt.Fprintf(w, "  %s %v\n", label("cmd:  "), command)
}
