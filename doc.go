/*
Package foldlaunch hosts the shared pieces of the foldlaunch CLI, a
launcher that runs bioinformatics structure-prediction tools (Boltz, Chai
Lab, AlphaFold 3) inside Singularity/Apptainer container images.

Each run is a single-shot, stateless translation from command-line flags
to one container invocation:

  - pkg/bind resolves host paths into container bind mounts, creating
    writable mount directories on demand and failing fast on missing
    inputs.
  - pkg/toolcmd turns per-tool declarative flag tables into minimal
    command lines, suppressing flags left at the wrapped tool's default.
  - pkg/singularity loads the image, merges binds and environment into
    runtime options, and streams the container's combined output
    line-by-line.

The cmd/foldlaunch binary exposes one subcommand per wrapped tool; the
per-tool tables and bind roles live in internal/launcher.
*/
package foldlaunch
