package doc

import "github.com/kurafs/fusefs/pkg/cli"

var ArchitectureCmd = &cli.Command{
	UsageLine: "architecture",
	Short:     "fusefs system architecture overview",
	Long: `
fusefs turns a provider, a small object answering questions about a
path-addressed tree, into a mountable filesystem.

    kernel <-> go-fuse <-> bridge (pkg/fusefs) <-> adapter <-> provider

The bridge receives inode-based kernel requests, rebuilds the absolute path
of every node and forwards the call, along with the uid, gid and pid of the
calling process, to the adapter. Errors come back as errno values.

The adapter (pkg/adapter) maps path-based POSIX operations onto the
provider's predicates and whole-file calls:

    - getattr asks is-directory / is-file, the write/delete predicates and
      the size to synthesize a mode (0555/0777 dirs, 0444/0666 files, x bits
      for executables).
    - open buffers the file in a handle; reads and writes go to the buffer
      and flush writes it back whole. Providers that implement raw I/O are
      called per byte range instead.
    - mknod records a pending create so that the new, still-empty file is
      visible until its first flush.
    - rename and truncate fall back to read/write/delete when the provider
      has no native implementation.

Handles live in a generation-checked slot table; a stale handle id yields
ESTALE instead of touching a reused slot.

Providers:

    hello    read-only hello.txt
    memfs    in-memory tree ordered by a btree
    bolt     persistent tree in a bolt database, content in chunks
    remote   any provider served by 'storage-server' over gRPC

The remote provider carries the caller identity as call metadata, so the
serving provider makes its permission decisions against the process on the
mounting host.
`,
}
