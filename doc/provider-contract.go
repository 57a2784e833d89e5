package doc

import "github.com/kurafs/fusefs/pkg/cli"

var ProviderContractCmd = &cli.Command{
	UsageLine: "provider-contract",
	Short:     "what a provider must and may implement",
	Long: `
A provider (pkg/vfs.Provider) answers for absolute, slash-separated paths
rooted at "/". Embedding vfs.Base supplies conservative defaults: nothing
exists, nothing is writable, and mutations are accepted as no-ops.

Required:

    Contents(dir)            names in dir, without "." or ".."
    IsDirectory, IsFile      existence predicates
    Size, Times              attributes of a file
    ReadFile, WriteTo        whole-file content
    CanWrite, CanMkdir,      permission predicates; CanWrite on a missing
    CanDelete, CanRmdir      path decides whether it may be created
    Executable               sets the x bits on a file
    Mkdir, Rmdir, Delete     namespace mutations

Optional, detected at mount time:

    RawOpen/Read/Write/Close byte-range I/O without adapter buffering
    RawTruncate              truncate an open file in place
    Renamer                  native rename; otherwise copy and delete
    Toucher                  set modification times

Predicates should be cheap; the adapter asks several of them per getattr.
Errors may be plain (io/fs.ErrNotExist, fs.ErrPermission, syscall.Errno)
or *vfs.Error; both map onto errno values. The caller's identity, when the
call came from the kernel, is available through vfs.CallerFrom(ctx).
`,
}
