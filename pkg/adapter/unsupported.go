// Copyright 2018 The Kura Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package adapter

import (
	"context"

	"github.com/kurafs/fusefs/pkg/vfs"
)

// Links, extended attributes and filesystem statistics aren't part of the
// provider contract. The entry points exist so the transport has something
// to dispatch to; they all report vfs.KindUnsupported.

func (a *Adapter) Symlink(ctx context.Context, caller *vfs.Caller, target, path string) (err error) {
	_, c := a.enter(ctx, caller, "symlink", path)
	defer c.exit(&err)
	return vfs.Unsupported("symlink", path)
}

func (a *Adapter) Link(ctx context.Context, caller *vfs.Caller, oldpath, path string) (err error) {
	_, c := a.enter(ctx, caller, "link", path)
	defer c.exit(&err)
	return vfs.Unsupported("link", path)
}

func (a *Adapter) Getxattr(ctx context.Context, caller *vfs.Caller, path, name string) (value []byte, err error) {
	_, c := a.enter(ctx, caller, "getxattr", path)
	defer c.exit(&err)
	return nil, vfs.Unsupported("getxattr", path)
}

func (a *Adapter) Setxattr(ctx context.Context, caller *vfs.Caller, path, name string, value []byte, flags uint32) (err error) {
	_, c := a.enter(ctx, caller, "setxattr", path)
	defer c.exit(&err)
	return vfs.Unsupported("setxattr", path)
}

func (a *Adapter) Listxattr(ctx context.Context, caller *vfs.Caller, path string) (names []string, err error) {
	_, c := a.enter(ctx, caller, "listxattr", path)
	defer c.exit(&err)
	return nil, vfs.Unsupported("listxattr", path)
}

func (a *Adapter) Removexattr(ctx context.Context, caller *vfs.Caller, path, name string) (err error) {
	_, c := a.enter(ctx, caller, "removexattr", path)
	defer c.exit(&err)
	return vfs.Unsupported("removexattr", path)
}

func (a *Adapter) Statfs(ctx context.Context, caller *vfs.Caller, path string) (err error) {
	_, c := a.enter(ctx, caller, "statfs", path)
	defer c.exit(&err)
	return vfs.Unsupported("statfs", path)
}
