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

// truncateByRewrite truncates path by reading it whole and writing back the
// prefix. Files already no longer than size are left alone: there is no way to
// extend a file through this path.
func truncateByRewrite(ctx context.Context, p vfs.Provider, path string, size int64) error {
	content, err := p.ReadFile(ctx, path)
	if err != nil {
		return vfs.Translate("truncate", path, err)
	}

	switch {
	case size <= 0:
		content = []byte{}
	case size < int64(len(content)):
		content = content[:size]
	default:
		return nil
	}
	return vfs.Translate("truncate", path, p.WriteTo(ctx, path, content))
}

// renameByCopy moves a plain file by writing its content to the destination
// and deleting the source. A failed delete leaves both copies in place.
func renameByCopy(ctx context.Context, p vfs.Provider, from, to string) error {
	content, err := p.ReadFile(ctx, from)
	if err != nil {
		return vfs.Translate("rename", from, err)
	}
	if err := p.WriteTo(ctx, to, content); err != nil {
		return vfs.Translate("rename", to, err)
	}
	return vfs.Translate("rename", from, p.Delete(ctx, from))
}
