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

// Package fusefs connects an adapter.Adapter to the kernel through
// github.com/hanwen/go-fuse/v2. Inodes are thin: each one resolves its path
// in the inode tree and forwards the call, along with the identity of the
// calling process, to the adapter. Adapter errors are reported to the kernel
// as the errno of their kind.
//
//      a := adapter.New(hello.New(), adapter.WithLogger(logger))
//      server, err := fusefs.Mount(fusefs.Options{Mountpoint: "/mnt/hello", Adapter: a})
//      if err != nil {
//      	return err
//      }
//      server.Wait()
package fusefs
