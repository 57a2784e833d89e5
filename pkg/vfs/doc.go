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

// Package vfs defines the contract between the FUSE adapter and the
// application-defined filesystems it exposes.
//
// A filesystem implements Provider, the small set of queries and mutations the
// adapter needs: listing, type checks, permission predicates, whole-file
// content access and timestamps. Everything else is optional. Providers that
// can serve byte ranges directly implement RawOpener (and RawTruncater);
// providers with native renames or timestamp updates implement Renamer and
// Toucher. The adapter detects these capabilities once and falls back to
// emulation when they are absent.
//
// Embedding Base gives a provider conservative defaults for the whole required
// set, so the smallest useful filesystem is a handful of methods:
//
//      type helloDir struct {
//      	vfs.Base
//      }
//
//      func (helloDir) Contents(ctx context.Context, dir string) ([]string, error) {
//      	return []string{"hello.txt"}, nil
//      }
//
//      func (helloDir) IsFile(ctx context.Context, path string) bool {
//      	return path == "/hello.txt"
//      }
//
//      ...
//
// Every provider method receives the context of the filesystem call that
// triggered it. CallerFrom retrieves the identity of the process that issued
// the call, so permission predicates can answer "who is asking".
package vfs
