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

package main

import (
	"os"

	"github.com/kurafs/fusefs/doc"
	"github.com/kurafs/fusefs/pkg/cli"

	fuseserver "github.com/kurafs/fusefs/cmd/fuse-server"
	storageserver "github.com/kurafs/fusefs/cmd/storage-server"
)

func main() {
	// We aggregate all the top-level commands (i.e. 'fusefs <command> ...')
	// as needed.
	var commands cli.Commands

	commands = append(commands, fuseserver.FuseServerCmd)
	commands = append(commands, storageserver.StorageServerCmd)

	// Documentation pseudo-commands.
	commands = append(commands, doc.ArchitectureCmd)
	commands = append(commands, doc.ProviderContractCmd)

	abstract := "fusefs mounts application-defined filesystem providers through FUSE."
	if err := cli.Process(abstract, commands); err != nil {
		os.Exit(1)
	}
}
