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

// Package cli allows the construction of structured command-line interfaces with sub-commands and
// help topics. This is very similar to the interface in git where the top-level program name (git)
// is preceded by a qualifier that determines what sub-command to execute
// (git {reflog,commit,cherry-pick}).
//
// Package cli explicitly avoid init time global hooks and has a minimal binary size footprint.
//
// Example (from cmd/fusefs):
//
//      // We aggregate all the top-level commands, accessible via 'fusefs <command> ...', as needed.
//      var commands cli.Commands
//      commands = append(commands, fuseserver.FuseServerCmd)
//      commands = append(commands, storageserver.StorageServerCmd)
//
//      // Documentation pseudo-commands for the adapter architecture and the provider contract.
//      commands = append(commands, doc.ArchitectureCmd)
//      commands = append(commands, doc.ProviderContractCmd)
//
//      abstract := "fusefs mounts application-defined filesystems through FUSE."
//      if err := cli.Process(abstract, commands); err != nil {
//      	os.Exit(1)
//      }
//
// This generates the following top-level behaviour:
//
//      $ fusefs {,-h,help}
//      fusefs mounts application-defined filesystems through FUSE.
//
//      Usage:
//
//          fusefs command [arguments]
//
//      The commands are:
//
//              fuse-server            mount a filesystem provider at a directory
//              storage-server         serve a filesystem provider over gRPC
//
//      Use 'fusefs help [command]' for more information about a command.
//
//      Additional help topics:
//
//              architecture           fusefs architecture overview
//              provider-contract      what providers must and may implement
//
//      Use "fusefs help [topic]" for more information about that topic.
//
// Using help for a listed command displays its usage line and long description:
//
//      $ fusefs help storage-server
//      Usage: fusefs storage-server [-config path] [-port port] ...
//
// Individual commands also have their own '-h' switches listing their flags. Commands
// sharing the logging setup register LogFlags on their FlagSet:
//
//      var logFlags cli.LogFlags
//      logFlags.Register(&cmd.FlagSet)
//      if err := cmd.FlagSet.Parse(args); err != nil {
//      	return cli.CmdParseError(err)
//      }
//      logger := logFlags.Logger()
//
package cli
