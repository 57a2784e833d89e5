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

package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/ioutil"
	"os"
)

// Process is the entry point for CLI commands. User provided arguments are captured and processed
// through the defined commands, and the appropriate one (if any), is executed. When <program> is
// invoked without any arguments, the full usage is printed out instead.
//
// CLI errors (unknown commands, bad flags) are printed to os.Stderr and followed by os.Exit(2).
// Command execution errors are propagated to the caller.
//
// The abstract is used in generating structured help messages. Example:
//
//      $ <program> -h
//      <abstract>
//
//      Usage:
//          ...
//
func Process(abstract string, commands Commands) error {
	code, err := Execute(os.Args[0], os.Args[1:], abstract, commands, os.Stdout, os.Stderr)
	if code != 0 {
		os.Exit(code)
	}
	return err
}

// Execute runs args against commands, writing help to stdout and usage errors to stderr. The exit
// code is 2 for usage errors and 0 otherwise; errors returned by the command itself come back as
// err with a zero code.
func Execute(program string, args []string, abstract string, commands Commands, stdout, stderr io.Writer) (code int, err error) {
	// FlagSet outputs are discarded for composability with the rest of this package.
	for _, cmd := range commands {
		cmd.FlagSet.SetOutput(ioutil.Discard)
	}

	if len(args) == 0 {
		printFullUsage(stdout, program, abstract, commands)
		return 0, nil
	}

	command := args[0]
	switch {
	case (command == "help" || command == "-h") && len(args) == 1:
		printFullUsage(stdout, program, abstract, commands)
		return 0, nil

	case command == "help" && len(args) > 2:
		fmt.Fprintf(stderr, "Usage: %s help [command]\n\n", program)
		fmt.Fprintln(stderr, "Too many arguments given.")
		return 2, nil

	case command == "help":
		topic := args[1]
		if err := printCommandUsage(stdout, program, topic, commands); err != nil {
			fmt.Fprintf(stderr, "Unknown help topic '%s'\n\n", topic)
			fmt.Fprintf(stderr, "Run '%s help' for available topics.\n", program)
			return 2, nil
		}
		return 0, nil
	}

	cmd := commands.Lookup(command)
	if cmd == nil || !cmd.Runnable() {
		fmt.Fprintf(stderr, "Unknown command '%s'\n\n", command)
		fmt.Fprintf(stderr, "Run '%s help' for available commands.\n", program)
		return 2, nil
	}

	// Parse errors are handled here, everything else is propagated up above.
	err = cmd.Run(cmd, args[1:])
	if !IsCmdParseError(err) {
		return 0, err
	}

	// '<program> command -h' surfaces as flag.ErrHelp, which is a valid state despite being a
	// parse error. We check after cmd.Run as the flags are defined there.
	if errors.Is(err, flag.ErrHelp) {
		printCommandHelp(stdout, program, cmd)
		return 0, nil
	}
	printCommandParsingError(stderr, program, cmd, err)
	return 2, nil
}
