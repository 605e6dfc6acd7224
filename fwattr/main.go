// Copyright 2026 Google LLC

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     https://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// fwattr is a cli tool for inspecting and changing firmware attributes exposed by
// the Linux firmware-attributes class.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/GoogleCloudPlatform/firmware-attributes/firmware/cfg"
	"github.com/GoogleCloudPlatform/guest-logging-go/logger"
)

const programName = "fwattr"

// Action is an action to be invoked by the user.
type Action struct {
	usage   string
	helpmsg string
	fn      ActionFunc
}

// ActionSet is a map of actions to the string needed to run them with fwattr.
type ActionSet map[string]Action

// String returns a usage string for the Actions in the ActionSet.
func (as ActionSet) String() string {
	var s strings.Builder
	for _, n := range slices.Sorted(maps.Keys(as)) {
		a := as[n]
		s.WriteString(fmt.Sprintf("  %s %s\n\t%s\n", n, a.usage, a.helpmsg))
	}
	return s.String()
}

// Find the named action or return a default error action.
func (as ActionSet) Find(name string) ActionFunc {
	if action, ok := as[name]; ok {
		return action.fn
	}
	return func(context.Context, []string) (string, int) {
		return fmt.Sprintf("Action %q not found.\nactions:\n%s", name, as.String()), exitUsage
	}
}

// ActionFunc is a function to execute the action with the remaining command line
// arguments. It returns an optional message and the exit code for fwattr.
type ActionFunc func(context.Context, []string) (string, int)

const (
	exitOK = iota
	exitFailure
	exitUsage
)

var (
	defaultActions = ActionSet{
		"list": {
			helpmsg: "list the attributes with their type and current value",
			fn:      list,
		},
		"show": {
			usage:   "NAME...",
			helpmsg: "show the constraints and values of attributes",
			fn:      show,
		},
		"validate": {
			usage:   "NAME=VALUE...",
			helpmsg: "check values against the attribute constraints without writing them",
			fn:      validate,
		},
		"set": {
			usage:   "NAME=VALUE...",
			helpmsg: "validate, write and verify attribute values, in order",
			fn:      set,
		},
		"reset": {
			usage:   "NAME...",
			helpmsg: "set attributes back to their vendor default value",
			fn:      reset,
		},
		"dump": {
			helpmsg: "print all attributes as yaml",
			fn:      dump,
		},
		"apply": {
			usage:   "FILE",
			helpmsg: "set the current values of a dump file that differ from the firmware",
			fn:      apply,
		},
		"auth": {
			helpmsg: "list the authentication entries",
			fn:      listAuth,
		},
		"reboot-status": {
			helpmsg: "report whether a reboot is required to apply written changes",
			fn:      rebootStatus,
		},
	}

	rootDir  = flag.String("root", "", "firmware-attributes device or attributes directory, autodetected when empty")
	debug    = flag.Bool("debug", false, "enable debug logging")
	noPrompt = flag.Bool("no_prompt", false, "never prompt for the BIOS password, fail writes to locked attributes")
	help     = flag.Bool("help", false, "print usage information")
)

func logFormat(e logger.LogEntry) string {
	switch e.Severity {
	case logger.Error, logger.Critical, logger.Debug:
		// ERROR file.go:82 This is a log message.
		return fmt.Sprintf("%s %s:%d %s", strings.ToUpper(e.Severity.String()), e.Source.File, e.Source.Line, e.Message)
	default:
		// WARNING This is a log message.
		return fmt.Sprintf("%s %s", strings.ToUpper(e.Severity.String()), e.Message)
	}
}

func main() {
	ctx := context.Background()
	flag.Usage = func() {
		fmt.Printf("%s usage:\n", programName)
		fmt.Printf("  %s [flags] ACTION [ARGS...]\n", programName)
		fmt.Printf("actions:\n")
		fmt.Print(defaultActions.String())
		fmt.Printf("flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *help || flag.NArg() == 0 {
		flag.Usage()
		os.Exit(exitOK)
	}

	if err := cfg.Load(nil); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitFailure)
	}

	opts := logger.LogOpts{
		LoggerName:     programName,
		FormatFunction: logFormat,
		Writers:        []io.Writer{os.Stderr},
		Debug:          *debug || cfg.Get().Logging.Debug,

		// No need for syslog nor cloud logging of an interactive tool.
		DisableLocalLogging: true,
		DisableCloudLogging: true,
	}
	if err := logger.Init(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(exitFailure)
	}

	actionFn := defaultActions.Find(flag.Arg(0))
	msg, i := actionFn(ctx, flag.Args()[1:])
	if msg != "" {
		fmt.Print(msg)
		if !strings.HasSuffix(msg, "\n") {
			fmt.Print("\n")
		}
	}
	logger.Close()
	os.Exit(i)
}
