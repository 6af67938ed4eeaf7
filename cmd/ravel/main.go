// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Ravel is a command-line tool for inspecting live processes and PE64/
// ELF64 binary images: memory regions, value scanning, string extraction
// and disassembly-driven cross-referencing. Type "help" at the REPL
// prompt for the command list.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/bibles-org/ravel/internal/platform"
	"github.com/bibles-org/ravel/internal/session"
	"github.com/bibles-org/ravel/internal/target"
)

func main() {
	var pid uint32

	root := &cobra.Command{
		Use:   "ravel [path]",
		Short: "inspect live processes and PE64/ELF64 images",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := session.New()

			if pid != 0 {
				lt := target.NewLive(platform.New())
				if err := lt.Attach(pid); err != nil {
					log.Printf("attach %d: %v", pid, err)
					os.Exit(1)
				}
				ctx.SetTarget(lt)
			} else if len(args) == 1 {
				t, err := target.NewFile(args[0])
				if err != nil {
					log.Printf("open %s: %v", args[0], err)
					os.Exit(1)
				}
				ctx.SetTarget(t)
			}

			if err := runREPL(ctx); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(-1)
			}
			return nil
		},
	}
	root.Flags().Uint32Var(&pid, "pid", 0, "attach to this pid on startup instead of opening a file")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
