// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/bibles-org/ravel/internal/session"
)

// runREPL drives the interactive command loop over ctx until the user
// quits or the input stream closes. A non-nil error means the line
// editor itself failed, either while initializing or while reading a
// line (interrupts and end of input are not errors).
func runREPL(ctx *session.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "ravel> ",
		HistoryFile:     "",
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return fmt.Errorf("readline init: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd, args := fields[0], fields[1:]

		if cmd == "quit" || cmd == "exit" {
			return nil
		}
		dispatch(rl.Stdout(), rl.Stderr(), ctx, cmd, args)
	}
}
