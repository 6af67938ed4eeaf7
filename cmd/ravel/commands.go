// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bibles-org/ravel/internal/disasm"
	"github.com/bibles-org/ravel/internal/errkind"
	"github.com/bibles-org/ravel/internal/platform"
	"github.com/bibles-org/ravel/internal/scanner"
	"github.com/bibles-org/ravel/internal/session"
	"github.com/bibles-org/ravel/internal/strtab"
	"github.com/bibles-org/ravel/internal/target"
)

// dispatch runs one command line. Errors are written to errw as a
// one-line diagnostic; dispatch never returns an error of its own, per
// the REPL's "invalid commands ... return to the prompt" contract.
func dispatch(outw, errw io.Writer, ctx *session.Context, cmd string, args []string) {
	switch cmd {
	case "help":
		cmdHelp(outw)
	case "open":
		cmdOpen(outw, errw, ctx, args)
	case "info":
		cmdInfo(outw, errw, ctx)
	case "ps":
		cmdPS(outw, errw)
	case "attach":
		cmdAttach(outw, errw, ctx, args)
	case "detach":
		cmdDetach(outw, errw, ctx)
	case "regions":
		cmdRegions(outw, errw, ctx)
	case "read":
		cmdRead(outw, errw, ctx, args)
	case "disasm":
		cmdDisasm(outw, errw, ctx, args)
	case "scan":
		cmdScan(outw, errw, ctx, args)
	case "strings":
		cmdStrings(outw, errw, ctx, args)
	case "xref":
		cmdXref(outw, errw, ctx, args)
	default:
		fmt.Fprintf(errw, "unknown command %q\n", cmd)
	}
}

func cmdHelp(w io.Writer) {
	fmt.Fprint(w, `commands:
  help                          this message
  quit | exit                   leave the REPL
  open <path>                   open a PE64/ELF64 file as the active target
  info                          show the active target's name, liveness, entry point
  ps                            list processes visible to the platform controller
  attach <pid>                  attach to a live process as the active target
  detach                        detach the active live target
  regions                       list the active target's memory regions
  read <addr> [byte_count]      hexdump byte_count bytes at addr (default 256)
  disasm <addr> [instr_count]   disassemble instr_count instructions at addr (default 20)
  scan new <type> <cmp> <lit> [fast]   start a first scan
  scan refine <type> <cmp> <lit>       start a refine scan
  scan cancel                          cancel the in-flight scan
  scan write <addr> <type> <lit>       write a literal to addr
  strings scan [min_length]            start a strings scan
  strings cancel                       cancel the in-flight strings scan
  strings find <addr>                  look up a string at an exact address
  xref scan                            start a cross-reference scan
  xref cancel                          cancel the in-flight xref scan
  xref list                            list discovered cross-reference items
`)
}

func reportErr(errw io.Writer, err error) {
	if k, ok := errkind.KindOf(err); ok {
		fmt.Fprintf(errw, "error: %s (code=%d)\n", k, int(k))
		return
	}
	fmt.Fprintf(errw, "error: %v\n", err)
}

func cmdOpen(outw, errw io.Writer, ctx *session.Context, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(errw, "usage: open <path>")
		return
	}
	t, err := target.NewFile(args[0])
	if err != nil {
		reportErr(errw, err)
		return
	}
	ctx.SetTarget(t)
	fmt.Fprintf(outw, "opened %s\n", t.Name())
}

func cmdInfo(outw, errw io.Writer, ctx *session.Context) {
	t := ctx.Target()
	if t == nil {
		fmt.Fprintln(errw, "no target open")
		return
	}
	fmt.Fprintf(outw, "name: %s\n", t.Name())
	fmt.Fprintf(outw, "live: %v\n", t.IsLive())
	if ep, ok := t.EntryPoint(); ok {
		fmt.Fprintf(outw, "entry point: 0x%x\n", ep)
	}
}

func cmdPS(outw, errw io.Writer) {
	procs, err := platform.New().EnumerateProcesses()
	if err != nil {
		reportErr(errw, err)
		return
	}
	for _, p := range procs {
		fmt.Fprintf(outw, "%8d  %-20s %s\n", p.PID, p.ShortName, p.ExecutablePath)
	}
}

func cmdAttach(outw, errw io.Writer, ctx *session.Context, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(errw, "usage: attach <pid>")
		return
	}
	pid, err := strconv.ParseUint(args[0], 0, 32)
	if err != nil {
		fmt.Fprintf(errw, "invalid pid %q\n", args[0])
		return
	}
	lt := target.NewLive(platform.New())
	if err := lt.Attach(uint32(pid)); err != nil {
		reportErr(errw, err)
		return
	}
	ctx.SetTarget(lt)
	fmt.Fprintf(outw, "attached to pid %d\n", pid)
}

func cmdDetach(outw, errw io.Writer, ctx *session.Context) {
	lt, ok := ctx.LiveTarget()
	if !ok {
		fmt.Fprintln(errw, "no live target attached")
		return
	}
	if err := lt.Detach(); err != nil {
		reportErr(errw, err)
		return
	}
	ctx.SetTarget(nil)
	fmt.Fprintln(outw, "detached")
}

func cmdRegions(outw, errw io.Writer, ctx *session.Context) {
	t := ctx.Target()
	if t == nil {
		fmt.Fprintln(errw, "no target open")
		return
	}
	regions, err := t.Regions()
	if err != nil {
		reportErr(errw, err)
		return
	}
	for _, r := range regions {
		fmt.Fprintln(outw, r.String())
	}
}

func parseAddr(s string) (uint64, error) {
	return strconv.ParseUint(s, 0, 64)
}

func cmdRead(outw, errw io.Writer, ctx *session.Context, args []string) {
	t := ctx.Target()
	if t == nil {
		fmt.Fprintln(errw, "no target open")
		return
	}
	if len(args) < 1 {
		fmt.Fprintln(errw, "usage: read <addr> [byte_count]")
		return
	}
	addr, err := parseAddr(args[0])
	if err != nil {
		fmt.Fprintf(errw, "invalid address %q\n", args[0])
		return
	}
	count := 256
	if len(args) >= 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			fmt.Fprintf(errw, "invalid byte_count %q\n", args[1])
			return
		}
		count = n
	}
	buf := make([]byte, count)
	n, err := t.Read(addr, buf)
	if err != nil && n == 0 {
		reportErr(errw, err)
		return
	}
	hexdump(outw, addr, buf[:n])
}

// hexdump prints buf in canonical 16-byte-wide rows: hex bytes on the
// left, printable characters ('.' substituted otherwise) on the right.
func hexdump(w io.Writer, base uint64, buf []byte) {
	for off := 0; off < len(buf); off += 16 {
		end := off + 16
		if end > len(buf) {
			end = len(buf)
		}
		row := buf[off:end]
		fmt.Fprintf(w, "%016x  ", base+uint64(off))
		for i := 0; i < 16; i++ {
			if i < len(row) {
				fmt.Fprintf(w, "%02x ", row[i])
			} else {
				fmt.Fprint(w, "   ")
			}
		}
		fmt.Fprint(w, " |")
		for _, b := range row {
			if b >= 0x20 && b <= 0x7E {
				fmt.Fprintf(w, "%c", b)
			} else {
				fmt.Fprint(w, ".")
			}
		}
		fmt.Fprintln(w, "|")
	}
}

func cmdDisasm(outw, errw io.Writer, ctx *session.Context, args []string) {
	t := ctx.Target()
	if t == nil {
		fmt.Fprintln(errw, "no target open")
		return
	}
	if len(args) < 1 {
		fmt.Fprintln(errw, "usage: disasm <addr> [instr_count]")
		return
	}
	addr, err := parseAddr(args[0])
	if err != nil {
		fmt.Fprintf(errw, "invalid address %q\n", args[0])
		return
	}
	count := 20
	if len(args) >= 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			fmt.Fprintf(errw, "invalid instr_count %q\n", args[1])
			return
		}
		count = n
	}

	const maxInstrLen = 15
	buf := make([]byte, maxInstrLen)
	ip := addr
	for i := 0; i < count; i++ {
		n, rerr := t.Read(ip, buf)
		if n == 0 {
			if rerr != nil {
				reportErr(errw, rerr)
			}
			return
		}
		text, inst, ok := disasm.Format(buf[:n], ip)
		if !ok {
			fmt.Fprintf(outw, "0x%016x: %s\n", ip, disasm.DB0xNN(buf[0]))
			ip++
			continue
		}
		fmt.Fprintf(outw, "0x%016x: %s\n", ip, text)
		ip += uint64(inst.Length)
	}
}

func parseDataType(s string) (scanner.DataType, bool) {
	switch strings.ToLower(s) {
	case "u8":
		return scanner.U8, true
	case "i8":
		return scanner.I8, true
	case "u16":
		return scanner.U16, true
	case "i16":
		return scanner.I16, true
	case "u32":
		return scanner.U32, true
	case "i32":
		return scanner.I32, true
	case "u64":
		return scanner.U64, true
	case "i64":
		return scanner.I64, true
	case "f32":
		return scanner.F32, true
	case "f64":
		return scanner.F64, true
	default:
		return 0, false
	}
}

func parseCompare(s string) (scanner.Compare, bool) {
	switch strings.ToLower(s) {
	case "exact", "==":
		return scanner.Exact, true
	case "greater", ">":
		return scanner.Greater, true
	case "less", "<":
		return scanner.Less, true
	default:
		return 0, false
	}
}

func cmdScan(outw, errw io.Writer, ctx *session.Context, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(errw, "usage: scan new|refine|cancel|write ...")
		return
	}
	t := ctx.Target()
	switch args[0] {
	case "new", "refine":
		if t == nil {
			fmt.Fprintln(errw, "no target open")
			return
		}
		if len(args) < 4 {
			fmt.Fprintln(errw, "usage: scan new|refine <type> <cmp> <literal> [fast]")
			return
		}
		dt, ok := parseDataType(args[1])
		if !ok {
			fmt.Fprintf(errw, "unknown type %q\n", args[1])
			return
		}
		cmp, ok := parseCompare(args[2])
		if !ok {
			fmt.Fprintf(errw, "unknown comparator %q\n", args[2])
			return
		}
		cfg := scanner.Config{DataType: dt, Compare: cmp, ValueLiteral: args[3], FastScan: len(args) >= 5 && args[4] == "fast"}
		if args[0] == "new" {
			ctx.Scanner.BeginFirstScan(t, cfg)
		} else {
			ctx.Scanner.BeginRefineScan(t, cfg)
		}
		fmt.Fprintln(outw, "scan started")
	case "cancel":
		ctx.Scanner.Cancel()
		fmt.Fprintln(outw, "scan cancelled")
	case "write":
		if t == nil {
			fmt.Fprintln(errw, "no target open")
			return
		}
		if len(args) < 4 {
			fmt.Fprintln(errw, "usage: scan write <addr> <type> <literal>")
			return
		}
		addr, err := parseAddr(args[1])
		if err != nil {
			fmt.Fprintf(errw, "invalid address %q\n", args[1])
			return
		}
		dt, ok := parseDataType(args[2])
		if !ok {
			fmt.Fprintf(errw, "unknown type %q\n", args[2])
			return
		}
		ok, err = scanner.WriteValue(t, addr, args[3], dt)
		if err != nil {
			reportErr(errw, err)
			return
		}
		if !ok {
			fmt.Fprintf(errw, "invalid literal %q for type %s\n", args[3], args[2])
			return
		}
		fmt.Fprintln(outw, "written")
	default:
		fmt.Fprintf(errw, "unknown scan subcommand %q\n", args[0])
	}
}

func cmdStrings(outw, errw io.Writer, ctx *session.Context, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(errw, "usage: strings scan|cancel|find ...")
		return
	}
	switch args[0] {
	case "scan":
		t := ctx.Target()
		if t == nil {
			fmt.Fprintln(errw, "no target open")
			return
		}
		cfg := strtab.DefaultConfig()
		if len(args) >= 2 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n <= 0 {
				fmt.Fprintf(errw, "invalid min_length %q\n", args[1])
				return
			}
			cfg.MinLength = n
		}
		ctx.Strings.Scan(t, cfg)
		fmt.Fprintln(outw, "strings scan started")
	case "cancel":
		ctx.Strings.Cancel()
		fmt.Fprintln(outw, "strings scan cancelled")
	case "find":
		if len(args) != 2 {
			fmt.Fprintln(errw, "usage: strings find <addr>")
			return
		}
		addr, err := parseAddr(args[1])
		if err != nil {
			fmt.Fprintf(errw, "invalid address %q\n", args[1])
			return
		}
		ref, ok := ctx.Strings.FindExact(addr)
		if !ok {
			fmt.Fprintln(errw, "no string at that address")
			return
		}
		t := ctx.Target()
		fmt.Fprintf(outw, "0x%x (%d bytes): %s\n", ref.Address, ref.Length, strtab.ReadString(t, ref))
	default:
		fmt.Fprintf(errw, "unknown strings subcommand %q\n", args[0])
	}
}

func cmdXref(outw, errw io.Writer, ctx *session.Context, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(errw, "usage: xref scan|cancel|list")
		return
	}
	switch args[0] {
	case "scan":
		t := ctx.Target()
		if t == nil {
			fmt.Fprintln(errw, "no target open")
			return
		}
		ctx.Xref.StartScan(t)
		fmt.Fprintln(outw, "xref scan started")
	case "cancel":
		ctx.Xref.Cancel()
		fmt.Fprintln(outw, "xref scan cancelled")
	case "list":
		for _, item := range ctx.Xref.Items() {
			fmt.Fprintf(outw, "%s (0x%x) %s  %d ref(s)\n", item.Name, item.Address, item.DefaultValueDef, len(item.Refs))
		}
	default:
		fmt.Fprintf(errw, "unknown xref subcommand %q\n", args[0])
	}
}
