/*
Copyright (C) 2023-2026  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Command bufferctl is the operator console for a running collabd
// process: a chzyer/readline REPL, the direct descendant of the
// teacher's own scm.Repl console, repurposed from evaluating Scheme
// expressions to listing hosted buffers, inspecting collaborators,
// and forcing an epoch snapshot.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/chzyer/readline"
)

const prompt = "\033[32mbufferctl>\033[0m "

// client is the thin RPC surface bufferctl drives against a running
// collabd instance. A real deployment wires this to collabd's admin
// endpoint; it's an interface here so the REPL's command dispatch can
// be exercised in tests without a live server.
type client interface {
	ListBuffers() ([]string, error)
	ListCollaborators(bufferID string) ([]string, error)
	ForceSnapshot(bufferID string) (epoch uint64, err error)
	ExportSnapshot(bufferID string) ([]byte, error)
}

func main() {
	l, err := readline.NewEx(&readline.Config{
		Prompt:            prompt,
		HistoryFile:       ".bufferctl-history.tmp",
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		panic(err)
	}
	defer l.Close()
	l.CaptureExitSignal()

	fmt.Print(`bufferctl - collabd operator console
Type "help" for a list of commands.
`)

	// addr comes from the first command-line argument so a bare `bufferctl`
	// still drops into the REPL against the default local admin port.
	addr := ":8096"
	if len(os.Args) > 1 {
		addr = os.Args[1]
	}
	c := newRPCClient(addr)

	runREPL(l, c, os.Stdout)
}

func runREPL(l *readline.Instance, c client, out io.Writer) {
	for {
		line, err := l.Readline()
		if err == readline.ErrInterrupt {
			continue
		} else if err == io.EOF {
			return
		} else if err != nil {
			return
		}
		if line == "" {
			continue
		}
		dispatch(line, c, out)
	}
}

func dispatch(line string, c client, out io.Writer) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(out, "error: %v\n", r)
		}
	}()
	var cmd, arg string
	fmt.Sscanf(line, "%s %s", &cmd, &arg)
	switch cmd {
	case "help":
		fmt.Fprint(out, `commands:
  list                    list hosted buffers
  collaborators <buffer>  list a buffer's live collaborators
  snapshot <buffer>       force an epoch snapshot
  export-snapshot <buffer> export the buffer's current epoch to an xz-compressed blob
`)
	case "list":
		buffers, err := c.ListBuffers()
		check(err)
		for _, b := range buffers {
			fmt.Fprintln(out, b)
		}
	case "collaborators":
		cols, err := c.ListCollaborators(arg)
		check(err)
		for _, col := range cols {
			fmt.Fprintln(out, col)
		}
	case "snapshot":
		epoch, err := c.ForceSnapshot(arg)
		check(err)
		fmt.Fprintf(out, "epoch %d\n", epoch)
	case "export-snapshot":
		data, err := c.ExportSnapshot(arg)
		check(err)
		fmt.Fprintf(out, "%d bytes (xz-compressed)\n", len(data))
	default:
		fmt.Fprintf(out, "unknown command %q (try \"help\")\n", cmd)
	}
}

func check(err error) {
	if err != nil {
		panic(err)
	}
}

// rpcClient is a placeholder transport: a real build dials collabd's
// admin websocket/HTTP endpoint at addr. Kept minimal since the wire
// format for the admin surface is outside this spec's scope (spec.md
// only specifies the collaborator-facing protocol); this just proves
// out the command dispatch against an address the operator supplies.
type rpcClient struct {
	addr string
}

func newRPCClient(addr string) *rpcClient { return &rpcClient{addr: addr} }

func (c *rpcClient) ListBuffers() ([]string, error) {
	return nil, fmt.Errorf("bufferctl: not connected to %s", c.addr)
}

func (c *rpcClient) ListCollaborators(string) ([]string, error) {
	return nil, fmt.Errorf("bufferctl: not connected to %s", c.addr)
}

func (c *rpcClient) ForceSnapshot(string) (uint64, error) {
	return 0, fmt.Errorf("bufferctl: not connected to %s", c.addr)
}

func (c *rpcClient) ExportSnapshot(string) ([]byte, error) {
	return nil, fmt.Errorf("bufferctl: not connected to %s", c.addr)
}
