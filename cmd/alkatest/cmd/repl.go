package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/solatis/alkatest/internal/blocks"
	"github.com/solatis/alkatest/internal/board"
	"github.com/solatis/alkatest/internal/packs"
	"github.com/solatis/alkatest/internal/runtime"
	"github.com/solatis/alkatest/internal/types"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Evaluate blocks interactively against the loaded packs",
	Long: `repl loads the configured packs and reads blocks as JSON, one value per
entry. Values may span lines. Lines starting with ":" are commands; :help
lists them.`,
	RunE: runRepl,
}

func init() {
	rootCmd.AddCommand(replCmd)
}

const replHelp = `:emit <event> [payload-json]   dispatch an event
:tick [n]                      run n ticks (default 1)
:place <nodeType> <x> <y>      place a node and run its place actions
:run <nodeId> <action>         run a node action
:nodes                         print the board
:inventory <node>              print the items held by a node
:events                        list events with listeners
:context                       list the root context names
:item <id> | :node <id>        print a resolved item or node type
:summary                       count the loaded entities
:reload                        reload the packs
:quit                          exit`

var errQuit = errors.New("quit")

// session evaluates REPL entries against one host.
type session struct {
	host *runtime.Host
	out  io.Writer
}

func runRepl(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	host, report, release, err := newHost(cfg, logger)
	if err != nil {
		return err
	}
	defer release()

	out := cmd.OutOrStdout()
	for _, d := range report.Diagnostics {
		fmt.Fprintln(out, "rejected:", d.Error())
	}
	s := &session{host: host, out: out}

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	histPath := ""
	if home, err := os.UserHomeDir(); err == nil {
		histPath = filepath.Join(home, ".alkatest_history")
		if f, err := os.Open(histPath); err == nil {
			_, _ = ln.ReadHistory(f)
			_ = f.Close()
		}
	}
	defer func() {
		if histPath == "" {
			return
		}
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	fmt.Fprintln(out, "alkatest repl (:help for commands)")
	var pending strings.Builder
	for {
		prompt := "> "
		if pending.Len() > 0 {
			prompt = ". "
		}
		line, err := ln.Prompt(prompt)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				fmt.Fprintln(out)
				return nil
			}
			return err
		}

		if pending.Len() == 0 {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" {
				continue
			}
			if strings.HasPrefix(trimmed, ":") {
				ln.AppendHistory(trimmed)
				if err := s.command(trimmed); err != nil {
					if errors.Is(err, errQuit) {
						return nil
					}
					fmt.Fprintln(out, "error:", err)
				}
				continue
			}
		}

		pending.WriteString(line)
		pending.WriteByte('\n')
		block, complete, err := readBlock(pending.String())
		if !complete {
			continue
		}
		entry := strings.TrimSpace(pending.String())
		pending.Reset()
		ln.AppendHistory(entry)
		if err != nil {
			fmt.Fprintln(out, "error:", err)
			continue
		}
		if err := s.eval(block); err != nil {
			fmt.Fprintln(out, "error:", err)
		}
	}
}

// readBlock decodes src as one JSON value. complete is false while src is a
// prefix of a value that could still be finished by more input.
func readBlock(src string) (block any, complete bool, err error) {
	dec := json.NewDecoder(strings.NewReader(src))
	if err := dec.Decode(&block); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, false, nil
		}
		return nil, true, err
	}
	if dec.More() {
		return nil, true, fmt.Errorf("one value per entry")
	}
	return block, true, nil
}

// eval collapses block and, unless it is static, resolves it against the
// live context. Action blocks run for their effects and print their outcome.
func (s *session) eval(block any) error {
	stack := types.Stack{"repl"}
	var (
		result any
		err    error
	)
	s.host.Inspect(func(_ *packs.Registry, _ *board.Board, e *blocks.Engine) {
		if e == nil {
			err = runtime.ErrNotLoaded
			return
		}
		if m, ok := block.(map[string]any); ok {
			if d, _ := m["_type"].(string); d != "" {
				if kind, known := blocks.KindOf(d); known && kind == blocks.KindAction {
					var outcome blocks.Outcome
					outcome, err = e.ResolveActions(block, e.RootEnv(), stack)
					result = outcome.Value
					return
				}
			}
		}
		var static bool
		result, static, err = blocks.CollapseState(block, stack)
		if err != nil || static {
			return
		}
		result, err = e.ResolveState(result, e.RootEnv(), stack)
	})
	if err != nil {
		return err
	}
	return s.print(result)
}

func (s *session) command(line string) error {
	fields := strings.Fields(line)
	name, args := fields[0], fields[1:]
	switch name {
	case ":quit", ":q", ":exit":
		return errQuit
	case ":help":
		fmt.Fprintln(s.out, replHelp)
		return nil
	case ":emit":
		if len(args) == 0 {
			return fmt.Errorf("usage: :emit <event> [payload-json]")
		}
		var payload any
		rest := strings.TrimSpace(line[len(name):])
		if rest = strings.TrimSpace(rest[len(args[0]):]); rest != "" {
			if err := json.Unmarshal([]byte(rest), &payload); err != nil {
				return fmt.Errorf("invalid payload: %w", err)
			}
		}
		return s.host.Emit(args[0], payload)
	case ":tick":
		n := 1
		if len(args) > 0 {
			var err error
			if n, err = strconv.Atoi(args[0]); err != nil || n < 1 {
				return fmt.Errorf("usage: :tick [n]")
			}
		}
		for i := 0; i < n; i++ {
			if err := s.host.Tick(); err != nil {
				return err
			}
		}
		fmt.Fprintln(s.out, "tick", s.host.Ticks())
		return nil
	case ":place":
		if len(args) != 3 {
			return fmt.Errorf("usage: :place <nodeType> <x> <y>")
		}
		x, errX := strconv.ParseFloat(args[1], 64)
		y, errY := strconv.ParseFloat(args[2], 64)
		if errX != nil || errY != nil {
			return fmt.Errorf("usage: :place <nodeType> <x> <y>")
		}
		n, err := s.host.Place(args[0], types.Position{X: x, Y: y})
		if err != nil {
			return err
		}
		return s.print(n)
	case ":run":
		if len(args) != 2 {
			return fmt.Errorf("usage: :run <nodeId> <action>")
		}
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("usage: :run <nodeId> <action>")
		}
		action, err := s.host.RunAction(id, args[1])
		if err != nil {
			return err
		}
		return s.print(action)
	case ":nodes":
		var nodes []types.Node
		s.host.Inspect(func(_ *packs.Registry, b *board.Board, _ *blocks.Engine) { nodes = b.Nodes() })
		return s.print(nodes)
	case ":inventory":
		if len(args) != 1 {
			return fmt.Errorf("usage: :inventory <node>")
		}
		var stacks []types.ItemStack
		s.host.Inspect(func(_ *packs.Registry, b *board.Board, _ *blocks.Engine) { stacks = b.Inventory(args[0]) })
		return s.print(stacks)
	case ":events", ":context":
		var names []string
		s.host.Inspect(func(reg *packs.Registry, _ *board.Board, e *blocks.Engine) {
			switch {
			case reg == nil:
			case name == ":events":
				names = reg.Listeners.Events()
			default:
				names = e.RootEnv().Names()
			}
		})
		if names == nil {
			names = []string{}
		}
		return s.print(names)
	case ":item", ":node":
		if len(args) != 1 {
			return fmt.Errorf("usage: %s <id>", name)
		}
		var (
			view any
			err  error
		)
		s.host.Inspect(func(reg *packs.Registry, _ *board.Board, e *blocks.Engine) {
			if reg == nil {
				err = runtime.ErrNotLoaded
				return
			}
			if name == ":item" {
				view, err = reg.ItemView(e, args[0])
			} else {
				view, err = reg.NodeView(e, args[0])
			}
		})
		if err != nil {
			return err
		}
		return s.print(view)
	case ":summary":
		var summary packs.Summary
		s.host.Inspect(func(reg *packs.Registry, _ *board.Board, _ *blocks.Engine) {
			if reg != nil {
				summary = reg.Summary()
			}
		})
		return s.print(summary)
	case ":reload":
		report, err := s.host.Reload()
		if err != nil {
			return err
		}
		for _, d := range report.Diagnostics {
			fmt.Fprintln(s.out, "rejected:", d.Error())
		}
		fmt.Fprintf(s.out, "reloaded, %d rejected\n", report.Len())
		return nil
	default:
		return fmt.Errorf("unknown command %s (:help lists them)", name)
	}
}

func (s *session) print(v any) error {
	out, err := json.MarshalIndent(printable(v), "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, string(out))
	return nil
}

// printable drops custom object bases so live objects encode as data.
func printable(v any) any {
	switch v := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			if k == "_base" {
				continue
			}
			out[k] = printable(val)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = printable(val)
		}
		return out
	default:
		return v
	}
}
