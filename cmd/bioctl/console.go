package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/caffeineduck/browserinterop/contract"
	"github.com/caffeineduck/browserinterop/interop"
	"github.com/caffeineduck/browserinterop/objref"
	"github.com/caffeineduck/browserinterop/query"
	"github.com/caffeineduck/browserinterop/transport"
	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Join a relay room as an interactive client or host",
	Long:  consoleHelp,
	Run:   runConsole,
}

func init() {
	consoleCmd.Flags().String("url", "", "Relay websocket URL (default from config)")
	consoleCmd.Flags().String("room", "", "Room to join (default from config)")
	consoleCmd.Flags().String("role", "", "Member role: client, host (default from config)")
	consoleCmd.Flags().String("history", "", "History file path (default: ~/.bioctl_history)")
	consoleCmd.Flags().Duration("timeout", 10*time.Second, "Timeout for calls and queries")
	rootCmd.AddCommand(consoleCmd)
}

const consoleHelp = `Join a room on the relay and drive the interop protocol by hand.

Commands:
  handshake                        Start the handshake (client) or announce (host)
  services                         List services offered by the other side
  local                            List services offered here
  call <fqn> <version> [payload]   Invoke a method and print the reply
  event <fqn> <version> [payload]  Send an event
  select <uid[:type]>...           Send a selection (client only)
  query <queryId> [key=value]...   Send an interop query and wait for the reply
  context                          Print the application context
  help                             Show commands
  quit                             Leave the room

Features:
  - Command history (up/down arrows)
  - History search (Ctrl+R)`

const defaultSelectType = "ItemRevision"

type consoleCommand struct {
	name    string
	args    []string
	payload string
}

var errQuit = errors.New("quit")

// parseConsoleLine splits a console line. For call and event the text after
// the version is kept verbatim as the payload.
func parseConsoleLine(line string) (consoleCommand, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return consoleCommand{}, nil
	}
	c := consoleCommand{name: strings.ToLower(fields[0])}

	switch c.name {
	case "quit", "exit":
		c.name = "quit"
		return c, nil
	case "help", "handshake", "services", "local", "context":
		return c, nil
	case "call", "event":
		if len(fields) < 3 {
			return c, fmt.Errorf("usage: %s <fqn> <version> [payload]", c.name)
		}
		c.args = []string{fields[1], normalizeVersion(fields[2])}
		c.payload = restAfter(line, 3)
		return c, nil
	case "select":
		if len(fields) < 2 {
			return c, errors.New("usage: select <uid[:type]>...")
		}
		c.args = fields[1:]
		return c, nil
	case "query":
		if len(fields) < 2 {
			return c, errors.New("usage: query <queryId> [key=value]...")
		}
		for _, kv := range fields[2:] {
			if !strings.Contains(kv, "=") {
				return c, fmt.Errorf("query field %q: expected key=value", kv)
			}
		}
		c.args = fields[1:]
		return c, nil
	default:
		return c, fmt.Errorf("unknown command %q (try help)", c.name)
	}
}

// normalizeVersion accepts interface versions with or without the
// leading underscore.
func normalizeVersion(v string) string {
	if strings.HasPrefix(v, "_") {
		return v
	}
	return "_" + v
}

// restAfter returns line with its first n fields removed.
func restAfter(line string, n int) string {
	rest := strings.TrimSpace(line)
	for i := 0; i < n; i++ {
		idx := strings.IndexFunc(rest, func(r rune) bool { return r == ' ' || r == '\t' })
		if idx == -1 {
			return ""
		}
		rest = strings.TrimSpace(rest[idx:])
	}
	return rest
}

func parseSelection(args []string) []objref.ModelObject {
	objs := make([]objref.ModelObject, 0, len(args))
	for _, arg := range args {
		uid, typ, ok := strings.Cut(arg, ":")
		if !ok || typ == "" {
			typ = defaultSelectType
		}
		objs = append(objs, objref.ModelObject{UID: uid, Type: typ})
	}
	return objs
}

func queryMessage(args []string) *query.Message {
	data := query.NewData()
	for _, kv := range args[1:] {
		k, v, _ := strings.Cut(kv, "=")
		data.SetString(k, v)
	}
	return query.NewMessage(args[0], data)
}

// runConsoleCommand executes c against s and writes results to out. It
// returns errQuit when the console should end.
func runConsoleCommand(ctx context.Context, s *stack, c consoleCommand, out io.Writer) error {
	switch c.name {
	case "":
		return nil
	case "quit":
		return errQuit
	case "help":
		fmt.Fprintln(out, consoleHelp)
		return nil
	case "handshake":
		if s.peer.Role() == interop.RoleHost {
			return s.peer.Announce(ctx)
		}
		return s.peer.Handshake(ctx)
	case "services":
		printDescriptors(out, s.peer.Directory().List())
		return nil
	case "local":
		printDescriptors(out, s.peer.Registry().Descriptors())
		return nil
	case "context":
		snap := s.peer.AppContext().Snapshot()
		keys := make([]string, 0, len(snap))
		for k := range snap {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(out, "%s = %v\n", k, snap[k])
		}
		return nil
	case "call":
		resp, err := s.peer.CallMethod(ctx, contract.NewDescriptor(c.args[0], c.args[1]), c.payload)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, resp)
		return nil
	case "event":
		return s.peer.CallEvent(ctx, contract.NewDescriptor(c.args[0], c.args[1]), c.payload)
	case "select":
		if s.provider == nil {
			return errors.New("select is only available to clients")
		}
		return s.provider.Select(ctx, parseSelection(c.args))
	case "query":
		responses, err := s.query(ctx, queryMessage(c.args))
		if err != nil {
			return err
		}
		for _, r := range responses {
			for _, d := range r.Data {
				for _, k := range d.Keys() {
					fmt.Fprintf(out, "%s: %s = %v\n", r.QueryID, k, d.Field(k))
				}
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown command %q", c.name)
	}
}

func printDescriptors(out io.Writer, list []contract.Descriptor) {
	if len(list) == 0 {
		fmt.Fprintln(out, "(none)")
		return
	}
	for _, d := range list {
		fmt.Fprintln(out, d.String())
	}
}

func runConsole(cmd *cobra.Command, args []string) {
	url, _ := cmd.Flags().GetString("url")
	room, _ := cmd.Flags().GetString("room")
	role, _ := cmd.Flags().GetString("role")
	historyFile, _ := cmd.Flags().GetString("history")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	remoteCfg := cfg.Remote
	if url != "" {
		remoteCfg.URL = url
	}
	if room != "" {
		remoteCfg.Room = room
	}
	if role != "" {
		remoteCfg.Role = role
	}
	if remoteCfg.Role != contract.MemberClient && remoteCfg.Role != contract.MemberHost {
		fatal(fmt.Errorf("unknown role %q", remoteCfg.Role))
	}
	if remoteCfg.Room == "" {
		fatal(errors.New("room required: use --room or remote.room"))
	}
	if historyFile == "" {
		home, _ := os.UserHomeDir()
		historyFile = filepath.Join(home, ".bioctl_history")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := console(ctx, remoteCfg.URL, remoteCfg.Room, remoteCfg.PeerRole(), historyFile, timeout); err != nil {
		fatal(err)
	}
}

func console(ctx context.Context, url, room string, role interop.Role, historyFile string, timeout time.Duration) error {
	presence := make(chan bool, 8)
	remote, err := transport.Dial(ctx, url, room, role,
		transport.WithRemoteLogger(logger.Named("remote")),
		transport.WithPresence(func(available bool) {
			select {
			case presence <- available:
			default:
			}
		}),
	)
	if err != nil {
		return err
	}
	defer remote.Close()

	s, err := newStack(remote, role, cfg, logger)
	if err != nil {
		return err
	}
	remote.Attach(s.peer)
	if cfg.Log.Forward && role == interop.RoleClient {
		logger = s.forwardLogs(logger)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            fmt.Sprintf("%s@%s> ", role, room),
		HistoryFile:       historyFile,
		HistoryLimit:      1000,
		InterruptPrompt:   "^C",
		EOFPrompt:         "quit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("initialize readline: %w", err)
	}
	defer rl.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return remote.Run(gctx)
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case available := <-presence:
				s.setHosting(available)
				if available && role == interop.RoleClient {
					if err := s.peer.Handshake(gctx); err != nil {
						logger.Warn("handshake", zap.Error(err))
					}
				}
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		rl.Close()
		return nil
	})

	if role == interop.RoleClient {
		if err := s.peer.Handshake(ctx); err != nil {
			logger.Warn("handshake", zap.Error(err))
		}
		if err := s.peer.MarkStartupComplete(ctx); err != nil {
			logger.Warn("startup notification", zap.Error(err))
		}
	} else if err := s.peer.Announce(ctx); err != nil {
		logger.Debug("announce", zap.Error(err))
	}

	fmt.Fprintf(os.Stderr, "bioctl console: %s in room %s as %s (type 'help', Ctrl+D to quit)\n", remote.MemberID(), room, role)

	g.Go(func() error {
		defer cancel()
		for {
			line, err := rl.Readline()
			if err != nil {
				if errors.Is(err, readline.ErrInterrupt) {
					continue
				}
				if errors.Is(err, io.EOF) || gctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("read input: %w", err)
			}

			c, err := parseConsoleLine(line)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				continue
			}
			cctx, cancel := context.WithTimeout(gctx, timeout)
			err = runConsoleCommand(cctx, s, c, os.Stdout)
			cancel()
			if errors.Is(err, errQuit) {
				return nil
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
		}
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
