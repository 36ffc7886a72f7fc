package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"dungeonsync/client"
	"dungeonsync/config"
	"dungeonsync/logger"
	"dungeonsync/protocol"
	"dungeonsync/transport"
)

func joinCmd() *cobra.Command {
	var (
		addr     string
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   "join [name]",
		Short: "Join a dungeon server from the terminal",
		Long: `Log in to a dungeon server and play from the terminal.

Anything typed that does not start with '/' is sent as chat. Type /help
for the command list. The address may be host:port for the framed TCP
protocol or a ws:// URL for the WebSocket endpoint.

Examples:
  dungeonsync join Hero
  dungeonsync join Hero --server ws://127.0.0.1:8801/ws`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadClient()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("server") {
				cfg.ServerAddr = addr
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if len(args) == 1 {
				cfg.PlayerName = args[0]
			}
			if cfg.PlayerName == "" {
				return errors.New("a player name is required (argument or DUNGEON_PLAYER_NAME)")
			}
			if !protocol.ValidName(cfg.PlayerName) {
				return fmt.Errorf("invalid player name %q", cfg.PlayerName)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runJoin(cmd.Context(), cfg, os.Stdin, os.Stdout)
		},
	}

	cmd.Flags().StringVarP(&addr, "server", "s", "", "Server address (default from DUNGEON_SERVER_ADDR)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")

	return cmd
}

func runJoin(parent context.Context, cfg *config.Client, in io.Reader, out io.Writer) error {
	if err := logger.Init(logger.Options{File: cfg.LogFile, Level: cfg.LogLevel}); err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ui := &consoleUI{out: out}
	s := client.New(client.Options{
		Addr: cfg.ServerAddr,
		Transport: transport.Options{
			MaxFrameSize: cfg.MaxFrameSize,
			WriteTimeout: cfg.WriteTimeout,
		},
		HandshakeTimeout: cfg.HandshakeTimeout,
		Listener:         ui,
	})
	if err := s.Login(ctx, cfg.PlayerName); err != nil {
		return err
	}
	defer s.Logout()
	ui.printf("joined %s as %s, /help for commands", cfg.ServerAddr, cfg.PlayerName)

	go func() {
		if err := s.SyncEvery(ctx, cfg.SyncInterval); err != nil && !errors.Is(err, context.Canceled) {
			logger.Log.Debugf("sync loop stopped: %v", err)
		}
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.Done():
			return errors.New("disconnected from server")
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := runCommand(s, line, ui)
			if err != nil {
				ui.printf("! %v", err)
			}
			if quit {
				return nil
			}
		}
	}
}

const helpText = `commands:
  /who                 players in view
  /floor               items on the floor
  /move X Y            move to X,Y
  /pick N              pick up floor item N (see /floor)
  /fire WEAPON X Y     shoot from your position at X,Y
  /hit DAMAGE          report damage you took
  /bag [NAME]          show a bag
  /take NAME SLOT      take an item from NAME's bag
  /drop SLOT           drop a bag slot on the floor
  /clear               empty your hand
  /focus [NAME]        target a player
  /quit                leave`

// runCommand executes one line typed by the player. It reports whether the
// player asked to quit.
func runCommand(s *client.Session, line string, ui *consoleUI) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		return false, s.SendMessage(line)
	}
	fields := strings.Fields(line)
	args := fields[1:]
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		ui.printf("%s", helpText)
	case "/who":
		for _, p := range s.Players() {
			ui.printf("  %-24s hp=%-3d (%d,%d) %s", p.Name, p.HP, p.X, p.Y, itemName(p.Item))
		}
	case "/floor":
		for i, it := range s.FloorItems() {
			ui.printf("  %d: %s at (%d,%d)", i, itemName(it.Code), it.X, it.Y)
		}
	case "/move":
		n, err := ints(args, 2)
		if err != nil {
			return false, err
		}
		return false, s.RequestMove(n[0], n[1])
	case "/pick":
		n, err := ints(args, 1)
		if err != nil {
			return false, err
		}
		floor := s.FloorItems()
		if n[0] < 0 || n[0] >= len(floor) {
			return false, fmt.Errorf("no floor item %d", n[0])
		}
		return false, s.RequestPickup(floor[n[0]])
	case "/fire":
		if len(args) != 3 {
			return false, errors.New("usage: /fire WEAPON X Y")
		}
		n, err := ints(args[1:], 2)
		if err != nil {
			return false, err
		}
		me, _ := s.LocalPlayer()
		return false, s.RequestFire(args[0], 30, client.Point{X: me.X, Y: me.Y}, client.Point{X: n[0], Y: n[1]})
	case "/hit":
		n, err := ints(args, 1)
		if err != nil {
			return false, err
		}
		return false, s.RequestHit(n[0])
	case "/bag":
		target := s.Name()
		if len(args) > 0 {
			target = args[0]
		}
		return false, s.RequestCharacterItems(target)
	case "/take":
		if len(args) != 2 {
			return false, errors.New("usage: /take NAME SLOT")
		}
		n, err := ints(args[1:], 1)
		if err != nil {
			return false, err
		}
		return false, s.RequestTakeItem(args[0], n[0])
	case "/drop":
		n, err := ints(args, 1)
		if err != nil {
			return false, err
		}
		return false, s.RequestDropItem(n[0])
	case "/clear":
		return false, s.RequestClearItem()
	case "/focus":
		name := ""
		if len(args) > 0 {
			name = args[0]
		}
		return false, s.SetFocus(name)
	default:
		return false, fmt.Errorf("unknown command %s, try /help", fields[0])
	}
	return false, nil
}

func ints(args []string, want int) ([]int, error) {
	if len(args) != want {
		return nil, fmt.Errorf("want %d numbers, got %d", want, len(args))
	}
	out := make([]int, want)
	for i, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", a)
		}
		out[i] = n
	}
	return out, nil
}

func itemName(code string) string {
	if code == "" {
		return "-"
	}
	if it, ok := protocol.LookupItem(code); ok {
		return it.Name
	}
	return code
}

// consoleUI prints session events as text lines.
type consoleUI struct {
	client.NopListener
	mu  sync.Mutex
	out io.Writer
}

func (u *consoleUI) printf(format string, args ...any) {
	u.mu.Lock()
	defer u.mu.Unlock()
	fmt.Fprintf(u.out, format+"\n", args...)
}

func (u *consoleUI) OnLocalPlayer(p protocol.PlayerState) {
	u.printf("* you are %s, hp=%d at (%d,%d)", p.Name, p.HP, p.X, p.Y)
}

func (u *consoleUI) OnPlayerJoined(p protocol.PlayerState) {
	u.printf("* %s is here", p.Name)
}

func (u *consoleUI) OnPlayerLeft(name string) { u.printf("* %s left", name) }

func (u *consoleUI) OnFocusCleared(name string) { u.printf("* lost sight of %s", name) }

func (u *consoleUI) OnTextMessage(text string) { u.printf("%s", text) }

func (u *consoleUI) OnFloorItemSpawned(it protocol.FloorItem) {
	u.printf("* %s appeared at (%d,%d)", itemName(it.Code), it.X, it.Y)
}

func (u *consoleUI) OnItemPicked(code string) { u.printf("* you picked up %s", itemName(code)) }

func (u *consoleUI) OnFire(f protocol.Fire) {
	u.printf("* %s fired at (%d,%d)", f.From, f.X1, f.Y1)
}

func (u *consoleUI) OnHealthChanged(hp int) { u.printf("* hp %d", hp) }

func (u *consoleUI) OnRespawn(p protocol.PlayerState) {
	u.printf("* you died and respawned at (%d,%d)", p.X, p.Y)
}

func (u *consoleUI) OnInventory(pack protocol.ItemPack) {
	names := make([]string, len(pack.Slots))
	for i, code := range pack.Slots {
		names[i] = fmt.Sprintf("%d:%s", i, itemName(code))
	}
	u.printf("* %s's bag: %s", pack.Name, strings.Join(names, " "))
}

func (u *consoleUI) OnSessionTerminated(err error) { u.printf("! session ended: %v", err) }
