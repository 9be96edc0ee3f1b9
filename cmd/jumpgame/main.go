package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atotto/clipboard"
	petname "github.com/dustinkirkland/golang-petname"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/patka817/jump-game/internal/config"
	"github.com/patka817/jump-game/internal/discovery"
	"github.com/patka817/jump-game/internal/history"
	"github.com/patka817/jump-game/internal/mesh"
	"github.com/patka817/jump-game/internal/session"
	"github.com/patka817/jump-game/internal/signaling"
	"github.com/patka817/jump-game/internal/transport"
	"github.com/patka817/jump-game/pkg/protocol"
)

const tickInterval = 50 * time.Millisecond // 20 snapshot broadcasts per second

var (
	flagName   string
	flagBroker string
	flagDebug  bool
	flagLAN    bool
)

func main() {
	root := &cobra.Command{
		Use:   "jumpgame",
		Short: "Peer-hosted multiplayer jump game sessions",
		Long: `jumpgame lets one player host a game room under a short code and
others join it directly over peer-to-peer channels. No game server involved;
the host's machine is the authority.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flagBroker, "broker", "", "rendezvous broker URL (overrides config)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "verbose logging")
	root.PersistentFlags().BoolVar(&flagLAN, "lan", true, "also rendezvous over local mDNS")

	hostCmd := &cobra.Command{
		Use:   "host",
		Short: "Open a room and coordinate a session",
		RunE:  runHost,
	}
	hostCmd.Flags().StringVar(&flagName, "name", "", "player name (default: generated)")

	joinCmd := &cobra.Command{
		Use:   "join CODE",
		Short: "Join a room by its four-letter code",
		Args:  cobra.ExactArgs(1),
		RunE:  runJoin,
	}
	joinCmd.Flags().StringVar(&flagName, "name", "", "player name (default: generated)")

	var clearHistory bool
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show past sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			if clearHistory {
				return history.ClearHistory()
			}
			history.ShowHistory()
			return nil
		},
	}
	historyCmd.Flags().BoolVar(&clearHistory, "clear", false, "delete the session history")

	root.AddCommand(hostCmd, joinCmd, historyCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("load config: %w", err)
	}
	if flagBroker != "" {
		cfg.BrokerURL = flagBroker
	}
	level := zerolog.InfoLevel
	if flagDebug || cfg.Debug {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
	return cfg, log, nil
}

func playerName() string {
	if flagName != "" {
		return flagName
	}
	return petname.Generate(2, "-")
}

func buildTransport(cfg *config.Config, log zerolog.Logger) (*transport.QUICTransport, *signaling.Client, error) {
	sig, err := signaling.Dial(cfg.Broker(), "jumpgame-"+petname.Generate(3, "-"), log)
	if err != nil {
		return nil, nil, fmt.Errorf("rendezvous broker: %w", err)
	}

	announcers := transport.MultiAnnouncer{sig}
	resolvers := transport.FallbackResolver{sig}
	if flagLAN {
		// LAN first when resolving: no broker round trip on a shared network
		announcers = append(announcers, discovery.LANAnnouncer{})
		resolvers = transport.FallbackResolver{discovery.LANResolver{Timeout: cfg.DiscoveryWindow()}, sig}
	}

	return transport.NewQUICTransport(announcers, resolvers, cfg.Listen(), log), sig, nil
}

func runHost(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	name := playerName()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tr, sig, err := buildTransport(cfg, log)
	if err != nil {
		return err
	}
	defer sig.Close()

	code, err := signaling.GenerateRoomCode()
	if err != nil {
		return err
	}

	m := mesh.New(tr, log)
	m.SetDialTimeout(cfg.DialTimeout())
	defer m.Close()

	if err := m.Open(ctx, code); err != nil {
		return fmt.Errorf("open room: %w", err)
	}

	fmt.Printf("Room code: %s\n", code)
	if err := clipboard.WriteAll(code); err == nil {
		fmt.Println("(copied to clipboard)")
	}
	fmt.Println("Press Enter when ready to start.")

	h := session.NewHost(ctx, name, code, m, log)
	defer h.Stop()

	go func() {
		var discard string
		fmt.Scanln(&discard)
		h.SetReady(true)
	}()

	started := time.Now()
	status := "completed"
	scene := newDemoScene(code)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-h.Done():
			if h.Err() != nil {
				status = "failed"
			}
			break loop
		case <-ticker.C:
			v := h.View()
			if v.State != session.StateInGame {
				continue
			}
			scene.advance(tickInterval, h.PlayersForGame())
			h.BroadcastSnapshot(scene.capture())
		}
	}

	v := h.View()
	entry := history.LogEntry{
		Role:     "host",
		Code:     code,
		Players:  len(v.Players),
		Status:   status,
		Duration: time.Since(started).Seconds(),
	}
	if h.Err() != nil {
		entry.Error = h.Err().Error()
	}
	if err := history.WriteEntry(entry); err != nil {
		log.Warn().Err(err).Msg("history write failed")
	}
	return nil
}

func runJoin(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	code := args[0]
	name := playerName()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tr, sig, err := buildTransport(cfg, log)
	if err != nil {
		return err
	}
	defer sig.Close()

	m := mesh.New(tr, log)
	m.SetDialTimeout(cfg.DialTimeout())
	defer m.Close()

	inputs := make(chan protocol.InputState, 8)
	c := session.NewClient(name, m, inputs, log)

	started := time.Now()
	if err := c.Join(ctx, code); err != nil {
		_ = history.WriteEntry(history.LogEntry{
			Role: "player", Code: code, Status: "failed",
			Error: err.Error(), Duration: time.Since(started).Seconds(),
		})
		return err
	}
	fmt.Printf("Joined room %s as %s. Press Enter when ready.\n", code, name)

	go func() {
		var discard string
		fmt.Scanln(&discard)
		if err := c.SendReady(true); err != nil {
			log.Warn().Err(err).Msg("ready send failed")
		}
	}()

	// Stand-in for a real input device: wiggle the jump control while the
	// game runs so the host sees live input.
	go func() {
		pressed := false
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if c.State() != session.StateInGame {
					continue
				}
				pressed = !pressed
				select {
				case inputs <- protocol.InputState{"jump": pressed}:
				default:
				}
			case <-c.Done():
				return
			}
		}
	}()

	status := "completed"
	var sessionErr error

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case ev, ok := <-c.Events():
			if !ok {
				break loop
			}
			switch e := ev.(type) {
			case session.RosterUpdated:
				for _, p := range e.Players {
					marker := " "
					if p.Ready {
						marker = "*"
					}
					fmt.Printf("  [%s] %s\n", marker, p.Name)
				}
			case session.GameStarted:
				fmt.Println("Game on!")
			case session.SnapshotReceived:
				log.Debug().Int("sprites", len(e.Snapshot.Sprites)).Int("texts", len(e.Snapshot.Texts)).Msg("tick")
			case session.SessionEnded:
				if e.Err != nil {
					fmt.Printf("Session over: %v\n", e.Err)
					status = "failed"
					sessionErr = e.Err
				}
				break loop
			}
		}
	}

	entry := history.LogEntry{
		Role: "player", Code: code, Status: status,
		Duration: time.Since(started).Seconds(),
	}
	if sessionErr != nil {
		entry.Error = sessionErr.Error()
	}
	if err := history.WriteEntry(entry); err != nil {
		log.Warn().Err(err).Msg("history write failed")
	}
	return nil
}
