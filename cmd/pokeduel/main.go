// Command pokeduel runs one battle node: host a battle on a published UDP
// port, join someone else's, or watch one as an observer.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/pterm/pterm"
	"golang.org/x/time/rate"

	"pokeduel/internal/battle"
	"pokeduel/internal/config"
	"pokeduel/internal/peer"
	"pokeduel/internal/status"
)

const connectTimeout = 60 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		pterm.Error.Printfln("Configuration error: %v", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		pterm.Error.Printfln("Configuration error: %v", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	dex, err := battle.LoadPokedex(cfg.PokedexPath)
	if err != nil {
		pterm.Error.Printfln("Cannot load pokedex: %v", err)
		os.Exit(1)
	}

	pterm.DefaultHeader.Println("PokeDuel")

	name, err := pterm.DefaultInteractiveTextInput.Show("Trainer name")
	if err != nil || name == "" {
		name = "trainer"
	}

	role, err := pterm.DefaultInteractiveSelect.
		WithOptions([]string{"Host a battle", "Join a battle", "Watch a battle"}).
		Show("What would you like to do?")
	if err != nil {
		pterm.Error.Printfln("Input error: %v", err)
		os.Exit(1)
	}

	opts := peer.Options{
		AckTimeout:  cfg.AckTimeout,
		MaxAttempts: cfg.MaxAttempts,
		ChatRate:    rate.Limit(float64(cfg.ChatRate) / 60.0),
		ChatBurst:   cfg.ChatBurst,
	}

	switch role {
	case "Host a battle":
		runHost(cfg, dex, name, logger, opts)
	case "Join a battle":
		runJoiner(cfg, dex, name, logger, opts)
	default:
		runSpectator(name, logger, opts)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}

	ptermLevel := pterm.LogLevelInfo
	switch level {
	case slog.LevelDebug:
		ptermLevel = pterm.LogLevelDebug
	case slog.LevelWarn:
		ptermLevel = pterm.LogLevelWarn
	case slog.LevelError:
		ptermLevel = pterm.LogLevelError
	}
	return slog.New(pterm.NewSlogHandler(pterm.DefaultLogger.WithLevel(ptermLevel)))
}

// termSink renders battle events with pterm.
type termSink struct{}

func (termSink) BattleLine(text string) {
	pterm.Info.Println(text)
}

func (termSink) ChatMessage(sender, text string) {
	pterm.Println(pterm.Cyan(sender+": ") + text)
}

func (termSink) BattleEnded(winner, loser string) {
	pterm.Success.Printfln("%s wins! %s is out of the fight.", winner, loser)
}

func (termSink) Terminated(reason string) {
	pterm.Error.Printfln("Session ended: %s", reason)
}

func pickCombatant(dex *battle.Pokedex) *battle.Pokemon {
	choice, err := pterm.DefaultInteractiveSelect.
		WithOptions(dex.Names()).
		Show("Choose your combatant")
	if err != nil {
		pterm.Error.Printfln("Input error: %v", err)
		os.Exit(1)
	}
	mon, ok := dex.Lookup(choice)
	if !ok {
		pterm.Error.Printfln("Unknown combatant %q", choice)
		os.Exit(1)
	}
	return mon
}

func runHost(cfg *config.Config, dex *battle.Pokedex, name string, logger *slog.Logger, opts peer.Options) {
	mon := pickCombatant(dex)

	host, err := peer.NewHost(cfg.BindAddr(), name, mon, dex, termSink{}, logger, opts)
	if err != nil {
		pterm.Error.Printfln("Cannot start host: %v", err)
		os.Exit(1)
	}
	defer host.Close()
	host.Start()
	startStatusAPI(cfg, host.Peer, logger)

	spinner, _ := pterm.DefaultSpinner.Start(fmt.Sprintf("Waiting for a challenger on %s...", cfg.BindAddr()))
	for {
		request, ok := <-host.Requests()
		if !ok {
			return
		}
		spinner.Stop()

		accept, _ := pterm.DefaultInteractiveConfirm.
			Show(fmt.Sprintf("%s (%s) wants to battle. Accept?", request.Name, request.Addr))
		if !accept {
			spinner, _ = pterm.DefaultSpinner.Start("Waiting for a challenger...")
			continue
		}
		if err := host.Accept(request); err != nil {
			pterm.Warning.Printfln("Cannot accept: %v", err)
			continue
		}
		break
	}

	battleLoop(host.Peer)
}

func runJoiner(cfg *config.Config, dex *battle.Pokedex, name string, logger *slog.Logger, opts peer.Options) {
	hostAddr := askHostAddr()
	mon := pickCombatant(dex)

	joiner, err := peer.NewJoiner(hostAddr, name, mon, dex, termSink{}, logger, opts)
	if err != nil {
		pterm.Error.Printfln("Cannot start joiner: %v", err)
		os.Exit(1)
	}
	defer joiner.Close()
	joiner.Start()
	startStatusAPI(cfg, joiner.Peer, logger)

	spinner, _ := pterm.DefaultSpinner.Start("Asking " + hostAddr + " for a battle...")
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := joiner.Connect(ctx); err != nil {
		spinner.Fail(err.Error())
		os.Exit(1)
	}
	spinner.Success("Battle accepted!")

	battleLoop(joiner.Peer)
}

func runSpectator(name string, logger *slog.Logger, opts peer.Options) {
	hostAddr := askHostAddr()

	spectator, err := peer.NewSpectator(hostAddr, name, termSink{}, logger, opts)
	if err != nil {
		pterm.Error.Printfln("Cannot start spectator: %v", err)
		os.Exit(1)
	}
	defer spectator.Close()
	spectator.Start()

	spinner, _ := pterm.DefaultSpinner.Start("Asking " + hostAddr + " for the observer seat...")
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := spectator.Attach(ctx); err != nil {
		spinner.Fail(err.Error())
		os.Exit(1)
	}
	spinner.Success("Watching the battle.")

	for {
		select {
		case <-spectator.Done():
			return
		default:
		}
		action, err := pterm.DefaultInteractiveSelect.
			WithOptions([]string{"Chat", "Quit"}).
			Show("Observer actions")
		if err != nil || action == "Quit" {
			return
		}
		text, err := pterm.DefaultInteractiveTextInput.Show("Say")
		if err != nil || text == "" {
			continue
		}
		if err := spectator.SendChat(text); err != nil {
			pterm.Warning.Printfln("Chat failed: %v", err)
		}
	}
}

func askHostAddr() string {
	addr, err := pterm.DefaultInteractiveTextInput.
		WithDefaultValue("127.0.0.1:9000").
		Show("Host address")
	if err != nil || addr == "" {
		return "127.0.0.1:9000"
	}
	return addr
}

func startStatusAPI(cfg *config.Config, p *peer.Peer, logger *slog.Logger) {
	if !cfg.StatusEnabled() {
		return
	}
	status.NewServer(cfg.StatusPort, p.Snapshot, logger).Start()
}

// battleLoop is the shared interactive loop for both combatant roles.
func battleLoop(p *peer.Peer) {
	for {
		select {
		case <-p.Done():
			return
		default:
		}

		action, err := pterm.DefaultInteractiveSelect.
			WithOptions([]string{"Attack", "Boost attack", "Arm defense boost", "Chat", "Show status", "Quit"}).
			Show("Choose an action")
		if err != nil {
			return
		}

		switch action {
		case "Attack":
			doAttack(p)
		case "Boost attack":
			if err := p.UseAttackBoost(); err != nil {
				pterm.Warning.Printfln("Cannot boost: %v", err)
			} else {
				pterm.Info.Println("Special attack boost armed for your next attack.")
			}
		case "Arm defense boost":
			if err := p.ArmDefenseBoost(); err != nil {
				pterm.Warning.Printfln("Cannot boost: %v", err)
			} else {
				pterm.Info.Println("Special defense boost armed against the next attack.")
			}
		case "Chat":
			text, err := pterm.DefaultInteractiveTextInput.Show("Say")
			if err != nil || text == "" {
				continue
			}
			if err := p.SendChat(text); err != nil {
				pterm.Warning.Printfln("Chat failed: %v", err)
			}
		case "Show status":
			showStatus(p)
		case "Quit":
			p.Close()
			return
		}
	}
}

func doAttack(p *peer.Peer) {
	if !p.IsMyTurn() {
		pterm.Warning.Println("It is not your turn.")
		return
	}
	options := append(p.Moves(), "Random")
	pick, err := pterm.DefaultInteractiveSelect.
		WithOptions(options).
		Show("Choose a move")
	if err != nil {
		return
	}
	if pick == "Random" {
		if pick, err = p.RandomMove(); err != nil {
			pterm.Warning.Printfln("Cannot pick a move: %v", err)
			return
		}
	}
	if err := p.Attack(pick); err != nil {
		pterm.Warning.Printfln("Attack failed: %v", err)
	}
}

func showStatus(p *peer.Peer) {
	snap := p.Snapshot()
	if snap.Self != nil {
		pterm.Info.Printfln("%s: %d/%d HP", snap.Self.Name, snap.Self.HP, snap.Self.MaxHP)
	}
	if snap.Opponent != nil {
		pterm.Info.Printfln("%s: %d/%d HP", snap.Opponent.Name, snap.Opponent.HP, snap.Opponent.MaxHP)
	}
	turn := "their turn"
	if snap.MyTurn {
		turn = "your turn"
	}
	pterm.Info.Printfln("Phase: %s (%s). Boosts left: %d attack, %d defense.",
		snap.Phase, turn, snap.AttackBoosts, snap.DefenseBoosts)
}
