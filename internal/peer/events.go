package peer

// EventSink receives user-facing battle events. The CLI renders these with
// pterm; tests collect them in memory.
type EventSink interface {
	// BattleLine is one line of battle narration.
	BattleLine(text string)
	// ChatMessage is an inbound chat line, already flattened to text.
	ChatMessage(sender, text string)
	// BattleEnded fires once when a GAME_OVER is sent or received.
	BattleEnded(winner, loser string)
	// Terminated fires when the session dies for any non-battle reason.
	Terminated(reason string)
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) BattleLine(string)          {}
func (NopSink) ChatMessage(string, string) {}
func (NopSink) BattleEnded(string, string) {}
func (NopSink) Terminated(string)          {}
