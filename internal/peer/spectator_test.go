package peer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pokeduel/internal/protocol"
)

func attachSpectator(t *testing.T, host *Host, name string, sink EventSink) (*Spectator, error) {
	t.Helper()
	spec, err := NewSpectator(host.LocalAddr().String(), name, sink, nil, quickOpts)
	require.NoError(t, err)
	t.Cleanup(func() { spec.Close() })
	spec.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return spec, spec.Attach(ctx)
}

func TestObserverSeesTheBattle(t *testing.T) {
	dex := duelDex(t)
	host, _ := connectedPair(t, dex, "Hammer", "Glass", newCollectSink(), newCollectSink())

	specSink := newCollectSink()
	_, err := attachSpectator(t, host, "oak", specSink)
	require.NoError(t, err)
	assert.True(t, host.Snapshot().ObserverAttached)

	require.NoError(t, host.Attack("Blizzard"))

	select {
	case result := <-specSink.ended:
		assert.Equal(t, "Hammer", result[0])
		assert.Equal(t, "Glass", result[1])
	case <-time.After(5 * time.Second):
		t.Fatal("observer never saw the battle end")
	}

	specSink.mu.Lock()
	defer specSink.mu.Unlock()
	assert.NotEmpty(t, specSink.lines, "observer saw no battle narration")
}

func TestSecondObserverIsExplicitlyRejected(t *testing.T) {
	dex := duelDex(t)
	host, _ := connectedPair(t, dex, "Hammer", "Tank", newCollectSink(), newCollectSink())

	_, err := attachSpectator(t, host, "oak", NopSink{})
	require.NoError(t, err)

	_, err = attachSpectator(t, host, "elm", NopSink{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refused")
}

func TestInboundGameOverReachesObserverPromptly(t *testing.T) {
	dex := duelDex(t)
	host, joiner := connectedPair(t, dex, "Hammer", "Tank", newCollectSink(), newCollectSink())

	specSink := newCollectSink()
	_, err := attachSpectator(t, host, "oak", specSink)
	require.NoError(t, err)

	// The counterpart decides the battle; the host only relays the result.
	start := time.Now()
	require.NoError(t, joiner.channel.Send(protocol.NewGameOver("Tank", "Hammer"), host.LocalAddr()))

	select {
	case result := <-specSink.ended:
		assert.Equal(t, "Tank", result[0])
	case <-time.After(5 * time.Second):
		t.Fatal("observer never saw the battle end")
	}
	select {
	case <-host.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("host session did not close")
	}
	// The relay lands in one round trip instead of burning the retry budget.
	assert.Less(t, time.Since(start), quickOpts.AckTimeout,
		"game over relay stalled behind the receive loop")
}

func TestObserverFeedKeepsChatOrder(t *testing.T) {
	dex := duelDex(t)
	host, joiner := connectedPair(t, dex, "Hammer", "Tank", newCollectSink(), newCollectSink())

	specSink := newCollectSink()
	_, err := attachSpectator(t, host, "oak", specSink)
	require.NoError(t, err)

	require.NoError(t, joiner.SendChat("one"))
	require.NoError(t, joiner.SendChat("two"))
	require.NoError(t, joiner.SendChat("three"))

	require.Eventually(t, func() bool {
		return specSink.chatCount() == 3
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, []string{"brock: one", "brock: two", "brock: three"}, specSink.chatLines())
}

func TestObserverChatReachesTheHost(t *testing.T) {
	dex := duelDex(t)
	hostSink := newCollectSink()
	host, _ := connectedPair(t, dex, "Hammer", "Tank", hostSink, newCollectSink())

	spec, err := attachSpectator(t, host, "oak", NopSink{})
	require.NoError(t, err)

	require.NoError(t, spec.SendChat("what a match"))
	require.Eventually(t, func() bool {
		return hostSink.chatCount() == 1
	}, 5*time.Second, 20*time.Millisecond)
}
