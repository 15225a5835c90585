package qlconsole_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qlconsole/qlconsole-go/pkg/qlconsole"
	"github.com/qlconsole/qlconsole-go/pkg/qlconsole/event"
	"github.com/qlconsole/qlconsole-go/pkg/qlconsole/pattern"
)

const transcript = `]\players
 0   [CLAN] Klesk
 1   Lucy
 8 * syncore
Sarge connected
]\configstrings
529: n\Klesk\t\2\rp\1
530: n\Lucy\t\1\rp\0
`

func newEngine(t *testing.T, opts ...qlconsole.Option) *qlconsole.Engine {
	t.Helper()
	e, err := qlconsole.NewEngine(opts...)
	require.NoError(t, err)
	return e
}

func TestNewEngine_Defaults(t *testing.T) {
	e := newEngine(t)
	assert.Same(t, pattern.MustDefault(), e.Table())
	assert.NotNil(t, e.Projector())
}

func TestNewEngine_InvalidWorkers(t *testing.T) {
	_, err := qlconsole.NewEngine(qlconsole.WithWorkers(0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workers must be at least 1")
}

func TestEngine_ClassifyAndExtract(t *testing.T) {
	e := newEngine(t)

	res := e.ClassifyAndExtract(`print "Lucy connected`, event.Ignored)
	assert.Equal(t, event.PlayerConnected, res.Kind)
	assert.Equal(t, "Lucy", res.PlayerName)
	assert.Empty(t, res.Raw)

	// A hinted players dump with "connected" in a name stays a dump.
	res = e.ClassifyAndExtract(" 0   connected", event.Players)
	assert.Equal(t, event.Players, res.Kind)

	assert.Zero(t, e.Projector().Current().Generation, "classification does not project")
}

func TestEngine_IncludeRaw(t *testing.T) {
	e := newEngine(t, qlconsole.WithIncludeRaw(true))

	res := e.ClassifyAndExtract("Lucy ragequits", event.Ignored)
	assert.Equal(t, "Lucy ragequits", res.Raw)

	res = e.ClassifyAndExtract("chatter", event.Ignored)
	assert.Empty(t, res.Raw, "ignored results carry no raw text")
}

func TestEngine_Apply(t *testing.T) {
	e := newEngine(t)
	res := e.Apply(qlconsole.Block{Text: "Lucy connected"})
	assert.Equal(t, event.PlayerConnected, res.Kind)
	assert.Equal(t, 1, e.Projector().Current().Len())
}

func TestEngine_ProcessPreservesOrder(t *testing.T) {
	e := newEngine(t, qlconsole.WithWorkers(8))

	const n = 500
	in := make(chan qlconsole.Block)
	go func() {
		defer close(in)
		for i := 0; i < n; i++ {
			in <- qlconsole.Block{Seq: uint64(i + 1), Text: fmt.Sprintf("player%d connected", i)}
			if i%2 == 0 {
				in <- qlconsole.Block{Seq: uint64(i + 1), Text: fmt.Sprintf("player%d disconnected", i)}
			}
		}
	}()

	var seen []uint64
	err := e.ProcessFunc(context.Background(), in, func(b qlconsole.Block, res event.Result) {
		seen = append(seen, b.Seq)
	})
	require.NoError(t, err)
	assert.Len(t, seen, n+n/2)
	assert.IsNonDecreasing(t, seen)

	snap := e.Projector().Current()
	require.Len(t, snap.Pending, n/2)
	for i, pl := range snap.Pending {
		assert.Equal(t, fmt.Sprintf("player%d", 2*i+1), pl.Name)
	}
	assert.Equal(t, uint64(n+n/2), snap.Generation)
}

func TestEngine_ProcessCancelled(t *testing.T) {
	e := newEngine(t, qlconsole.WithWorkers(2))
	ctx, cancel := context.WithCancel(context.Background())

	in := make(chan qlconsole.Block)
	done := make(chan error, 1)
	go func() {
		done <- e.Process(ctx, in)
	}()

	in <- qlconsole.Block{Text: "Lucy connected"}
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Process did not return after cancel")
	}
}

func TestEngine_ProcessReader(t *testing.T) {
	e := newEngine(t, qlconsole.WithWorkers(4))

	var kinds []event.Kind
	err := e.ProcessReader(context.Background(), strings.NewReader(transcript), func(_ qlconsole.Block, res event.Result) {
		kinds = append(kinds, res.Kind)
	})
	require.NoError(t, err)
	assert.Equal(t, []event.Kind{event.Players, event.PlayerConnected, event.ConfigStrings}, kinds)

	snap := e.Projector().Current()
	assert.Equal(t, []event.Player{
		{ID: 0, Name: "Klesk", Team: event.TeamBlue, Ready: event.Ready},
		{ID: 1, Name: "Lucy", Team: event.TeamRed, Ready: event.NotReady},
		{ID: 8, Name: "syncore"},
		{ID: event.PendingID, Name: "Sarge"},
	}, snap.Roster())
}

func TestEngine_ProcessReaderCancelled(t *testing.T) {
	e := newEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := e.ProcessReader(ctx, strings.NewReader(transcript), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_ProcessReaderLongLine(t *testing.T) {
	e := newEngine(t)
	long := strings.Repeat("x", 1024*1024)

	err := e.ProcessReader(context.Background(), strings.NewReader(long+"\n"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading console output")
}

func TestClassifyAndExtract_Default(t *testing.T) {
	res := qlconsole.ClassifyAndExtract("529: n\\JoeJoe\\t\\3\\model\\mynx\\hmodel\\mynx", event.ConfigStrings)
	require.Equal(t, event.ConfigStrings, res.Kind)
	assert.Equal(t, []event.Player{{ID: 0, Name: "JoeJoe", Team: event.TeamSpectator}}, res.Players)

	res = qlconsole.ClassifyAndExtract("sv_gtid abc", event.ServerInfoID)
	assert.Equal(t, event.Ignored, res.Kind)
}

func TestEngine_IsNotice(t *testing.T) {
	e := newEngine(t)

	assert.True(t, e.IsNotice("Sarge connected", event.Ignored))
	assert.True(t, e.IsNotice("Sarge connected", event.Players))
	assert.False(t, e.IsNotice(" 1   connected", event.Players), "players row wins over the connect notice")
	assert.False(t, e.IsNotice(" 3   Bob connected", event.Players))
	assert.True(t, e.IsNotice(" 1   connected", event.Ignored))
	assert.False(t, e.IsNotice(" 0   Klesk", event.Ignored))
}

func TestEngine_ProcessReaderPlayerNamedConnected(t *testing.T) {
	e := newEngine(t, qlconsole.WithWorkers(2))

	var results []event.Result
	err := e.ProcessReader(context.Background(),
		strings.NewReader("]\\players\n 0   Klesk\n 1   connected\n 2   Sarge\nLucy connected\n"),
		func(_ qlconsole.Block, res event.Result) {
			results = append(results, res)
		})
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, event.Players, results[0].Kind)
	assert.Equal(t, []event.Player{
		{ID: 0, Name: "Klesk"},
		{ID: 1, Name: "connected"},
		{ID: 2, Name: "Sarge"},
	}, results[0].Players)
	assert.Equal(t, event.PlayerConnected, results[1].Kind)
	assert.Equal(t, "Lucy", results[1].PlayerName)

	snap := e.Projector().Current()
	assert.Len(t, snap.Players, 3)
	assert.Equal(t, []event.Player{{ID: event.PendingID, Name: "Lucy"}}, snap.Pending)
}

func TestClassifyAndExtract_BareConfigString(t *testing.T) {
	res := qlconsole.ClassifyAndExtract("n\\JoeJoe\\t\\3\\model\\mynx\\...", event.ConfigStrings)
	require.Equal(t, event.ConfigStrings, res.Kind)
	assert.Equal(t, "configstring_payload", res.Form)
	assert.Equal(t, []event.Player{{ID: event.PendingID, Name: "JoeJoe", Team: event.TeamSpectator}}, res.Players)
}
