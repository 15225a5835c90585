// Package qlconsole classifies Quake Live server console output and keeps a
// live roster of the players on the server.
//
// This package allows you to:
//   - Classify a block of console output into a closed set of kinds
//   - Extract typed fields (player records, server identity, cvars)
//   - Fold the results into a roster snapshot and publish deltas to sinks
//   - Follow a server's qconsole.log in real time
//
// # Basic Usage
//
// To classify a single block:
//
//	res := qlconsole.ClassifyAndExtract(`broadcast: print "Lucy connected\n"`, event.Ignored)
//	if res.Kind == event.PlayerConnected {
//	    fmt.Println(res.PlayerName)
//	}
//
// Responses to commands the caller issued should be classified with a hint
// naming the command, so that a players dump is not mistaken for a notice:
//
//	res := qlconsole.ClassifyAndExtract(dump, event.Players)
//
// To follow a server log and keep a roster:
//
//	w, err := qlconsole.NewWatcher(
//	    qlconsole.WithLogDir("/srv/ql/baseq3"),
//	    qlconsole.WithEngineOptions(qlconsole.WithSelfName("minqlx")),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Close()
//
//	results, errs, err := w.Watch(ctx)
//	...
//	snap := w.Engine().Projector().Current()
//
// # Sinks
//
// Every accepted roster mutation produces a [RosterDelta] that is published
// synchronously to the sinks added with [WithSink]. Use [ChannelSink] to
// hand deltas to another goroutine without blocking the projector.
//
// # Rule Tables
//
// Rules live in YAML and are compiled once at start-up. The built-in table
// covers the English console; see the [pattern] package to load a localized
// table.
//
// # Disclaimer
//
// This is an unofficial tool and is not affiliated with id Software.
package qlconsole
