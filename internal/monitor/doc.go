// Package monitor aggregates tagged log events into per-script panel state.
//
// # Overview
//
// A Registry owns one runtime record per monitored worker script: the log
// file it writes, the byte offset reached so far, when it was registered,
// when an event was last applied, and the panels built from its events.
//
// # Poll Cycle
//
//	Poll(id)
//	  └─ logtail.ReadFrom(logFile, offset)
//	       └─ logline.Decode(line)        (non-matching lines dropped)
//	            ├─ '@' → progress.Extract → Panel.ApplyProgress
//	            └─ '#' → Panel.AppendLog  (HH:MM:SS, lower-case level)
//
// Panels named in the registration layout are created up front; any other
// panel name is created the first time an event mentions it. Panels of kind
// panel.KindSystem never receive events.
//
// Read failures never escape Poll. Permission errors and similar are logged
// and the tick produces nothing; an undecodable byte range is reported once
// through PollResult.Warning and the offset stays put until it decodes.
//
// # Liveness
//
// IsActive is re-evaluated on every call. A script is inactive when it is
// unknown, when its log file is gone, when no event was applied within the
// timeout, or when the file has not been modified within the timeout.
// Inactive scripts keep their state until Clear or ClearAll.
//
// # Concurrency
//
// The id → script map is guarded by an RWMutex and each script carries its
// own mutex, so PollAll can read several files at once while any single
// script is touched by one goroutine at a time. PollAll bounds concurrent
// reads with errgroup.SetLimit.
package monitor
