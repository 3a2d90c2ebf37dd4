package logtail

import (
	"context"
	"fmt"
	"io"

	"github.com/nxadm/tail"
)

// Line is a single followed line.
type Line struct {
	Text string
	Err  error
}

// Follow streams lines appended to path until ctx is cancelled. Rotated or
// recreated files are reopened. When fromStart is false only lines written
// after the call are delivered.
func Follow(ctx context.Context, path string, fromStart bool) (<-chan Line, error) {
	cfg := tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: true,
		Poll:      true,
		Logger:    tail.DiscardingLogger,
	}
	if !fromStart {
		cfg.Location = &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd}
	}
	t, err := tail.TailFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("follow log: %w", err)
	}

	out := make(chan Line, 256)
	go func() {
		defer close(out)
		defer t.Cleanup()
		for {
			select {
			case <-ctx.Done():
				_ = t.Stop()
				return
			case l, ok := <-t.Lines:
				if !ok {
					return
				}
				line := Line{Text: l.Text, Err: l.Err}
				select {
				case out <- line:
				case <-ctx.Done():
					_ = t.Stop()
					return
				}
			}
		}
	}()
	return out, nil
}
