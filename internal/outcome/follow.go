package outcome

import (
	"context"
	"fmt"
	"io"

	"github.com/hpcloud/tail"
)

// Follow streams step records appended to path after the call, until ctx is
// done. Lines that do not decode are passed to onErr when it is non-nil.
func Follow(ctx context.Context, path string, fn func(StepRecord), onErr func(error)) error {
	t, err := tail.TailFile(path, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: false,
		Poll:      true,
		Location:  &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd},
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to follow %s: %w", path, err)
	}
	defer func() {
		_ = t.Stop()
		t.Cleanup()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-t.Lines:
			if !ok {
				return t.Err()
			}
			if line.Err != nil {
				if onErr != nil {
					onErr(line.Err)
				}
				continue
			}
			if line.Text == "" {
				continue
			}
			rec, isRecord, err := ParseStepLine(line.Text)
			switch {
			case err != nil:
				if onErr != nil {
					onErr(err)
				}
			case isRecord:
				fn(rec)
			}
		}
	}
}
