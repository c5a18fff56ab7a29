package fetcher

import (
	"context"
	"io"

	"github.com/rotisserie/eris"
)

// RowSource yields positional records until io.EOF.
type RowSource interface {
	Read() (Record, error)
}

// StreamRecords reads src on a goroutine and sends records to a channel.
// Caller must consume the returned record channel or cancel ctx. Errors are
// sent on the error channel. Both channels are closed when processing completes.
func StreamRecords(ctx context.Context, src RowSource) (<-chan Record, <-chan error) {
	recCh := make(chan Record, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(recCh)
		defer close(errCh)

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "stream: context cancelled")
				return
			}

			rec, err := src.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "stream: read record")
				return
			}

			select {
			case recCh <- rec:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "stream: context cancelled")
				return
			}
		}
	}()

	return recCh, errCh
}
