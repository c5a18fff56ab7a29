package fetcher

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestStreamRecords(t *testing.T) {
	tr, err := NewTextReader(strings.NewReader("a,b\n1,2\n3,4\n"), EncodingUTF8)
	require.NoError(t, err)

	recCh, errCh := StreamRecords(context.Background(), NewDelimitedReader(tr, DelimitedOptions{Delimiter: ','}))
	var got [][]string
	for rec := range recCh {
		got = append(got, rec.Fields)
	}
	require.NoError(t, <-errCh)
	assert.Equal(t, [][]string{{"a", "b"}, {"1", "2"}, {"3", "4"}}, got)
}

func TestStreamRecords_CancelDoesNotLeak(t *testing.T) {
	// Idle keep-alive connections from the HTTP tests may still be closing.
	defer goleak.VerifyNone(t,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)

	input := strings.Repeat("1,2\n", 10_000)
	tr, err := NewTextReader(strings.NewReader(input), EncodingUTF8)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	recCh, errCh := StreamRecords(ctx, NewDelimitedReader(tr, DelimitedOptions{Delimiter: ','}))
	<-recCh
	cancel()

	for range recCh {
	}
	err = <-errCh
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
