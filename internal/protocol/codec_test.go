package protocol

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncoderDecoder_Stream(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	require.NoError(t, enc.Send(ChannelStart, SearchRequest{SearchID: 7, RootPath: "/tmp/x", Query: "foo"}))
	require.NoError(t, enc.Send(ChannelCancel, nil))
	require.NoError(t, enc.Send(ChannelResult, SearchFileResult{
		SearchID: 7,
		FilePath: "/tmp/x/a.go",
		Matches:  []SearchMatch{{LineNumber: 3, LineText: "foo bar", MatchStart: 0, MatchLength: 3}},
	}))

	// Exactly one line per message.
	assert.Equal(t, 3, strings.Count(buf.String(), "\n"))

	dec := NewDecoder(&buf)

	env, err := dec.Decode()
	require.NoError(t, err)
	assert.Equal(t, ChannelStart, env.Channel)
	var req SearchRequest
	require.NoError(t, env.Decode(&req))
	assert.Equal(t, SearchID(7), req.SearchID)
	assert.Equal(t, "foo", req.Query)

	env, err = dec.Decode()
	require.NoError(t, err)
	assert.Equal(t, ChannelCancel, env.Channel)
	assert.Empty(t, env.Payload)

	env, err = dec.Decode()
	require.NoError(t, err)
	var res SearchFileResult
	require.NoError(t, env.Decode(&res))
	require.Len(t, res.Matches, 1)
	assert.Equal(t, 3, res.Matches[0].LineNumber)

	_, err = dec.Decode()
	assert.ErrorIs(t, err, io.EOF)
}

func TestEnvelope_JSONFieldNames(t *testing.T) {
	env, err := NewEnvelope(ChannelComplete, SearchComplete{SearchID: 1, TotalMatches: 2, TotalFiles: 1, FilesSearched: 9})
	require.NoError(t, err)
	assert.JSONEq(t, `{"searchId":1,"totalMatches":2,"totalFiles":1,"filesSearched":9}`, string(env.Payload))
}

func TestDecoder_MalformedLineDoesNotStopStream(t *testing.T) {
	input := "{not json}\n\n" + `{"channel":"search:cancel"}` + "\n"
	dec := NewDecoder(strings.NewReader(input))

	_, err := dec.Decode()
	require.ErrorIs(t, err, ErrMalformed)

	env, err := dec.Decode()
	require.NoError(t, err)
	assert.Equal(t, ChannelCancel, env.Channel)
}

func TestEnvelope_DecodeWithoutPayload(t *testing.T) {
	env := Envelope{Channel: ChannelProgress}
	var p SearchProgress
	assert.Error(t, env.Decode(&p))
}

func TestEncoder_ConcurrentWritesDoNotInterleave(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				_ = enc.Send(ChannelProgress, SearchProgress{SearchID: SearchID(id), FilesSearched: j})
			}
		}(i + 1)
	}
	wg.Wait()

	dec := NewDecoder(&buf)
	count := 0
	for {
		env, err := dec.Decode()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		var p SearchProgress
		require.NoError(t, env.Decode(&p))
		count++
	}
	assert.Equal(t, 500, count)
}

func TestDecoder_LargeEnvelope(t *testing.T) {
	matches := make([]SearchMatch, 40000)
	line := strings.Repeat("x", MaxLineTextLength)
	for i := range matches {
		matches[i] = SearchMatch{LineNumber: 1, LineText: line, MatchStart: i, MatchLength: 1}
	}

	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	require.NoError(t, enc.Send(ChannelResult, SearchFileResult{SearchID: 1, FilePath: "/big.js", Matches: matches}))
	require.NoError(t, enc.Send(ChannelComplete, SearchComplete{SearchID: 1, TotalMatches: len(matches), TotalFiles: 1, FilesSearched: 1}))
	require.Greater(t, buf.Len(), 16*1024*1024)

	dec := NewDecoder(&buf)
	env, err := dec.Decode()
	require.NoError(t, err)
	var res SearchFileResult
	require.NoError(t, env.Decode(&res))
	assert.Len(t, res.Matches, len(matches))

	env, err = dec.Decode()
	require.NoError(t, err)
	assert.Equal(t, ChannelComplete, env.Channel)
}

func TestDecoder_LastLineWithoutNewline(t *testing.T) {
	dec := NewDecoder(strings.NewReader(`{"channel":"search:cancel"}`))

	env, err := dec.Decode()
	require.NoError(t, err)
	assert.Equal(t, ChannelCancel, env.Channel)

	_, err = dec.Decode()
	assert.ErrorIs(t, err, io.EOF)
}
