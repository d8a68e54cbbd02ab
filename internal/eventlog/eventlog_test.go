package eventlog

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryString(t *testing.T) {
	t.Parallel()
	tests := []struct {
		e    Entry
		want string
	}{
		{Entry{1700000000123, ModeSwitch, "reading -> skimming"}, "1700000000123 MODE_SWITCH: reading -> skimming"},
		{Entry{5, Warning, "two\nlines"}, "5 WARNING: two lines"},
		{Entry{0, Filename, ""}, "0 FILENAME: "},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.e.String())
	}
}

func TestParseLine(t *testing.T) {
	t.Parallel()
	e, err := ParseLine("183474646 SACCADE: read_forward cs=3.00 ls=0.10: ok\n")
	require.NoError(t, err)
	assert.Equal(t, Entry{TimestampMs: 183474646, Tag: Saccade, Message: "read_forward cs=3.00 ls=0.10: ok"}, e)

	for _, bad := range []string{
		"",
		"nospace",
		"abc FIXATION: x",
		"12 FIXATION x",
		"12 BLINK: x",
	} {
		_, err := ParseLine(bad)
		assert.True(t, errors.Is(err, ErrMalformedLine), "line %q: %v", bad, err)
	}
}

func TestTagsRoundTrip(t *testing.T) {
	t.Parallel()
	for tag := Fixation; tag <= Filename; tag++ {
		got, err := ParseTag(tag.String())
		require.NoError(t, err)
		assert.Equal(t, tag, got)

		line := Entry{TimestampMs: 42, Tag: tag, Message: "m"}.String()
		e, err := ParseLine(line)
		require.NoError(t, err)
		assert.Equal(t, tag, e.Tag)
	}
	assert.Equal(t, "TAG(99)", Tag(99).String())
}

func TestWriterAndRead(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.OnEvent(Entry{TimestampMs: 1, Tag: Event, Message: "task start"})
	require.NoError(t, w.Write(Entry{TimestampMs: 2, Tag: Page, Message: "3"}))
	buf.WriteString("garbage line\n\n")
	require.NoError(t, w.Write(Entry{TimestampMs: 3, Tag: Question, Message: "q1 answer=b"}))
	require.NoError(t, w.Close())

	var got []Entry
	skipped, err := Read(strings.NewReader(buf.String()), func(e Entry) error {
		got = append(got, e)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	require.Len(t, got, 3)
	assert.Equal(t, Question, got[2].Tag)
	assert.NoError(t, w.Err())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriterKeepsFirstError(t *testing.T) {
	t.Parallel()
	w := NewWriter(failingWriter{})
	assert.Error(t, w.Write(Entry{Tag: Event}))
	assert.EqualError(t, w.Err(), "disk full")
}

func TestFileWriter(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "session.log")
	w := NewFileWriter(FileConfig{Path: path, MaxSizeMB: 1})
	require.NoError(t, w.Write(Entry{TimestampMs: 7, Tag: Scroll, Message: "delta=400"}))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "7 SCROLL: delta=400\n", string(data))
}
