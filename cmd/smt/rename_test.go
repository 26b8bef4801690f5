package smt

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/edgeflare/smt/pkg/pipeline/converter"
	"github.com/edgeflare/smt/pkg/pipeline/transform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestRenameStream(t *testing.T) {
	fn, err := transform.PatternRenameValue(`_v[0-9]+$`, ``, zaptest.NewLogger(t))
	require.NoError(t, err)

	in := strings.Join([]string{
		`{"topic":"users","partition":1,"key":"u1","value":{"id":1,"email_v2":"a@b.c","name":"A"}}`,
		``,
		`{"topic":"users","key":"u2","value":null}`,
	}, "\n")

	var out bytes.Buffer
	require.NoError(t, renameStream(strings.NewReader(in), &out, fn, converter.NewRecordConverter(false)))

	assert.Equal(t,
		`{"topic":"users","partition":1,"key":"u1","value":{"id":1,"email":"a@b.c","name":"A"}}`+"\n"+
			`{"topic":"users","key":"u2","value":null}`+"\n",
		out.String())
}

func TestRenameStreamSchemaKey(t *testing.T) {
	fn, err := transform.PatternRenameKey(`^(.*)$`, `key_$1`, nil)
	require.NoError(t, err)

	in := `{"topic":"t","key":{"schema":{"type":"struct","fields":[{"field":"id","type":"int32"}],"optional":false},"payload":{"id":7}},"value":null}`

	var out bytes.Buffer
	require.NoError(t, renameStream(strings.NewReader(in), &out, fn, converter.NewRecordConverter(true)))
	assert.Contains(t, out.String(), `"payload":{"key_id":7}`)
	assert.Contains(t, out.String(), `"field":"key_id"`)
}

func TestRenameStreamReportsLine(t *testing.T) {
	fn, err := transform.PatternRenameValue(`a`, `b`, nil)
	require.NoError(t, err)

	in := `{"topic":"t","value":{"a":1}}` + "\n" + `{"value":{}}`
	var out bytes.Buffer
	err = renameStream(strings.NewReader(in), &out, fn, converter.NewRecordConverter(false))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

type failingWriter struct {
	writes int
	err    error
}

func (w *failingWriter) Write(p []byte) (int, error) {
	w.writes++
	return 0, w.err
}

func TestRenameStreamWriteError(t *testing.T) {
	fn, err := transform.PatternRenameValue(`^(.*)$`, `x_$1`, nil)
	require.NoError(t, err)

	// each record is larger than the output buffer so the first Write reaches the writer
	big := strings.Repeat("a", 8192)
	line := `{"topic":"t","value":{"name":"` + big + `"}}`
	in := strings.Join([]string{line, line, line}, "\n")

	w := &failingWriter{err: errors.New("disk full")}
	err = renameStream(strings.NewReader(in), w, fn, converter.NewRecordConverter(false))
	require.Error(t, err)
	assert.ErrorIs(t, err, w.err)
	assert.Contains(t, err.Error(), "write line 1")
	assert.Equal(t, 1, w.writes)
}
