package errs

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessageNamesStage(t *testing.T) {
	err := Wrap(io.ErrUnexpectedEOF, SourceUnavailable, StageLoad, "read data.csv")
	assert.Equal(t, "load: source_unavailable: read data.csv: unexpected EOF", err.Error())
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestKindSurvivesWrapping(t *testing.T) {
	base := Newf(InvalidParameter, StageAnalysis, "k must be >= 2, got %d", 1)
	wrapped := fmt.Errorf("cluster: %w", base)

	require.True(t, IsKind(wrapped, InvalidParameter))
	assert.False(t, IsKind(wrapped, InsufficientData))
	stage, ok := StageOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, StageAnalysis, stage)

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, SchemaMismatch, StageLoad, "x"))
}

func TestWithDetail(t *testing.T) {
	e := New(SchemaMismatch, StageLoad, "missing columns").WithDetail("columns", []string{"DATE"})
	assert.Equal(t, []string{"DATE"}, e.Details["columns"])
}
