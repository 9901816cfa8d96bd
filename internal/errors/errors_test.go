package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"codeberg.org/mutker/pulse/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactoryMessages(t *testing.T) {
	f := errors.New()

	err := f.New(errors.ErrProbeTimeout)
	assert.Equal(t, "Health probe timed out (probe_timeout)", err.Error())

	err = f.WithMessage(errors.ErrInvalidProbe, "weight must be between 1 and 10")
	assert.Equal(t, "weight must be between 1 and 10 (invalid_probe)", err.Error())

	wrapped := f.Wrap(errors.ErrCollectionFailed, stderrors.New("boom"))
	assert.Contains(t, wrapped.Error(), "boom")
	assert.Equal(t, errors.ErrCollectionFailed, wrapped.Code())
}

func TestCodeSurvivesWrapping(t *testing.T) {
	f := errors.New()
	base := f.New(errors.ErrUnsupportedFormat)
	outer := fmt.Errorf("exporting: %w", base)

	code, ok := errors.CodeOf(outer)
	require.True(t, ok)
	assert.Equal(t, errors.ErrUnsupportedFormat, code)
	assert.True(t, errors.HasCode(outer, errors.ErrUnsupportedFormat))
	assert.True(t, errors.Is(outer, f.New(errors.ErrUnsupportedFormat)))
	assert.False(t, errors.Is(outer, f.New(errors.ErrProbeFailed)))
}

func TestUnwrapReachesCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := errors.New().Wrap(errors.ErrExportFailed, cause)

	assert.True(t, errors.Is(err, cause))
	_, ok := errors.CodeOf(cause)
	assert.False(t, ok)
}

func TestWithDataKeepsCode(t *testing.T) {
	err := errors.New().New(errors.ErrInvalidConfig).WithData("collection_interval")
	assert.Equal(t, errors.ErrInvalidConfig, err.Code())
	assert.Equal(t, "collection_interval", err.GetData())
}
