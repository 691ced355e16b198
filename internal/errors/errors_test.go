package errors_test

import (
	"fmt"
	"testing"

	"codeberg.org/mutker/chargectl/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	errFactory := errors.New()

	assert.Equal(t, "Invalid log level", errFactory.New(errors.ErrInvalidLogLevel).Error())
	assert.Equal(t, "custom", errFactory.WithMessage(errors.ErrInternal, "custom").Error())
	assert.Equal(t, "Invalid channel: 4", errFactory.WithData(errors.ErrInvalidChannel, 4).Error())
}

func TestWrapKeepsCause(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := errors.New().Wrap(errors.ErrInitJournal, cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, errors.ErrInitJournal, err.Code())
	assert.Contains(t, err.Error(), "disk full")
}

func TestCodeOf(t *testing.T) {
	inner := errors.New().New(errors.ErrTimeout)
	outer := fmt.Errorf("publish: %w", inner)

	assert.Equal(t, errors.ErrTimeout, errors.CodeOf(outer))
	assert.Equal(t, errors.ErrorCode(""), errors.CodeOf(fmt.Errorf("plain")))
}

func TestHasCode(t *testing.T) {
	errFactory := errors.New()
	err := errFactory.Wrap(errors.ErrInitApp, errFactory.New(errors.ErrOpenBoard))

	assert.True(t, errors.HasCode(err, errors.ErrInitApp))
	assert.True(t, errors.HasCode(err, errors.ErrOpenBoard))
	assert.False(t, errors.HasCode(err, errors.ErrTimeout))
}
