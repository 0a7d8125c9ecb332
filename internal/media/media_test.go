package media

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedAcquirer struct {
	results []error
	calls   []Options
}

func (s *scriptedAcquirer) Acquire(_ context.Context, opts Options) error {
	s.calls = append(s.calls, opts)
	err := s.results[0]
	s.results = s.results[1:]
	return err
}

func TestAcquireGrantedFirstTime(t *testing.T) {
	a := &scriptedAcquirer{results: []error{nil}}

	got, err := Acquire(context.Background(), a, Default, Fallback, nil)
	require.NoError(t, err)
	assert.Equal(t, Default, got)
	assert.Len(t, a.calls, 1)
}

func TestAcquireFallsBackOnce(t *testing.T) {
	a := &scriptedAcquirer{results: []error{ErrAccessDenied, nil}}

	got, err := Acquire(context.Background(), a, Default, Fallback, nil)
	require.NoError(t, err)
	assert.Equal(t, Fallback, got)
	assert.Equal(t, []Options{Default, Fallback}, a.calls)
}

func TestAcquireSecondDenialFails(t *testing.T) {
	a := &scriptedAcquirer{results: []error{ErrAccessDenied, ErrAccessDenied}}

	_, err := Acquire(context.Background(), a, Default, Fallback, nil)
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.Len(t, a.calls, 2)
}

func TestAcquireOtherErrorsDoNotFallBack(t *testing.T) {
	boom := errors.New("device busy")
	a := &scriptedAcquirer{results: []error{boom}}

	_, err := Acquire(context.Background(), a, Default, Fallback, nil)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, a.calls, 1)
}

func TestHeadless(t *testing.T) {
	ctx := context.Background()

	assert.ErrorIs(t, Headless{}.Acquire(ctx, Default), ErrAccessDenied)
	assert.ErrorIs(t, Headless{}.Acquire(ctx, Options{Screen: true}), ErrAccessDenied)
	assert.NoError(t, Headless{}.Acquire(ctx, Fallback))

	got, err := Acquire(ctx, Headless{}, Default, Fallback, nil)
	require.NoError(t, err)
	assert.Equal(t, Fallback, got)
}
