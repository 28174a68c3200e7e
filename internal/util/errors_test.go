package util_test

import (
	"errors"
	"fmt"
	"testing"

	"tentatek/internal/util"
)

func TestErrPublicSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("context: %w", util.ErrPublic("you are not part of this match"))

	var public util.ErrPublic
	if !errors.As(err, &public) {
		t.Fatal("expected to unwrap an ErrPublic")
	}
	if public.Error() != "you are not part of this match" {
		t.Errorf("unexpected message: %s", public)
	}
}

func TestConcatErrors(t *testing.T) {
	if err := util.ConcatErrors(nil); err != nil {
		t.Errorf("expected nil for no errors, got %s", err)
	}

	if err := util.ConcatErrors([]error{nil, nil}); err != nil {
		t.Errorf("expected nil for all-nil errors, got %s", err)
	}

	err := util.ConcatErrors([]error{
		errors.New("first"),
		nil,
		errors.New("second"),
	})
	if err == nil || err.Error() != "first; second" {
		t.Errorf(`expected "first; second", got %v`, err)
	}
}
