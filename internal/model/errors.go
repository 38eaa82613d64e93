package model

import "errors"

var (
	// ErrWindowPassed reports a decision window whose end is already behind
	// "now"; the slot cannot be scheduled today.
	ErrWindowPassed = errors.New("decision window already passed")

	// ErrEmptyBank reports a message bank with no entries for the resolved arm.
	ErrEmptyBank = errors.New("no messages for arm")
)
