package session

import (
	"context"
	"strings"
)

const (
	promptConfirm   = "⚠️ Are you sure you want to clear the entire database? Reply with \"yes\" to confirm."
	msgCleared      = "🗑️ The database has been cleared."
	msgNotConfirmed = "⚠️ Confirmation not received. The database was left untouched."
)

// Confirm guards a destructive action behind a literal confirmation token.
// Anything other than "yes" (case-insensitive) abandons the flow; there is no
// retry, the command has to be reissued.
type Confirm struct {
	UserID int64

	action func(ctx context.Context) error
	state  State
}

func NewConfirm(userID int64, action func(ctx context.Context) error) *Confirm {
	return &Confirm{
		UserID: userID,
		action: action,
		state:  StateAwaitingConfirmation,
	}
}

func (s *Confirm) Prompt() string { return promptConfirm }

func (s *Confirm) State() State { return s.state }

func (s *Confirm) Done() bool { return s.state.Terminal() }

func (s *Confirm) Advance(ctx context.Context, input string) (string, error) {
	if !strings.EqualFold(strings.TrimSpace(input), "yes") {
		s.state = StateAbandoned
		return msgNotConfirmed, nil
	}

	if err := s.action(ctx); err != nil {
		s.state = StateFailed
		return "", err
	}

	s.state = StateCommitted
	return msgCleared, nil
}
