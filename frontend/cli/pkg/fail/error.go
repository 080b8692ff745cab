package fail

import (
	"fmt"
	"strings"

	"github.com/corvid/threadview/frontend/cli/pkg/terminal"
)

// UserError wraps a failure with actionable guidance for the terminal.
type UserError struct {
	Cause       error
	UserMessage string
	Solutions   []string
	TechDetails string
}

func (e *UserError) Error() string {
	var msg strings.Builder

	msg.WriteString(fmt.Sprintf("%s %s\n\n", terminal.ErrorSymbol, e.UserMessage))

	if len(e.Solutions) > 0 {
		msg.WriteString(fmt.Sprintf("%s Try these solutions:\n", terminal.InfoSymbol))
		for i, solution := range e.Solutions {
			msg.WriteString(fmt.Sprintf("  %d. %s\n", i+1, solution))
		}
		msg.WriteString("\n")
	}

	if e.TechDetails != "" {
		msg.WriteString(fmt.Sprintf("Technical details: %s\n", e.TechDetails))
	}

	return msg.String()
}

func (e *UserError) Unwrap() error {
	return e.Cause
}

func NewConnectionError(address string, err error) *UserError {
	solutions := []string{
		"Check that the server is running: threadview serve",
		"Verify the address is correct and accessible",
	}
	if strings.Contains(err.Error(), "connection refused") {
		solutions = append([]string{"Wait a few seconds for the server to start, then try again"}, solutions...)
	}

	return &UserError{
		Cause:       err,
		UserMessage: fmt.Sprintf("Cannot connect to %s", address),
		Solutions:   solutions,
		TechDetails: err.Error(),
	}
}

func NewAddressInUseError(address string, err error) *UserError {
	return &UserError{
		Cause:       err,
		UserMessage: fmt.Sprintf("The address %s is already in use by another process", address),
		Solutions: []string{
			"Choose a different port in the config file or via flags",
			"Stop the process using this port",
		},
		TechDetails: err.Error(),
	}
}

// Enhance upgrades recognizable low-level errors to user errors; anything
// else passes through unchanged.
func Enhance(address string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*UserError); ok {
		return err
	}

	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "address already in use"):
		return NewAddressInUseError(address, err)
	case strings.Contains(errStr, "connection refused"),
		strings.Contains(errStr, "no such host"):
		return NewConnectionError(address, err)
	}
	return err
}
