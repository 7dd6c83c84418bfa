package cli

import (
	"fmt"
	"io"

	"github.com/grovetools/notifsync/errors"
)

// ErrorHandler provides user-friendly error messages
type ErrorHandler struct {
	Out     io.Writer
	Verbose bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(out io.Writer, verbose bool) *ErrorHandler {
	return &ErrorHandler{
		Out:     out,
		Verbose: verbose,
	}
}

// Handle prints a message for err based on its code and returns err.
func (h *ErrorHandler) Handle(err error) error {
	if err == nil {
		return nil
	}

	switch errors.GetCode(err) {
	case errors.ErrCodeConfigNotFound:
		fmt.Fprintf(h.Out, "Configuration not found. Create notifsync.yml or pass --config.\n")

	case errors.ErrCodeConfigInvalid, errors.ErrCodeConfigValidation:
		fmt.Fprintf(h.Out, "Invalid configuration: %v\n", err)
		fmt.Fprintf(h.Out, "Run 'notifsync config schema' to see the accepted keys.\n")

	case errors.ErrCodeNotAuthenticated, errors.ErrCodeUnauthorized:
		fmt.Fprintf(h.Out, "Not logged in or the session expired. Run 'notifsync login'.\n")

	case errors.ErrCodeRequestFailed:
		if syncErr, ok := err.(*errors.SyncError); ok {
			fmt.Fprintf(h.Out, "Server rejected the request (%v %v): status %v\n",
				syncErr.Details["method"], syncErr.Details["path"], syncErr.Details["status"])
		} else {
			fmt.Fprintf(h.Out, "Server rejected the request: %v\n", err)
		}

	case errors.ErrCodeCommandFailed:
		fmt.Fprintf(h.Out, "The server did not apply the change: %v\n", err)
		fmt.Fprintf(h.Out, "Local state was kept; run 'notifsync list' to see the server's view.\n")

	default:
		fmt.Fprintf(h.Out, "Error: %v\n", err)
	}

	if h.Verbose {
		if syncErr, ok := err.(*errors.SyncError); ok {
			fmt.Fprintf(h.Out, "\nError details:\n%s\n", syncErr.ToJSON())
		}
	}
	return err
}
