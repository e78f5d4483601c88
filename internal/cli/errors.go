package cli

import "errors"

var (
	errUnknownBackend  = errors.New("unknown store backend (want \"file\" or \"badger\")")
	errFlagRequiresArg = errors.New("flag requires an argument")
	errFileRequired    = errors.New("file argument required")
	errLineRequired    = errors.New("--line is required")
	errInvalidLine     = errors.New("--line must be a positive integer")
	errLineOutOfRange  = errors.New("line is beyond the end of the file")
	errTaskIDRequired  = errors.New("task id required")
	errInvalidTaskID   = errors.New("task id may only contain letters, digits, underscores, and hyphens")
	errTokenNotSet     = errors.New("no API token configured (set api_token in config or $CLICKUP_TOKEN)")
	errMarkerExists    = errors.New("line already carries a task marker")
	errNoMarkerOnLine  = errors.New("no task marker on that line")
	errNoReferenceAt   = errors.New("no stored reference at that position")
)
