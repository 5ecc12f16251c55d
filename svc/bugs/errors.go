package bugs

import "errors"

var (
	ErrNotFound          = errors.New("bug report not found")
	ErrInvalidInput      = errors.New("invalid bug report input")
	ErrAssigneeNotOnTeam = errors.New("assignee is not a member of the report's team")
)
