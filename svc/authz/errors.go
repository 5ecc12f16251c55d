package authz

import "errors"

var ErrPermissionDenied = errors.New("permission denied")
