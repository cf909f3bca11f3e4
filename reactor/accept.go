// File: reactor/accept.go
// Author: momentics <momentics@gmail.com>

package reactor

import "errors"

// errNoPendingConn reports an empty accept backlog.
var errNoPendingConn = errors.New("no pending connection")
