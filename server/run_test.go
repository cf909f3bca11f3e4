// File: server/run_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/momentics/hioload-lowlat/api"
)

func TestFatal(t *testing.T) {
	exhausted := api.WrapError(api.ErrCodeResourceExhausted, "accept", api.ErrResourceExhausted)
	assert.False(t, fatal(exhausted), "descriptor exhaustion keeps the loop running")

	assert.True(t, fatal(api.WrapError(api.ErrCodeInternal, "poll", errors.New("epoll wait: bad fd"))))
	assert.True(t, fatal(api.WrapError(api.ErrCodeSetup, "accept", errors.New("invalid argument"))))
	assert.True(t, fatal(api.ErrNotListening))
}
