// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package tcp implements Socket: one non-blocking TCP (or UDP) endpoint with
// fixed-size inbound and outbound arenas, a combined receive+send cycle and
// kernel receive timestamp extraction.
//
// A Socket is driven from a single goroutine. SendAndRecv performs one
// non-blocking receive, hands the received bytes to the receive callback
// synchronously, then attempts one non-blocking flush of pending outbound
// bytes. The inbound arena is cleared when SendAndRecv returns, so the
// callback must consume everything it needs before returning.
package tcp
