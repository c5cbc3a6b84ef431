// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"time"

	"github.com/Thermoquad/rmsgstat/pkg/rmsg"
)

// pollInterval is how often request/reply commands poll for replies
const pollInterval = 5 * time.Millisecond

// openSession opens the configured connection and starts a session on it.
func openSession(role rmsg.Role) (*rmsg.Session, *connStream, string, error) {
	cfg, err := opts.protocolConfig(role, logger)
	if err != nil {
		return nil, nil, "", err
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return nil, nil, "", err
	}
	stream := newConnStream(conn)

	sess, err := rmsg.NewSession(stream, nil, cfg)
	if err != nil {
		stream.Close()
		return nil, nil, "", err
	}
	return sess, stream, connInfo, nil
}
