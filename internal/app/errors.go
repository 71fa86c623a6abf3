package service

import "errors"

var (
	// ErrNotStarted is returned by operations that need running components.
	ErrNotStarted = errors.New("service not started")
	// ErrDiscoveryDisabled is returned by RunDiscovery when no source is set.
	ErrDiscoveryDisabled = errors.New("discovery is not configured")
)
