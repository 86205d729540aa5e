package stun

import "errors"

var (
	ErrNoServers    = errors.New("stun: no servers configured")
	ErrNoResponse   = errors.New("stun: no response from any server")
	ErrBadResponse  = errors.New("stun: response missing XOR-MAPPED-ADDRESS")
)
