package bridge

import "errors"

var (
	errHandshakeTimeout  = errors.New("handshake not received")
	errHandshakeFirst    = errors.New("expected handshake first")
	errHandshakeIdentity = errors.New("missing session_id or user_id")
)
