package domain

import "bytes"

// Control tokens exchanged in-band on session links. These are literal
// byte strings and must match exactly between producer and consumer.
var (
	PingMessage       = []byte("__AKITA_ADS_PING__")
	PongMessage       = []byte("__AKITA_ADS_PONG__")
	MaxClientsMessage = []byte("MAX_CLIENTS_REACHED")
)

func IsPing(msg []byte) bool       { return bytes.Equal(msg, PingMessage) }
func IsPong(msg []byte) bool       { return bytes.Equal(msg, PongMessage) }
func IsMaxClients(msg []byte) bool { return bytes.Equal(msg, MaxClientsMessage) }
