package ws

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// ConnInfo describes one websocket connection. UserID is 0 for
// connections whose handshake credential could not be verified.
type ConnInfo struct {
	ConnID      string
	UserID      int64
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

// Anonymous reports whether the connection carries no verified identity.
func (i ConnInfo) Anonymous() bool {
	return i.UserID == 0
}

func newConnID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}
