// internal/handlers/ws_codes.go
package handlers

// Application close codes for the tic-tac-toe socket.
const (
	BadSubprotocolError = 3000 // Client connected without the ttt subprotocol.
	SlowConsumerError   = 3001 // Outbound buffer could not be flushed in time.
)
