package main

import "time"

// shutdownTimeout bounds how long serve waits for the ambient HTTP
// servers (metrics, websocket) to drain connections on SIGINT/SIGTERM.
const shutdownTimeout = 5 * time.Second
