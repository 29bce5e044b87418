package transport

import (
	"bufio"
	"encoding/json"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lightsgoout/exchange-engine/internal/audit"
	"github.com/lightsgoout/exchange-engine/internal/coordinator"
	"github.com/lightsgoout/exchange-engine/internal/latency"
	"github.com/lightsgoout/exchange-engine/internal/productmanager"
	"github.com/lightsgoout/exchange-engine/internal/relationship"
	"github.com/lightsgoout/exchange-engine/internal/stp"
	"github.com/lightsgoout/exchange-engine/internal/topofbook"
	"github.com/lightsgoout/exchange-engine/internal/usermanager"
)

func startTestServer(t *testing.T) net.Listener {
	t.Helper()

	products := productmanager.New(nil)
	chain := audit.NewHashChain(audit.NewMemorySink())
	_, err := products.Register("AAPL", stp.Default, relationship.NewRegistry(), chain, topofbook.NewPublisher())
	require.NoError(t, err)

	users := usermanager.New()
	_, err = users.Register("alice123", "Alice")
	require.NoError(t, err)
	_, err = users.Register("bob_1234", "Bob")
	require.NoError(t, err)

	coord := coordinator.New(products, users, latency.NewMonitor(), nil)
	srv := NewServer(coord, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go srv.handleConn(conn)
		}
	}()
	return ln
}

func TestNDJSONOrderCrosses(t *testing.T) {
	ln := startTestServer(t)
	defer ln.Close()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	enc := json.NewEncoder(conn)
	scanner := bufio.NewScanner(conn)

	require.NoError(t, enc.Encode(request{
		Kind: "order", ID: "s1", User: "alice123", Instrument: "AAPL",
		Side: "SELL", Price: "100.00", Volume: 10, OrderType: "LIMIT",
	}))
	require.True(t, scanner.Scan())
	var resp1 response
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp1))
	assert.True(t, resp1.OK)

	require.NoError(t, enc.Encode(request{
		Kind: "order", ID: "b1", User: "bob_1234", Instrument: "AAPL",
		Side: "BUY", Price: "100.00", Volume: 10, OrderType: "LIMIT",
	}))
	require.True(t, scanner.Scan())
	var resp2 response
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp2))
	assert.True(t, resp2.OK)
	assert.Equal(t, 1, resp2.Trades)
}

func TestNDJSONMalformedJSON(t *testing.T) {
	ln := startTestServer(t)
	defer ln.Close()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("not json\n"))
	require.NoError(t, err)

	scanner := bufio.NewScanner(conn)
	require.True(t, scanner.Scan())
	var resp response
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp))
	assert.False(t, resp.OK)
}
