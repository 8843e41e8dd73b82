// Command ws_smoke connects to a running server with a JWT and prints
// every event pushed on the socket. Useful for eyeballing the event
// stream while poking the HTTP API from another terminal.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/chattu-app/chattu-server/internal/proto"
)

func main() {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	token := flag.String("token", "", "JWT obtained from /api/login")
	timeout := flag.Duration("timeout", 30*time.Second, "total timeout for the run")
	flag.Parse()

	if *token == "" {
		log.Fatal("missing -token, log in via POST /api/login first")
	}

	target, err := url.Parse(*addr)
	if err != nil {
		log.Fatalf("parse addr: %v", err)
	}
	q := target.Query()
	q.Set("token", *token)
	target.RawQuery = q.Encode()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, target.String(), nil)
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypePing}); err != nil {
		log.Fatalf("ping: %v", err)
	}

	for {
		var outbound struct {
			Type  string          `json:"type"`
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			log.Fatalf("read: %v", err)
		}

		switch outbound.Type {
		case proto.OutboundTypePong:
			fmt.Println("pong")
		case proto.OutboundTypeEvent:
			fmt.Printf("event=%s data=%s\n", outbound.Event, string(outbound.Data))
		default:
			fmt.Printf("type=%s data=%s\n", outbound.Type, string(outbound.Data))
		}
	}
}
