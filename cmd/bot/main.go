package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"blec.dev/internal/protocol"
)

func main() {
	var (
		url    = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name   = flag.String("name", "bot", "player name")
		ox     = flag.Int("x", 0, "circuit origin x")
		oy     = flag.Int("y", 0, "circuit origin y")
		oz     = flag.Int("z", 0, "circuit origin z")
		toggle = flag.Duration("toggle", 2*time.Second, "switch toggle / button press interval")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		Name:            *name,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	c := newCircuit([3]int{*ox, *oy, *oz})
	msgs := make(chan []byte, 64)
	go func() {
		defer close(msgs)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			msgs <- msg
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	ticker := time.NewTicker(*toggle)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := send(conn, c.interact()); err != nil {
				logger.Printf("send ACT: %v", err)
				return
			}
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			handle(conn, logger, c, msg)
		}
	}
}

func handle(conn *websocket.Conn, logger *log.Logger, c *circuit, msg []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return
	}
	switch base.Type {
	case protocol.TypeWelcome:
		var w protocol.WelcomeMsg
		if err := json.Unmarshal(msg, &w); err != nil {
			return
		}
		logger.Printf("WELCOME session_id=%s tick=%d tick_rate=%d", w.SessionID, w.Tick, w.WorldParams.TickRateHz)
		if err := send(conn, c.build()); err != nil {
			logger.Printf("send ACT: %v", err)
		}

	case protocol.TypeTick:
		var t protocol.TickMsg
		if err := json.Unmarshal(msg, &t); err != nil {
			return
		}
		for _, e := range t.Events {
			if ok, _ := e["ok"].(bool); !ok {
				logger.Printf("tick=%d action %v failed: %v %v", t.Tick, e["ref"], e["code"], e["message"])
			}
		}
		if len(t.Chunks) > 0 {
			solid, err := c.loadChunks(t.Chunks)
			if err != nil {
				logger.Printf("tick=%d bad chunk data: %v", t.Tick, err)
			} else {
				logger.Printf("tick=%d received %d chunks, %d blocks", t.Tick, len(t.Chunks), solid)
			}
		}
		if lit, seen := c.observe(t.Changes); seen {
			logger.Printf("tick=%d lights on=%d/%d", t.Tick, lit, len(c.lights))
		}

	case protocol.TypeError:
		var e protocol.ErrorMsg
		if err := json.Unmarshal(msg, &e); err == nil {
			logger.Printf("ERROR %s: %s", e.Code, e.Message)
		}
	}
}

func send(conn *websocket.Conn, actions []protocol.Action) error {
	if len(actions) == 0 {
		return nil
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteJSON(protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		Actions:         actions,
	})
}
