package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"

	"github.com/vovakirdan/wirechat-room/internal/client"
	"github.com/vovakirdan/wirechat-room/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

// run registers (or logs in) a throwaway account, sends one line and waits for
// the room to echo it back.
func run() error {
	server := flag.String("server", "http://localhost:8080", "server base URL")
	user := flag.String("user", "smoketest", "username")
	pass := flag.String("pass", "smoketest", "password")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	c := client.New(*server)
	if _, err := c.Register(ctx, *user, *pass); err != nil && !errors.Is(err, client.ErrUserExists) {
		return fmt.Errorf("register: %w", err)
	}
	token, err := c.Login(ctx, *user, *pass)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	conn, err := c.Dial(ctx, token)
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	if err := client.Send(ctx, conn, *text); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	for {
		f, err := client.Read(ctx, conn)
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		fmt.Println(client.Format(f))

		if f.Type == proto.OutboundTypeError {
			return fmt.Errorf("server error: %s", f.Error.Msg)
		}
		if f.Event == proto.EventMessage {
			return nil
		}
	}
}
