package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/coder/websocket"

	"github.com/vovakirdan/wirechat-room/internal/client"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	server := flag.String("server", "http://localhost:8080", "server base URL")
	user := flag.String("user", "", "username")
	pass := flag.String("pass", "", "password")
	register := flag.Bool("register", false, "register the account before logging in")
	flag.Parse()

	if *user == "" || *pass == "" {
		return errors.New("-user and -pass are required")
	}

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	c := client.New(*server)
	if *register {
		if _, err := c.Register(ctx, *user, *pass); err != nil && !errors.Is(err, client.ErrUserExists) {
			return fmt.Errorf("register: %w", err)
		}
	}
	token, err := c.Login(ctx, *user, *pass)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	conn, err := c.Dial(ctx, token)
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	fmt.Printf("Connected to %s as %s\n", *server, *user)
	fmt.Println("Type messages and press Enter to send. Admins can use /help. Ctrl+C to exit.")

	go func() {
		defer cancel()
		readLoop(ctx, conn)
	}()

	writeLoop(ctx, conn)

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		f, err := client.Read(ctx, conn)
		if err != nil {
			// Treat expected shutdowns quietly.
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			case websocket.StatusPolicyViolation:
				fmt.Println("disconnected by the server")
				return
			}
			log.Printf("read error: %v", err)
			return
		}
		fmt.Println(client.Format(f))
	}
}

func writeLoop(ctx context.Context, conn *websocket.Conn) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}
			if err := client.Send(ctx, conn, text); err != nil {
				log.Printf("send error: %v", err)
				return
			}
		}
	}
}
