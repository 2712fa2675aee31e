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
	"syscall"
	"time"

	"github.com/felipemacedo1/go-msg-wss-app/internal/archive"
	"github.com/felipemacedo1/go-msg-wss-app/internal/auth"
	"github.com/felipemacedo1/go-msg-wss-app/internal/config"
	"github.com/felipemacedo1/go-msg-wss-app/internal/gateway"
	"github.com/felipemacedo1/go-msg-wss-app/internal/models"
	"github.com/felipemacedo1/go-msg-wss-app/internal/observability"
	"github.com/felipemacedo1/go-msg-wss-app/internal/rabbitmq"
	"github.com/felipemacedo1/go-msg-wss-app/internal/session"
	"github.com/felipemacedo1/go-msg-wss-app/internal/status"
	"github.com/felipemacedo1/go-msg-wss-app/internal/telemetry"
	"github.com/felipemacedo1/go-msg-wss-app/internal/ws"
)

func main() {
	cfg := config.Load()

	var (
		nickname   = flag.String("nickname", cfg.Nickname, "display nickname used for login")
		listRooms  = flag.Bool("list", false, "list rooms and exit")
		createRoom = flag.String("create", "", "create a room with the given theme and exit")
		roomID     = flag.String("room", "", "open a live session on the given room")
	)
	flag.Parse()

	ctx := context.Background()

	shutdownTracing, err := observability.InitTracing(ctx, os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"), cfg.Environment)
	if err != nil {
		log.Printf("tracing disabled: %v", err)
	} else {
		defer func() {
			c, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			_ = shutdownTracing(c)
		}()
	}

	sess, err := auth.Login(ctx, *nickname)
	if err != nil {
		log.Fatalf("login failed: %v", err)
	}

	gw := gateway.NewClient(cfg.APIBaseURL, sess)

	switch {
	case *listRooms:
		rooms, err := gw.ListRooms(ctx)
		if err != nil {
			log.Fatalf("list rooms: %v", err)
		}
		for _, room := range rooms {
			fmt.Printf("%s\t%s\n", room.ID, room.Theme)
		}
		return

	case *createRoom != "":
		room, err := gw.CreateRoom(ctx, *createRoom)
		if err != nil {
			log.Fatalf("create room: %v", err)
		}
		fmt.Printf("created room %s (%s)\n", room.ID, room.Theme)
		return

	case *roomID != "":
		runSession(ctx, cfg, sess, gw, *roomID)
		return
	}

	flag.Usage()
	os.Exit(2)
}

func runSession(ctx context.Context, cfg config.Config, sess auth.Session, gw *gateway.Client, roomID string) {
	room, err := gw.GetRoom(ctx, roomID)
	if err != nil {
		log.Fatalf("get room: %v", err)
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	log.Printf("event mirror mode=%s", rabbitmq.PublisherMode(publisher))

	store, err := archive.NewStore(cfg.ArchiveDSN)
	if err != nil {
		log.Fatalf("archive: %v", err)
	}
	defer store.Close()

	emitter := telemetry.NewAuditEmitter(publisher, "audit.sessions", "go-msg-wss-app", cfg.Environment)

	rendered := map[string]bool{}
	s := session.New(roomID, cfg.SubscribeURL(roomID), gw, session.Options{
		Policy: ws.ReconnectPolicy{
			Delay:       cfg.ReconnectDelay,
			MaxAttempts: cfg.ReconnectMaxAttempts,
		},
		OnChange: func(msgs []models.Message) {
			printNew(msgs, sess, rendered)
		},
		OnError: func(err error) {
			if errors.Is(err, session.ErrLiveFeedLost) {
				log.Printf("live updates lost, rejoin the room to resubscribe: %v", err)
				return
			}
			log.Printf("could not load messages, retry with -room again: %v", err)
		},
		Mirror:   publisher,
		Archive:  store,
		Audit:    emitter,
		Nickname: sess.Nickname,
	})
	s.Start(ctx)
	defer s.Close()

	router := status.NewRouter(func() []session.Info {
		return []session.Info{s.Info()}
	})
	go func() {
		if err := router.Run(cfg.StatusAddr); err != nil {
			log.Printf("status server stopped: %v", err)
		}
	}()

	fmt.Printf("joined %q as %s. type a message and press enter, ctrl+c to leave\n", room.Theme, sess.Nickname)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	lines := readLines()
	for {
		select {
		case <-stop:
			fmt.Println("\nleaving room")
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if line == "" {
				continue
			}
			if _, err := gw.SendMessage(ctx, roomID, line); err != nil {
				log.Printf("send failed, message not delivered: %v", err)
			}
		}
	}
}

// printNew renders messages not yet seen, with date separators between days.
func printNew(msgs []models.Message, sess auth.Session, rendered map[string]bool) {
	for i, m := range msgs {
		if rendered[m.ID] {
			continue
		}
		rendered[m.ID] = true

		if models.NeedsDateSeparator(msgs, i) {
			fmt.Printf("--- %s ---\n", m.CreatedAt.Format("Mon, 02 Jan 2006"))
		}

		author := m.AuthorName
		if sess.Owns(m) {
			author = "me"
		}
		suffix := ""
		if m.ReactionCount > 0 {
			suffix = fmt.Sprintf(" [+%d]", m.ReactionCount)
		}
		if m.Answered {
			suffix += " (answered)"
		}
		fmt.Printf("%s %s: %s%s\n", m.CreatedAt.Format("15:04"), author, m.Body, suffix)
	}
}

func readLines() <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			out <- scanner.Text()
		}
	}()
	return out
}
