package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/spf13/cobra"

	"github.com/edulink/classchat/internal/chat"
	"github.com/edulink/classchat/internal/proto"
	"github.com/edulink/classchat/internal/reconcile"
	"github.com/edulink/classchat/internal/store"
	"github.com/edulink/classchat/internal/utils"
)

// tail is a terminal client for one conversation. It drives the
// reconciliation engine over live push and change-feed deliveries plus
// its own sends, and reprints the converged view after every event.
func newTailCmd() *cobra.Command {
	var (
		server     string
		username   string
		password   string
		scopeKey   string
		echoWindow time.Duration
	)

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Follow one conversation; stdin lines are sent as messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := chat.ParseScopeKey(scopeKey)
			if err != nil {
				return err
			}
			return runTail(cmd.Context(), server, username, password, scope, echoWindow)
		},
	}

	cmd.Flags().StringVar(&server, "server", "http://localhost:8080", "server base URL")
	cmd.Flags().StringVar(&username, "user", "", "username")
	cmd.Flags().StringVar(&password, "password", "", "password")
	cmd.Flags().StringVar(&scopeKey, "scope", "", "scope key, e.g. dm:1:2 or class:3")
	cmd.Flags().DurationVar(&echoWindow, "echo-window", reconcile.DefaultEchoWindow,
		"how far back a push may claim a pending local echo")
	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("password")
	cmd.MarkFlagRequired("scope")
	return cmd
}

type loginReply struct {
	Token string `json:"token"`
	User  struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
	} `json:"user"`
}

type sendResult struct {
	tempID string
	scope  chat.Scope
	msg    chat.Message
	err    error
}

func runTail(ctx context.Context, server, username, password string, scope chat.Scope, echoWindow time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	me, err := login(ctx, server, username, password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	conn, err := dial(ctx, server, me.Token)
	if err != nil {
		return fmt.Errorf("connect push channel: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	joinData, _ := json.Marshal(proto.JoinData{Scope: scope.Key()})
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeJoin, Data: joinData}); err != nil {
		return fmt.Errorf("join scope: %w", err)
	}

	engine := reconcile.New(reconcile.WithEchoWindow(echoWindow))
	engine.SetViewing(scope)

	inboundCh := make(chan proto.Outbound, 32)
	go func() {
		defer close(inboundCh)
		for {
			var out proto.Outbound
			if err := wsjson.Read(ctx, conn, &out); err != nil {
				return
			}
			select {
			case inboundCh <- out:
			case <-ctx.Done():
				return
			}
		}
	}()

	lineCh := make(chan string)
	go func() {
		defer close(lineCh)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			select {
			case lineCh <- line:
			case <-ctx.Done():
				return
			}
		}
	}()

	resultCh := make(chan sendResult, 8)

	// Single event loop: every inbound event type becomes one typed
	// message into the engine, whatever order the channels race in.
	for {
		select {
		case out, ok := <-inboundCh:
			if !ok {
				return nil
			}
			if view, applied := applyOutbound(engine, out); applied {
				render(view)
			}
		case line, ok := <-lineCh:
			if !ok {
				return nil
			}
			echo := reconcile.Echo{
				TempID:     utils.NewEchoID(),
				Scope:      scope,
				SenderID:   me.User.ID,
				SenderName: me.User.Username,
				Body:       line,
				LocalTime:  time.Now(),
			}
			render(engine.Apply(reconcile.LocalEcho{Echo: echo}))
			go func() {
				msg, err := postMessage(ctx, server, me.Token, scope, line)
				resultCh <- sendResult{tempID: echo.TempID, scope: scope, msg: msg, err: err}
			}()
		case res := <-resultCh:
			if res.err != nil {
				fmt.Fprintf(os.Stderr, "send failed: %v\n", res.err)
				render(engine.Apply(reconcile.AppendFailed{TempID: res.tempID, EchoScope: res.scope}))
				continue
			}
			render(engine.Apply(reconcile.AppendAck{TempID: res.tempID, Message: res.msg}))
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func applyOutbound(engine *reconcile.Engine, out proto.Outbound) (reconcile.View, bool) {
	switch out.Event {
	case proto.EventNameMessage, proto.EventNameFeed:
		wire, err := decodeAs[proto.EventMessage](out.Data)
		if err != nil {
			return reconcile.View{}, false
		}
		msg, err := wireToMessage(wire)
		if err != nil {
			return reconcile.View{}, false
		}
		if out.Event == proto.EventNameFeed {
			return engine.Apply(reconcile.FeedMessage{Message: msg}), true
		}
		return engine.Apply(reconcile.PushMessage{Message: msg}), true
	case proto.EventNameHistory:
		hist, err := decodeAs[proto.EventHistory](out.Data)
		if err != nil {
			return reconcile.View{}, false
		}
		scope, err := chat.ParseScopeKey(hist.Scope)
		if err != nil {
			return reconcile.View{}, false
		}
		messages := make([]chat.Message, 0, len(hist.Messages))
		for _, wire := range hist.Messages {
			msg, convErr := wireToMessage(wire)
			if convErr != nil {
				continue
			}
			messages = append(messages, msg)
		}
		return engine.Apply(reconcile.HistoryLoaded{Scope: scope, Messages: messages}), true
	case proto.EventNamePresence:
		pres, err := decodeAs[proto.EventPresence](out.Data)
		if err == nil {
			state := "offline"
			if pres.Online {
				state = "online"
			}
			fmt.Fprintf(os.Stderr, "* %s is %s\n", pres.User, state)
		}
		return reconcile.View{}, false
	default:
		if out.Error != nil {
			fmt.Fprintf(os.Stderr, "! %s: %s\n", out.Error.Code, out.Error.Msg)
		}
		return reconcile.View{}, false
	}
}

func decodeAs[T any](data any) (T, error) {
	var out T
	raw, err := json.Marshal(data)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}

func wireToMessage(wire proto.EventMessage) (chat.Message, error) {
	scope, err := chat.ParseScopeKey(wire.Scope)
	if err != nil {
		return chat.Message{}, err
	}
	var attachment *store.Attachment
	if wire.Attachment != nil {
		attachment = &store.Attachment{
			URL:  wire.Attachment.URL,
			Kind: store.MediaKind(wire.Attachment.Kind),
		}
	}
	return chat.Message{
		ID:         wire.ID,
		Scope:      scope,
		SenderID:   wire.SenderID,
		SenderName: wire.Sender,
		Body:       wire.Body,
		Attachment: attachment,
		CreatedAt:  time.UnixMilli(wire.TS).UTC(),
	}, nil
}

func render(view reconcile.View) {
	fmt.Printf("--- %s ---\n", view.Scope.Key())
	for _, entry := range view.Entries {
		marker := " "
		if entry.Pending() {
			marker = "…"
		}
		sender := ""
		if entry.Message != nil {
			sender = entry.Message.SenderName
		} else {
			sender = entry.Echo.SenderName
		}
		fmt.Printf("%s %s  %-12s %s\n", marker, entry.When().Format("15:04:05"), sender, entry.Body())
	}
}

func login(ctx context.Context, server, username, password string) (*loginReply, error) {
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, server+"/api/login", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var reply loginReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

func postMessage(ctx context.Context, server, token string, scope chat.Scope, body string) (chat.Message, error) {
	payload, _ := json.Marshal(map[string]string{"scope": scope.Key(), "body": body})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, server+"/api/messages", bytes.NewReader(payload))
	if err != nil {
		return chat.Message{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return chat.Message{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return chat.Message{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var wire proto.EventMessage
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return chat.Message{}, err
	}
	return wireToMessage(wire)
}

func dial(ctx context.Context, server, token string) (*websocket.Conn, error) {
	u, err := url.Parse(server)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws"
	u.RawQuery = url.Values{"token": {token}}.Encode()

	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	return conn, err
}
