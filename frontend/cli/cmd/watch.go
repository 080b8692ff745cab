package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/corvid/threadview/backend/api/conv"
	"github.com/corvid/threadview/backend/bridge"
	"github.com/corvid/threadview/backend/event"
	"github.com/corvid/threadview/frontend/cli/pkg/fail"
	"github.com/corvid/threadview/frontend/cli/pkg/terminal"
)

type watchOptions struct {
	Server   string
	ThreadID string
	UserID   string
}

func NewWatchCmd() *cobra.Command {
	options := &watchOptions{}

	cmd := &cobra.Command{
		Use:     "watch [flags]",
		Short:   "Watch a thread's tool pairs update live",
		GroupID: "core",
		Example: `  # Follow a thread on the local server
  threadview watch --thread th_12345`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if options.ThreadID == "" {
				return fmt.Errorf("--thread is required")
			}
			return runWatch(cmd.Context(), options)
		},
	}

	cmd.Flags().StringVar(&options.Server, "server", "http://localhost:8080", "server base URL")
	cmd.Flags().StringVar(&options.ThreadID, "thread", "", "thread id to watch")
	cmd.Flags().StringVar(&options.UserID, "user", "cli", "user id for the bridge handshake")

	return cmd
}

func runWatch(ctx context.Context, options *watchOptions) error {
	initial, err := fetchPairs(ctx, options.Server, options.ThreadID)
	if err != nil {
		return fail.Enhance(options.Server, err)
	}

	conn, err := connectBridge(ctx, options)
	if err != nil {
		return fail.Enhance(options.Server, err)
	}
	defer conn.Close()

	program := tea.NewProgram(terminal.NewPairFeed(options.ThreadID), tea.WithAltScreen())

	go func() {
		program.Send(terminal.StatusMsg("live"))
		program.Send(terminal.PairsMsg(initial))
		for {
			var env bridge.Envelope
			if err := conn.ReadJSON(&env); err != nil {
				program.Send(terminal.StatusMsg("disconnected"))
				return
			}
			if env.Type != event.EventTypePairsUpdated {
				continue
			}
			pairs, err := decodePairs(env.Payload)
			if err != nil {
				continue
			}
			program.Send(terminal.PairsMsg(pairs))
		}
	}()

	go func() {
		<-ctx.Done()
		program.Quit()
	}()

	model, err := program.Run()
	if err != nil {
		return err
	}
	if feed, ok := model.(terminal.PairFeed); ok && feed.Err() != nil {
		return feed.Err()
	}
	return nil
}

// fetchPairs loads the current snapshot so the feed is populated before the
// first live update arrives.
func fetchPairs(ctx context.Context, server, threadID string) ([]conv.ToolCallPair, error) {
	url := fmt.Sprintf("%s/v1/threads/%s/tool-pairs", strings.TrimRight(server, "/"), threadID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var envelope struct {
		Success bool                `json:"success"`
		Data    []conv.ToolCallPair `json:"data"`
		Error   string              `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, err
	}
	if !envelope.Success {
		return nil, fmt.Errorf("server error: %s", envelope.Error)
	}
	return envelope.Data, nil
}

func connectBridge(ctx context.Context, options *watchOptions) (*websocket.Conn, error) {
	wsURL := strings.TrimRight(options.Server, "/") + "/ws"
	wsURL = "ws" + strings.TrimPrefix(wsURL, "http")

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, err
	}

	if err := conn.WriteJSON(bridge.Envelope{
		Type:      bridge.TypeHandshake,
		SessionID: uuid.NewString(),
		UserID:    options.UserID,
	}); err != nil {
		conn.Close()
		return nil, err
	}

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	var ack bridge.Envelope
	if err := conn.ReadJSON(&ack); err != nil {
		conn.Close()
		return nil, err
	}
	if ack.Type != bridge.TypeHandshake || ack.Status != bridge.StatusAcknowledged {
		conn.Close()
		return nil, fmt.Errorf("handshake rejected: %s", ack.Error)
	}
	conn.SetReadDeadline(time.Time{})

	if err := conn.WriteJSON(bridge.Envelope{
		Type:       bridge.TypeSubscribe,
		ThreadID:   options.ThreadID,
		EventTypes: []string{event.EventTypePairsUpdated},
	}); err != nil {
		conn.Close()
		return nil, err
	}

	return conn, nil
}

func decodePairs(payload any) ([]conv.ToolCallPair, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var pairs []conv.ToolCallPair
	if err := json.Unmarshal(raw, &pairs); err != nil {
		return nil, err
	}
	return pairs, nil
}
