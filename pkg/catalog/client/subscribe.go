package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/mediagraph/catalog-client/internal/pkg/infrastructure/o11y/logging"
	"github.com/mediagraph/catalog-client/pkg/catalog/errors"
)

const wsSubprotocol = "graphql-transport-ws"

type wsMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Subscribe opens a graphql-transport-ws connection for a named operation
// and delivers each event's data object until the server completes the
// subscription or ctx is cancelled.
func (c *Client) Subscribe(ctx context.Context, operation string, variables map[string]any) (<-chan map[string]any, error) {
	doc, ok := c.documents[operation]
	if !ok {
		return nil, fmt.Errorf("unknown operation %q (%w)", operation, errors.ErrRequest)
	}

	wsEndpoint := strings.Replace(c.endpoint, "http", "ws", 1)

	header := http.Header{}
	if c.apiKey != "" {
		header.Add("ApiKey", c.apiKey)
	}

	dialer := websocket.Dialer{Subprotocols: []string{wsSubprotocol}}
	conn, _, err := dialer.DialContext(ctx, wsEndpoint, header)
	if err != nil {
		return nil, fmt.Errorf("failed to open subscription socket: %s (%w)", err.Error(), errors.ErrRequest)
	}

	if err = c.initSubscription(conn, operation, doc, variables); err != nil {
		conn.Close()
		return nil, err
	}

	events := make(chan map[string]any)

	go func() {
		defer close(events)
		defer conn.Close()

		log := logging.GetFromContext(ctx)

		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				deadline := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
				conn.WriteMessage(websocket.CloseMessage, deadline)
				conn.Close()
			case <-done:
			}
		}()
		defer close(done)

		for {
			var msg wsMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if ctx.Err() == nil {
					log.Debug().Err(err).Msg("subscription socket closed")
				}
				return
			}

			switch msg.Type {
			case "next":
				var payload struct {
					Data map[string]any `json:"data"`
				}
				if err := json.Unmarshal(msg.Payload, &payload); err != nil {
					log.Error().Err(err).Msg("failed to decode subscription event")
					continue
				}
				select {
				case events <- payload.Data:
				case <-ctx.Done():
					return
				}
			case "complete":
				return
			case "ping":
				conn.WriteJSON(wsMessage{Type: "pong"})
			}
		}
	}()

	return events, nil
}

func (c *Client) initSubscription(conn *websocket.Conn, operation, doc string, variables map[string]any) error {
	initPayload := map[string]any{}
	if c.apiKey != "" {
		initPayload["ApiKey"] = c.apiKey
	}
	init, _ := json.Marshal(initPayload)

	if err := conn.WriteJSON(wsMessage{Type: "connection_init", Payload: init}); err != nil {
		return fmt.Errorf("failed to init subscription: %s (%w)", err.Error(), errors.ErrRequest)
	}

	var ack wsMessage
	if err := conn.ReadJSON(&ack); err != nil {
		return fmt.Errorf("failed to read subscription ack: %s (%w)", err.Error(), errors.ErrBadResponse)
	}
	if ack.Type != "connection_ack" {
		return fmt.Errorf("endpoint refused the subscription handshake with %q (%w)", ack.Type, errors.ErrBadResponse)
	}

	request, err := json.Marshal(graphQLRequest{
		Query:         doc,
		OperationName: operation,
		Variables:     variables,
	})
	if err != nil {
		return fmt.Errorf("failed to encode subscription: %s (%w)", err.Error(), errors.ErrRequest)
	}

	if err := conn.WriteJSON(wsMessage{ID: "1", Type: "subscribe", Payload: request}); err != nil {
		return fmt.Errorf("failed to start subscription: %s (%w)", err.Error(), errors.ErrRequest)
	}

	return nil
}
