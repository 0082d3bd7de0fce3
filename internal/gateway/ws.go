package gateway

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// handleSubscribe upgrades the connection and relays conversation change
// events until the client disconnects. Writes are serialized by the relay
// loop; the read side only watches for close.
func (g *Gateway) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	convID := r.PathValue("id")
	if _, err := g.engine.GetConversation(convID); err != nil {
		g.writeError(w, err)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket accept failed", zap.String("conversation_id", convID), zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	events, cancel := g.hub.Subscribe(convID)
	defer cancel()

	ctx := r.Context()
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	g.logger.Info("websocket subscriber attached", zap.String("conversation_id", convID))
	for {
		select {
		case <-ctx.Done():
			return
		case <-readDone:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				g.logger.Error("marshal event", zap.Error(err))
				continue
			}
			if err := g.writeEvent(ctx, conn, payload); err != nil {
				g.logger.Debug("websocket write failed, dropping subscriber",
					zap.String("conversation_id", convID),
					zap.Error(err),
				)
				return
			}
		}
	}
}

func (g *Gateway) writeEvent(ctx context.Context, conn *websocket.Conn, payload []byte) error {
	return conn.Write(ctx, websocket.MessageText, payload)
}
