package quilt

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/buildbuildio/quilt/gqlerrors"
	"github.com/buildbuildio/quilt/requests"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"go.uber.org/zap"
)

// wsConn serializes writes of concurrently running operations.
type wsConn struct {
	net.Conn
	mu sync.Mutex
}

func (c *wsConn) send(msg interface{}) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return wsutil.WriteServerText(c.Conn, b)
}

// operationDict holds the cancel functions of running operations by id.
type operationDict struct {
	mu         sync.Mutex
	operations map[string]context.CancelFunc
	wg         sync.WaitGroup
}

func (od *operationDict) Start(id string, cancel context.CancelFunc) bool {
	od.mu.Lock()
	defer od.mu.Unlock()

	if _, ok := od.operations[id]; ok {
		return false
	}
	od.operations[id] = cancel
	od.wg.Add(1)
	return true
}

func (od *operationDict) Done(id string) {
	od.mu.Lock()
	if cancel, ok := od.operations[id]; ok {
		cancel()
		delete(od.operations, id)
	}
	od.mu.Unlock()
	od.wg.Done()
}

func (od *operationDict) Clean(id string) {
	od.mu.Lock()
	defer od.mu.Unlock()

	if cancel, ok := od.operations[id]; ok {
		cancel()
	}
}

func (od *operationDict) CleanAll() {
	od.mu.Lock()
	defer od.mu.Unlock()

	for _, cancel := range od.operations {
		cancel()
	}
}

func sendHeartbeat(conn *wsConn, closeCh <-chan struct{}) error {
	timeTicker := time.NewTicker(time.Second * 4)
	defer timeTicker.Stop()

	for {
		select {
		case <-timeTicker.C:
			if err := conn.send(requests.ServerSubMsg{Type: requests.SubConnectionKeepAlive}); err != nil {
				return err
			}
		case <-closeCh:
			return nil
		}
	}
}

// websocketHandler serves operations over the graphql-ws protocol. Every
// operation answers with a data message for its initial result, one data
// message per incremental result and a final complete message.
func (g *Gateway) websocketHandler(w http.ResponseWriter, r *http.Request) {
	upgrader := ws.HTTPUpgrader{
		Timeout: time.Second * 60,
		Protocol: func(subprotocol string) bool {
			return subprotocol == "graphql-ws"
		},
	}

	rawConn, _, _, err := upgrader.Upgrade(r, w)
	if err != nil {
		g.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	conn := &wsConn{Conn: rawConn}

	ctx, cancel := context.WithCancel(r.Context())
	operations := &operationDict{operations: make(map[string]context.CancelFunc)}
	closeCh := make(chan struct{})
	heartbeat := false

	defer func() {
		cancel()
		operations.CleanAll()
		operations.wg.Wait()
		close(closeCh)

		// gracefully close connection
		body := ws.NewCloseFrameBody(ws.StatusNormalClosure, "")
		frame := ws.NewCloseFrame(body)
		conn.mu.Lock()
		if err := ws.WriteHeader(conn.Conn, frame.Header); err == nil {
			conn.Conn.Write(body)
		}
		conn.mu.Unlock()
		conn.Close()
	}()

	for {
		msg, err := wsutil.ReadClientText(conn.Conn)
		if err != nil {
			return
		}

		var subMsg requests.ClientSubMsg
		if err := json.Unmarshal(msg, &subMsg); err != nil {
			conn.send(requests.ServerSubMsg{Type: requests.SubConnectionError})
			return
		}

		switch subMsg.Type {
		// When the GraphQL WS connection is initiated, send an ACK back
		case requests.SubConnectionInit:
			if err := conn.send(requests.ServerSubMsg{Type: requests.SubConnectionAck}); err != nil {
				return
			}
			if !heartbeat {
				heartbeat = true
				go sendHeartbeat(conn, closeCh)
			}

		case requests.SubStart:
			if subMsg.Payload == nil {
				conn.send(requests.ServerSubErrorMsg{
					ID:      subMsg.ID,
					Type:    requests.SubError,
					Payload: gqlerrors.ErrorList{{Message: "missing payload"}},
				})
				continue
			}
			subMsg.Payload.Original = r

			opCtx, opCancel := context.WithCancel(ctx)
			if !operations.Start(subMsg.ID, opCancel) {
				opCancel()
				conn.send(requests.ServerSubErrorMsg{
					ID:      subMsg.ID,
					Type:    requests.SubError,
					Payload: gqlerrors.ErrorList{{Message: "operation " + subMsg.ID + " is already running"}},
				})
				continue
			}
			go func(id string, request *requests.Request) {
				defer operations.Done(id)
				g.serveOperation(opCtx, conn, id, request)
			}(subMsg.ID, subMsg.Payload)

		// Stop running operations
		case requests.SubStop:
			operations.Clean(subMsg.ID)

		// When the GraphQL WS connection is terminated by the client,
		// close the connection and close all the running operations
		case requests.SubConnectionTerminate:
			return

		default:
			g.logger.Warn("unknown websocket message", zap.ByteString("message", msg))
		}
	}
}

func (g *Gateway) serveOperation(ctx context.Context, conn *wsConn, id string, request *requests.Request) {
	result := g.Execute(ctx, request, g.deferSupport)

	if err := conn.send(requests.ServerSubMsg{ID: id, Type: requests.SubData, Payload: result}); err != nil {
		if result.incremental != nil {
			result.incremental.Cancel()
		}
		return
	}

	if support := result.incremental; support != nil {
		support.InitialSent()
		for res := range support.Results() {
			if err := conn.send(requests.ServerSubMsg{ID: id, Type: requests.SubData, Payload: res}); err != nil {
				support.Cancel()
				return
			}
		}
		if ctx.Err() != nil {
			// stopped by the client
			return
		}
	}

	conn.send(requests.ServerSubMsg{ID: id, Type: requests.SubComplete})
}
