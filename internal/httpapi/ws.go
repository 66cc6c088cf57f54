package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/fhuebner/plausch/internal/feed"
	"github.com/fhuebner/plausch/internal/search"
	"github.com/fhuebner/plausch/internal/store"
	"github.com/fhuebner/plausch/pkg/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS is enforced at the HTTP layer.
		return true
	},
}

// Client frames. Scope selects what the session is looking at: the
// sidebar, or one conversation at a time.
type wsClientFrame struct {
	Type           string `json:"type"`
	Scope          string `json:"scope,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Query          string `json:"query,omitempty"`
}

type wsServerFrame struct {
	Type           string                    `json:"type"`
	ConversationID string                    `json:"conversation_id,omitempty"`
	Conversations  []store.Conversation      `json:"conversations,omitempty"`
	Messages       []store.Message           `json:"messages,omitempty"`
	Results        []store.ProfileSuggestion `json:"results,omitempty"`
	OK             bool                      `json:"ok,omitempty"`
	Error          string                    `json:"error,omitempty"`
}

// profileSearcher adapts the chat service to the debouncer.
type profileSearcher struct {
	server *Server
}

func (p profileSearcher) SearchProfiles(ctx context.Context, userID, query string) ([]store.ProfileSuggestion, error) {
	return p.server.chat.SearchProfiles(ctx, query, userID, p.server.cfg.SearchLimit)
}

// wsSession is the realtime state of one connected client: its sidebar
// view, at most one open conversation view, and its search debouncer.
type wsSession struct {
	server *Server
	conn   *websocket.Conn
	userID string
	logger *zap.Logger

	out      chan wsServerFrame
	done     chan struct{}
	sidebar  *feed.SidebarView
	messages *feed.MessageView
	searcher *search.Debouncer
}

// handleWS handles GET /api/v1/ws?token=. Browser websockets cannot set
// an Authorization header, so the token travels in the query string.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	tokenStr := strings.TrimSpace(r.URL.Query().Get("token"))
	if tokenStr == "" {
		writeError(w, http.StatusUnauthorized, "missing token query")
		return
	}
	userID, err := s.auth.VerifyToken(tokenStr)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	sess := &wsSession{
		server: s,
		conn:   conn,
		userID: userID,
		logger: s.logger.With(zap.String("user_id", userID)),
		out:    make(chan wsServerFrame, 64),
		done:   make(chan struct{}),
	}
	sess.sidebar = feed.NewSidebarView(s.db, s.bus, s.chat, sess.logger)
	sess.messages = feed.NewMessageView(s.db, s.bus, s.cfg.MessagePage, sess.logger)
	sess.searcher = search.NewDebouncer(profileSearcher{server: s}, s.cfg.DebounceDelay(), userID, sess.logger)

	sess.sidebar.SetOnChange(func(list []store.Conversation) {
		sess.send(wsServerFrame{Type: "sidebar", Conversations: list})
	})
	sess.messages.SetOnChange(func(msgs []store.Message) {
		sess.send(wsServerFrame{
			Type:           "messages",
			ConversationID: sess.messages.ConversationID(),
			Messages:       msgs,
		})
	})
	sess.searcher.SetOnResults(func(results []store.ProfileSuggestion) {
		sess.send(wsServerFrame{Type: "search_results", Results: results})
	})

	metrics.WSConnectionsActive.Inc()
	go sess.writeLoop()
	sess.readLoop()
}

// send queues a frame for the writer. A slow client loses frames rather
// than stalling the feed fold, and a closed session swallows them.
func (sess *wsSession) send(frame wsServerFrame) {
	select {
	case <-sess.done:
	case sess.out <- frame:
	default:
		sess.logger.Warn("websocket send buffer full, dropping frame",
			zap.String("frame_type", frame.Type))
	}
}

func (sess *wsSession) writeLoop() {
	for {
		select {
		case <-sess.done:
			return
		case frame := <-sess.out:
			if err := sess.conn.WriteJSON(frame); err != nil {
				sess.logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		}
	}
}

func (sess *wsSession) readLoop() {
	defer sess.teardown()

	for {
		var frame wsClientFrame
		if err := sess.conn.ReadJSON(&frame); err != nil {
			return
		}
		sess.handleFrame(frame)
	}
}

func (sess *wsSession) teardown() {
	close(sess.done)
	sess.sidebar.Close()
	sess.messages.Close()
	sess.searcher.Stop()
	sess.conn.Close()
	metrics.WSConnectionsActive.Dec()
}

func (sess *wsSession) handleFrame(frame wsClientFrame) {
	ctx := context.Background()

	switch frame.Type {
	case "select":
		sess.handleSelect(frame)

	case "search":
		sess.searcher.Query(ctx, frame.Query)

	case "delete_conversation":
		err := sess.sidebar.DeleteConversation(ctx, frame.ConversationID)
		result := wsServerFrame{
			Type:           "delete_result",
			ConversationID: frame.ConversationID,
			OK:             err == nil,
		}
		if err != nil {
			result.Error = err.Error()
		}
		sess.send(result)

	default:
		sess.send(wsServerFrame{Type: "error", Error: "unknown frame type"})
	}
}

// handleSelect opens the requested view. The snapshot frame is emitted by
// the view's own change callback before its drain starts, so it is always
// queued ahead of any folded-state frame.
func (sess *wsSession) handleSelect(frame wsClientFrame) {
	switch frame.Scope {
	case "sidebar":
		if err := sess.sidebar.Open(sess.userID); err != nil {
			sess.send(wsServerFrame{Type: "error", Error: "failed to open sidebar"})
		}

	case "conversation":
		// Membership gates the snapshot; the view itself has no notion
		// of users.
		ok, err := sess.server.db.HasMembership(frame.ConversationID, sess.userID)
		if err != nil || !ok {
			sess.send(wsServerFrame{Type: "error", Error: "conversation not found"})
			return
		}
		if err := sess.messages.Open(frame.ConversationID); err != nil {
			sess.send(wsServerFrame{Type: "error", Error: "failed to open conversation"})
		}

	default:
		sess.send(wsServerFrame{Type: "error", Error: "unknown scope"})
	}
}
