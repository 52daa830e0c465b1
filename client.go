package main

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"starfall-arena/game"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 4096
	sendBufSize       = 256
	maxMessagesPerSec = 50
	maxSessionNameLen = 30
	defaultScoreLimit = 10
	profileRecentRuns = 5
	maxScoreLimit     = 100
)

// Client is one websocket connection. It is the pilot of at most one session
// or a spectator of it.
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	remoteAddr string
	msgCount   int
	msgResetAt time.Time

	mu        sync.Mutex
	sessionID string
	isPilot   bool

	pilotID int64 // 0 for guests
}

// NewClient creates a new Client
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufSize),
		remoteAddr: remoteAddr,
	}
}

// SessionID returns the session the client is attached to, or ""
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *Client) attached() (*Session, bool) {
	c.mu.Lock()
	sid, pilot := c.sessionID, c.isPilot
	c.mu.Unlock()
	if sid == "" {
		return nil, false
	}
	sess := c.hub.sessions.GetSession(sid)
	return sess, sess != nil && pilot
}

func (c *Client) setSession(sid string, pilot bool) {
	c.mu.Lock()
	c.sessionID = sid
	c.isPilot = pilot
	c.mu.Unlock()
}

// ReadPump reads messages from the WebSocket connection
func (c *Client) ReadPump() {
	log := c.hub.svc.Log
	defer func() {
		c.hub.TrackDisconnect(c.remoteAddr)
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("ws read error", "err", err, "ip", c.remoteAddr)
			}
			break
		}

		now := time.Now()
		if now.After(c.msgResetAt) {
			c.msgCount = 0
			c.msgResetAt = now.Add(time.Second)
		}
		c.msgCount++
		if c.msgCount > maxMessagesPerSec {
			log.Warn("rate limit exceeded, disconnecting", "ip", c.remoteAddr)
			break
		}

		if sid := c.SessionID(); sid != "" {
			c.hub.sessions.MarkActive(sid)
		}

		if msgType == websocket.BinaryMessage {
			if in, ok := decodeBinaryInput(message); ok {
				c.applyInput(in)
			}
			continue
		}
		c.handleMessage(message)
	}
}

// WritePump writes messages to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// 0xFF marks a binary frame queued by SendBinary
			var err error
			if len(message) > 0 && message[0] == 0xFF {
				err = c.conn.WriteMessage(websocket.BinaryMessage, message[1:])
			} else {
				err = c.conn.WriteMessage(websocket.TextMessage, message)
			}
			if err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendJSON sends a JSON message to the client
func (c *Client) SendJSON(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.hub.svc.Log.Error("marshal message", "err", err)
		return
	}
	c.SendRaw(data)
}

// SendRaw queues pre-marshaled bytes as a text message. Slow clients lose
// messages rather than stall the session.
func (c *Client) SendRaw(data []byte) {
	defer func() { recover() }()
	select {
	case c.send <- data:
	default:
	}
}

// SendBinary queues data as a binary message
func (c *Client) SendBinary(data []byte) {
	defer func() { recover() }()
	msg := make([]byte, len(data)+1)
	msg[0] = 0xFF
	copy(msg[1:], data)
	select {
	case c.send <- msg:
	default:
	}
}

func (c *Client) sendError(msg string) {
	c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: msg}})
}

// handleMessage routes incoming messages (single-pass decode via InEnvelope)
func (c *Client) handleMessage(raw []byte) {
	var env InEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.hub.svc.Log.Debug("bad envelope", "err", err, "ip", c.remoteAddr)
		return
	}

	switch env.T {
	case MsgRegister:
		c.handleRegister(env.D)
	case MsgLogin:
		c.handleLogin(env.D)
	case MsgAuth:
		c.handleAuth(env.D)
	case MsgProfile:
		c.handleProfile()
	case MsgList:
		c.SendJSON(Envelope{T: MsgSessions, Data: c.hub.sessions.ListSessions()})
	case MsgCheck:
		c.handleCheck(env.D)
	case MsgCreate:
		c.handleCreate(env.D)
	case MsgPilot:
		c.handlePilot(env.D)
	case MsgWatch:
		c.handleWatch(env.D)
	case MsgInput:
		c.handleInput(env.D)
	case MsgSignal:
		c.handleSignal(env.D)
	case MsgLeave:
		c.handleLeave()
	case MsgScores:
		c.handleScores(env.D)
	default:
		c.sendError("unknown message type")
	}
}

func (c *Client) handleCreate(data json.RawMessage) {
	var msg CreateMsg
	if len(data) > 0 {
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError("bad create message")
			return
		}
	}
	name := truncate(msg.SessionName, maxSessionNameLen)
	if name == "" {
		name = "Skirmish"
	}

	sess, err := c.hub.sessions.CreateSession(name)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	token, err := c.hub.svc.Auth.IssueSessionToken(sess.ID)
	if err != nil {
		c.hub.svc.Log.Error("issue session token", "err", err)
		c.sendError("internal error")
		return
	}
	c.SendJSON(Envelope{T: MsgCreated, Data: CreatedMsg{SID: sess.ID, Token: token}})
}

func (c *Client) handlePilot(data json.RawMessage) {
	var msg PilotMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("bad pilot message")
		return
	}
	sess := c.hub.sessions.GetSession(msg.SID)
	if sess == nil {
		c.sendError("session not found")
		return
	}
	if err := c.hub.svc.Auth.ValidateSessionToken(msg.Token, msg.SID); err != nil {
		c.sendError("invalid session token")
		return
	}
	c.leaveCurrent(msg.SID)
	if err := sess.Game.AttachPilot(c, c.pilotID); err != nil {
		c.sendError(err.Error())
		return
	}
	c.setSession(sess.ID, true)
	c.SendJSON(Envelope{T: MsgJoined, Data: JoinedMsg{SID: sess.ID, Role: "pilot"}})
	c.SendJSON(Envelope{T: MsgState, Data: StateMsg{State: sess.Game.State().String()}})
}

func (c *Client) handleWatch(data json.RawMessage) {
	var msg WatchMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("bad watch message")
		return
	}
	sess := c.hub.sessions.GetSession(msg.SID)
	if sess == nil {
		c.sendError("session not found")
		return
	}
	c.leaveCurrent(msg.SID)
	if err := sess.Game.AddSpectator(c); err != nil {
		c.sendError(err.Error())
		return
	}
	c.setSession(sess.ID, false)
	c.SendJSON(Envelope{T: MsgJoined, Data: JoinedMsg{SID: sess.ID, Role: "spectator"}})
}

// leaveCurrent detaches from the current session unless it is next
func (c *Client) leaveCurrent(next string) {
	if sid := c.SessionID(); sid != "" && sid != next {
		c.handleLeave()
	}
}

func (c *Client) handleInput(data json.RawMessage) {
	var in InputMsg
	if err := json.Unmarshal(data, &in); err != nil {
		return
	}
	c.applyInput(in)
}

func (c *Client) applyInput(in InputMsg) {
	sess, pilot := c.attached()
	if !pilot {
		return
	}
	sess.Game.HandleInput(c, in)
}

func (c *Client) handleSignal(data json.RawMessage) {
	var msg SignalMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("bad signal message")
		return
	}
	sig, err := game.ParseSignal(msg.Signal)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	sess, pilot := c.attached()
	if !pilot {
		c.sendError(ErrNotPilot.Error())
		return
	}
	if _, err := sess.Game.HandleSignal(c, sig); err != nil {
		c.hub.svc.Log.Error("signal failed", "sid", sess.ID, "signal", msg.Signal, "err", err)
		c.sendError("signal failed")
	}
}

func (c *Client) handleLeave() {
	sid := c.SessionID()
	if sid == "" {
		return
	}
	c.hub.sessions.RemoveClient(sid, c)
	c.setSession("", false)
}

func (c *Client) handleCheck(data json.RawMessage) {
	var msg CheckMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	sess := c.hub.sessions.GetSession(msg.SID)
	if sess == nil {
		c.SendJSON(Envelope{T: MsgChecked, Data: CheckedMsg{SID: msg.SID, Exists: false}})
		return
	}
	c.SendJSON(Envelope{T: MsgChecked, Data: CheckedMsg{
		SID:    msg.SID,
		Exists: true,
		Name:   sess.Name,
		State:  sess.Game.State().String(),
	}})
}

func (c *Client) handleScores(data json.RawMessage) {
	db := c.hub.svc.DB
	if db == nil {
		c.SendJSON(Envelope{T: MsgScoresData, Data: []ScoreEntry{}})
		return
	}
	msg := ScoresMsg{Limit: defaultScoreLimit}
	if len(data) > 0 {
		json.Unmarshal(data, &msg)
	}
	if msg.Limit <= 0 || msg.Limit > maxScoreLimit {
		msg.Limit = defaultScoreLimit
	}
	scores, err := db.TopScores(msg.Limit)
	if err != nil {
		c.hub.svc.Log.Error("top scores", "err", err)
		c.sendError("scores unavailable")
		return
	}
	c.SendJSON(Envelope{T: MsgScoresData, Data: scores})
}

func (c *Client) authOK(id int64, username, token string) {
	c.mu.Lock()
	c.pilotID = id
	c.mu.Unlock()
	c.SendJSON(Envelope{T: MsgAuthOK, Data: AuthOKMsg{
		Token:    token,
		Username: username,
		PilotID:  id,
	}})
}

func (c *Client) handleRegister(data json.RawMessage) {
	if c.hub.svc.DB == nil {
		c.sendError("accounts are disabled")
		return
	}
	var msg RegisterMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	id, token, err := c.hub.svc.Auth.Register(msg.Username, msg.Password)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	c.authOK(id, msg.Username, token)
}

func (c *Client) handleLogin(data json.RawMessage) {
	if c.hub.svc.DB == nil {
		c.sendError("accounts are disabled")
		return
	}
	var msg LoginMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	id, token, err := c.hub.svc.Auth.Login(msg.Username, msg.Password, c.remoteAddr)
	if err != nil {
		if !errors.Is(err, ErrBadCredentials) && !errors.Is(err, ErrRateLimited) {
			c.hub.svc.Log.Error("login failed", "err", err)
			err = errors.New("internal error")
		}
		c.sendError(err.Error())
		return
	}
	c.authOK(id, msg.Username, token)
}

func (c *Client) handleAuth(data json.RawMessage) {
	var msg AuthMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	id, username, err := c.hub.svc.Auth.ValidateToken(msg.Token)
	if err != nil {
		c.sendError("invalid token")
		return
	}
	c.authOK(id, username, msg.Token)
}

func (c *Client) handleProfile() {
	db := c.hub.svc.DB
	c.mu.Lock()
	id := c.pilotID
	c.mu.Unlock()
	if db == nil || id == 0 {
		c.sendError("not authenticated")
		return
	}
	pilot, err := db.GetPilotByID(id)
	if err != nil || pilot == nil {
		c.sendError("profile not found")
		return
	}
	stats, err := db.GetStats(id)
	if err != nil || stats == nil {
		c.sendError("profile not found")
		return
	}
	unlocked, err := db.GetAchievements(id)
	if err != nil {
		c.sendError("profile not found")
		return
	}
	runs, err := db.GetRuns(id, profileRecentRuns)
	if err != nil {
		c.sendError("profile not found")
		return
	}
	recent := make([]RecentRun, len(runs))
	for i, r := range runs {
		recent[i] = RecentRun{Score: r.Score, Kills: r.Kills, Wave: r.Wave, Duration: r.Duration}
	}
	c.SendJSON(Envelope{T: MsgProfileData, Data: ProfileDataMsg{
		Username:     pilot.Username,
		Level:        stats.Level,
		XP:           stats.XP,
		Runs:         stats.Runs,
		Kills:        stats.Kills,
		BestScore:    stats.BestScore,
		BestWave:     stats.BestWave,
		Playtime:     stats.Playtime,
		Achievements: unlocked,
		Recent:       recent,
	}})
}
