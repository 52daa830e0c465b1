package main

import (
	"encoding/json"

	"starfall-arena/game"
)

// Client -> Server message types
const (
	MsgRegister = "register"
	MsgLogin    = "login"
	MsgAuth     = "auth"
	MsgProfile  = "profile"
	MsgCreate   = "create" // create session
	MsgList     = "list"   // list sessions
	MsgCheck    = "check"  // check if session exists
	MsgPilot    = "pilot"  // attach as the session's pilot
	MsgWatch    = "watch"  // attach as a spectator
	MsgInput    = "input"
	MsgSignal   = "signal" // confirm/back on the screen state machine
	MsgLeave    = "leave"
	MsgScores   = "scores"
)

// Server -> Client message types
const (
	MsgAuthOK      = "auth_ok"
	MsgProfileData = "profile"
	MsgCreated     = "created"
	MsgSessions    = "sessions"
	MsgChecked     = "checked"
	MsgJoined      = "joined"
	MsgState       = "state" // screen state changed
	MsgRunOver     = "run_over"
	MsgScoresData  = "scores"
	MsgError       = "error"
)

// binaryInputTag prefixes the compact binary input message
const binaryInputTag = 0x01

// Envelope wraps all outgoing messages with a type field
type Envelope struct {
	T    string      `json:"t"`
	Data interface{} `json:"d,omitempty"`
}

// InEnvelope is used for incoming messages; D is decoded per type
type InEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

// InputMsg is the pilot's held-key state. Aim is in arena coordinates and is
// ignored unless HasAim is set.
type InputMsg struct {
	Up     bool    `json:"up"`
	Down   bool    `json:"down"`
	Left   bool    `json:"left"`
	Right  bool    `json:"right"`
	Fire   bool    `json:"fire"`
	Shield bool    `json:"shield"`
	Boost  bool    `json:"boost"`
	Swap   bool    `json:"swap"`
	AimX   float64 `json:"ax"`
	AimY   float64 `json:"ay"`
	HasAim bool    `json:"aim"`
}

// Input flag bits of the binary input message
const (
	inUp uint8 = 1 << iota
	inDown
	inLeft
	inRight
	inFire
	inShield
	inBoost
	inSwap
)

// decodeBinaryInput parses [0x01, ax_hi, ax_lo, ay_hi, ay_lo, flags]
func decodeBinaryInput(msg []byte) (InputMsg, bool) {
	if len(msg) != 6 || msg[0] != binaryInputTag {
		return InputMsg{}, false
	}
	flags := msg[5]
	return InputMsg{
		AimX:   float64(int16(uint16(msg[1])<<8 | uint16(msg[2]))),
		AimY:   float64(int16(uint16(msg[3])<<8 | uint16(msg[4]))),
		HasAim: true,
		Up:     flags&inUp != 0,
		Down:   flags&inDown != 0,
		Left:   flags&inLeft != 0,
		Right:  flags&inRight != 0,
		Fire:   flags&inFire != 0,
		Shield: flags&inShield != 0,
		Boost:  flags&inBoost != 0,
		Swap:   flags&inSwap != 0,
	}, true
}

type RegisterMsg struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginMsg struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthMsg struct {
	Token string `json:"token"`
}

type AuthOKMsg struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	PilotID  int64  `json:"pid"`
}

type ProfileDataMsg struct {
	Username     string      `json:"username"`
	Level        int         `json:"level"`
	XP           int         `json:"xp"`
	Runs         int         `json:"runs"`
	Kills        int         `json:"kills"`
	BestScore    int         `json:"best_score"`
	BestWave     int         `json:"best_wave"`
	Playtime     float64     `json:"playtime"`
	Achievements []string    `json:"achievements"`
	Recent       []RecentRun `json:"recent"`
}

// RecentRun is one entry of a profile's run history
type RecentRun struct {
	Score    int     `json:"score"`
	Kills    int     `json:"kills"`
	Wave     int     `json:"wave"`
	Duration float64 `json:"duration"`
}

// CreateMsg is sent when a client wants a new session
type CreateMsg struct {
	SessionName string `json:"sname"`
}

// CreatedMsg carries the token that lets its holder fly the new session
type CreatedMsg struct {
	SID   string `json:"sid"`
	Token string `json:"token"`
}

type PilotMsg struct {
	SID   string `json:"sid"`
	Token string `json:"token"`
}

type WatchMsg struct {
	SID string `json:"sid"`
}

type JoinedMsg struct {
	SID  string `json:"sid"`
	Role string `json:"role"`
}

type SignalMsg struct {
	Signal string `json:"signal"`
}

type StateMsg struct {
	State string `json:"state"`
}

// RunOverMsg summarises a finished run to everyone in the session
type RunOverMsg struct {
	Score        int              `json:"score"`
	Kills        int              `json:"kills"`
	BestChain    int              `json:"chain"`
	Wave         int              `json:"wave"`
	Parts        int              `json:"parts"`
	Duration     float64          `json:"duration"`
	XP           int              `json:"xp,omitempty"`
	Level        int              `json:"level,omitempty"`
	Achievements []AchievementDef `json:"achievements,omitempty"`
}

type ScoresMsg struct {
	Limit int `json:"limit"`
}

// SessionInfo is used in the session list
type SessionInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	State      string `json:"state"`
	Piloted    bool   `json:"piloted"`
	Spectators int    `json:"spectators"`
}

// ErrorMsg sends error to client
type ErrorMsg struct {
	Msg string `json:"msg"`
}

type CheckMsg struct {
	SID string `json:"sid"`
}

type CheckedMsg struct {
	SID    string `json:"sid"`
	Exists bool   `json:"exists"`
	Name   string `json:"name,omitempty"`
	State  string `json:"state,omitempty"`
}

// Frame is the binary (msgpack) snapshot broadcast to a session
type Frame struct {
	Tick     uint64        `msgpack:"tick"`
	State    string        `msgpack:"st"`
	HUD      HUD           `msgpack:"hud"`
	Entities []EntityState `msgpack:"e"`
	Effects  []EffectState `msgpack:"fx,omitempty"`
}

type HUD struct {
	Score     int     `msgpack:"sc"`
	Kills     int     `msgpack:"k"`
	Chain     int     `msgpack:"ch"`
	Wave      int     `msgpack:"w"`
	Parts     int     `msgpack:"pt"`
	HP        float32 `msgpack:"hp"`
	MaxHP     float32 `msgpack:"mhp"`
	Energy    float32 `msgpack:"en"`
	MaxEnergy float32 `msgpack:"men"`
	Weapon    string  `msgpack:"wp"`
	Shield    bool    `msgpack:"sh"`
}

// EntityState is one actor in a Frame
type EntityState struct {
	ID     uint32  `msgpack:"id"`
	Kind   uint8   `msgpack:"k"`
	X      float32 `msgpack:"x"`
	Y      float32 `msgpack:"y"`
	VX     float32 `msgpack:"vx"`
	VY     float32 `msgpack:"vy"`
	R      float32 `msgpack:"r"` // heading radians
	Radius float32 `msgpack:"rad"`
	HP     float32 `msgpack:"hp"`
	MaxHP  float32 `msgpack:"mhp"`
	Owner  uint32  `msgpack:"o,omitempty"`
	Pickup string  `msgpack:"p,omitempty"`
}

// EffectState is a one-shot visual cue such as an explosion
type EffectState struct {
	Kind string  `msgpack:"k"`
	X    float32 `msgpack:"x"`
	Y    float32 `msgpack:"y"`
}

func toEntityState(e game.RenderEntity) EntityState {
	return EntityState{
		ID:     uint32(e.Handle),
		Kind:   uint8(e.Kind),
		X:      float32(e.Position.X),
		Y:      float32(e.Position.Y),
		VX:     float32(e.Velocity.X),
		VY:     float32(e.Velocity.Y),
		R:      float32(e.Heading),
		Radius: float32(e.Radius),
		HP:     float32(e.HitPoints),
		MaxHP:  float32(e.MaxHitPoints),
		Owner:  uint32(e.Owner),
		Pickup: e.Payload,
	}
}

func toHUD(s game.Status) HUD {
	return HUD{
		Score:     s.Score,
		Kills:     s.Kills,
		Chain:     s.KillChain,
		Wave:      s.Wave,
		Parts:     s.Parts,
		HP:        float32(s.HitPoints),
		MaxHP:     float32(s.MaxHitPoints),
		Energy:    float32(s.Energy),
		MaxEnergy: float32(s.MaxEnergy),
		Weapon:    s.Weapon,
		Shield:    s.ShieldUp,
	}
}
