package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	jwtExpiry          = 7 * 24 * time.Hour
	sessionTokenExpiry = 24 * time.Hour
	bcryptCost         = 12
	minPasswordLen     = 4
	minUsernameLen     = 2
	maxUsernameLen     = 16
	loginRateWindow    = 60 * time.Second
	maxLoginAttempts   = 10
)

var (
	ErrBadCredentials = errors.New("invalid username or password")
	ErrUsernameTaken  = errors.New("username already taken")
	ErrRateLimited    = errors.New("too many login attempts, try again later")
	ErrInvalidToken   = errors.New("invalid token")
)

// Auth handles pilot accounts and the tokens that bind a connection to a
// session's ship.
type Auth struct {
	db        *DB
	jwtSecret []byte
	cost      int
	now       func() time.Time

	rateMu  sync.Mutex
	rateMap map[string]*rateEntry
}

type rateEntry struct {
	Count   int
	ResetAt time.Time
}

// NewAuth creates an Auth. A non-empty configured secret wins; otherwise the
// secret is loaded from (or persisted to) the settings table.
func NewAuth(db *DB, configured string, log *slog.Logger) *Auth {
	var secret []byte
	if configured != "" {
		secret = []byte(configured)
	} else {
		secret = loadOrCreateSecret(db, log)
	}
	return &Auth{
		db:        db,
		jwtSecret: secret,
		cost:      bcryptCost,
		now:       time.Now,
		rateMap:   make(map[string]*rateEntry),
	}
}

func loadOrCreateSecret(db *DB, log *slog.Logger) []byte {
	if db != nil {
		if h := db.GetSetting("jwt_secret"); h != "" {
			if b, err := hex.DecodeString(h); err == nil && len(b) == 32 {
				return b
			}
		}
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		panic("failed to generate JWT secret: " + err.Error())
	}
	if db != nil {
		if err := db.SetSetting("jwt_secret", hex.EncodeToString(secret)); err != nil {
			log.Warn("could not persist jwt secret", "err", err)
		}
	}
	return secret
}

// Register creates a new account and returns its ID and a login token
func (a *Auth) Register(username, password string) (int64, string, error) {
	username = strings.TrimSpace(username)

	if len(username) < minUsernameLen || len(username) > maxUsernameLen {
		return 0, "", fmt.Errorf("username must be %d-%d characters", minUsernameLen, maxUsernameLen)
	}
	if len(password) < minPasswordLen {
		return 0, "", fmt.Errorf("password must be at least %d characters", minPasswordLen)
	}

	exists, err := a.db.UsernameExists(username)
	if err != nil {
		return 0, "", fmt.Errorf("check username: %w", err)
	}
	if exists {
		return 0, "", ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return 0, "", fmt.Errorf("hash password: %w", err)
	}

	id, err := a.db.CreatePilot(username, string(hash))
	if err != nil {
		return 0, "", fmt.Errorf("create pilot: %w", err)
	}

	token, err := a.generateToken(id, username)
	if err != nil {
		return 0, "", err
	}
	return id, token, nil
}

// Login authenticates a pilot and returns a JWT
func (a *Auth) Login(username, password, ip string) (int64, string, error) {
	if !a.checkRate(ip) {
		return 0, "", ErrRateLimited
	}

	pilot, err := a.db.GetPilotByName(strings.TrimSpace(username))
	if err != nil {
		return 0, "", fmt.Errorf("lookup pilot: %w", err)
	}
	if pilot == nil || pilot.PassHash == "" {
		return 0, "", ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(pilot.PassHash), []byte(password)); err != nil {
		return 0, "", ErrBadCredentials
	}

	token, err := a.generateToken(pilot.ID, pilot.Username)
	if err != nil {
		return 0, "", err
	}
	return pilot.ID, token, nil
}

// ValidateToken validates a login JWT and returns (pilotID, username)
func (a *Auth) ValidateToken(tokenStr string) (int64, string, error) {
	claims, err := a.parse(tokenStr)
	if err != nil {
		return 0, "", err
	}
	pidFloat, ok := claims["pid"].(float64)
	if !ok {
		return 0, "", ErrInvalidToken
	}
	username, ok := claims["usr"].(string)
	if !ok {
		return 0, "", ErrInvalidToken
	}
	return int64(pidFloat), username, nil
}

// IssueSessionToken mints the token that lets a connection fly the ship of
// session sid. Whoever creates a session receives it.
func (a *Auth) IssueSessionToken(sid string) (string, error) {
	now := a.now()
	claims := jwt.MapClaims{
		"sid": sid,
		"rol": "pilot",
		"exp": now.Add(sessionTokenExpiry).Unix(),
		"iat": now.Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.jwtSecret)
}

// ValidateSessionToken checks that tokenStr grants piloting rights on sid
func (a *Auth) ValidateSessionToken(tokenStr, sid string) error {
	claims, err := a.parse(tokenStr)
	if err != nil {
		return err
	}
	if got, _ := claims["sid"].(string); got != sid {
		return fmt.Errorf("%w: token is for another session", ErrInvalidToken)
	}
	if role, _ := claims["rol"].(string); role != "pilot" {
		return ErrInvalidToken
	}
	return nil
}

func (a *Auth) parse(tokenStr string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.jwtSecret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (a *Auth) generateToken(pilotID int64, username string) (string, error) {
	now := a.now()
	claims := jwt.MapClaims{
		"pid": pilotID,
		"usr": username,
		"exp": now.Add(jwtExpiry).Unix(),
		"iat": now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.jwtSecret)
}

func (a *Auth) checkRate(ip string) bool {
	a.rateMu.Lock()
	defer a.rateMu.Unlock()

	now := a.now()
	entry, ok := a.rateMap[ip]
	if !ok || now.After(entry.ResetAt) {
		a.rateMap[ip] = &rateEntry{Count: 1, ResetAt: now.Add(loginRateWindow)}
		return true
	}
	entry.Count++
	return entry.Count <= maxLoginAttempts
}
