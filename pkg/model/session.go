package model

import (
	"time"

	"github.com/google/uuid"
)

type SessionID string

// NewSessionID generates a new unique SessionID
func NewSessionID() SessionID {
	return SessionID(uuid.New().String())
}

// SessionMemory is the conversational context carried between queries.
type SessionMemory struct {
	LastTeam     string `json:"last_team,omitempty" firestore:"last_team"`
	LastOpponent string `json:"last_opponent,omitempty" firestore:"last_opponent"`
	LastPlayer   string `json:"last_player,omitempty" firestore:"last_player"`
	LastSeries   string `json:"last_series,omitempty" firestore:"last_series"`
	LastYear     int    `json:"last_year,omitempty" firestore:"last_year"`
}

// Session is the persisted state of a conversation.
type Session struct {
	ID        SessionID     `json:"id" firestore:"id"`
	Memory    SessionMemory `json:"memory" firestore:"memory"`
	CreatedAt time.Time     `json:"created_at" firestore:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" firestore:"updated_at"`

	// Transcript is stored in Cloud Storage, not in the session document.
	History []Turn `json:"-" firestore:"-"`
}
