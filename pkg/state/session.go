package state

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/modforge/pkg/chat"
	"github.com/jwebster45206/modforge/pkg/mod"
)

// Session is one user's in-progress mod plus the conversation that built it.
//
// Only one operation may run against a session at a time. The worker takes a
// per-session lock before loading it; callers that use a Session directly must
// not start a generation while another one for the same session is in flight.
type Session struct {
	ID          uuid.UUID          `json:"id"`
	Mod         *mod.Mod           `json:"mod,omitempty"`
	ChatHistory []chat.ChatMessage `json:"chat_history,omitempty"`
	AutoFix     bool               `json:"auto_fix"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

func NewSession(autoFix bool) *Session {
	now := time.Now()
	return &Session{
		ID:          uuid.New(),
		ChatHistory: make([]chat.ChatMessage, 0),
		AutoFix:     autoFix,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// AppendUnit adds a unit, creating the mod with the default name on first use.
func (s *Session) AppendUnit(unit mod.GeneratedUnit) {
	if s.Mod == nil {
		s.Mod = &mod.Mod{Name: mod.DefaultModName, Units: make([]mod.GeneratedUnit, 0, 1)}
	}
	s.Mod.Units = append(s.Mod.Units, unit)
	s.UpdatedAt = time.Now()
}

// ReplaceLatestUnit overwrites units[len-1]. Earlier units cannot be edited.
func (s *Session) ReplaceLatestUnit(unit mod.GeneratedUnit) error {
	if s.Mod == nil || len(s.Mod.Units) == 0 {
		return mod.ErrNoUnits
	}
	s.Mod.Units[len(s.Mod.Units)-1] = unit
	s.UpdatedAt = time.Now()
	return nil
}

// RenameMod changes only the mod name. An invalid name is rejected and the
// current name kept.
func (s *Session) RenameMod(name string) error {
	if !mod.ValidName(name) {
		return fmt.Errorf("%w: %q", mod.ErrInvalidName, name)
	}
	if s.Mod == nil {
		return mod.ErrNoUnits
	}
	s.Mod.Name = name
	s.UpdatedAt = time.Now()
	return nil
}

// LatestUnit returns the unit that edit operations target, or nil.
func (s *Session) LatestUnit() *mod.GeneratedUnit {
	if s.Mod == nil || len(s.Mod.Units) == 0 {
		return nil
	}
	return &s.Mod.Units[len(s.Mod.Units)-1]
}

// UnitNames lists the names of all units in the mod, oldest first.
func (s *Session) UnitNames() []string {
	if s.Mod == nil {
		return nil
	}
	names := make([]string, len(s.Mod.Units))
	for i, u := range s.Mod.Units {
		names[i] = u.UnitName
	}
	return names
}

// UniqueUnitName returns base, or base with a numeric suffix when another unit
// already uses it.
func (s *Session) UniqueUnitName(base string) string {
	taken := map[string]bool{}
	for _, n := range s.UnitNames() {
		taken[n] = true
	}
	if !taken[base] {
		return base
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d", base, i)
		if !taken[candidate] {
			return candidate
		}
	}
}

func (s *Session) AddMessage(msg chat.ChatMessage) {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	s.ChatHistory = append(s.ChatHistory, msg)
	s.UpdatedAt = time.Now()
}

// DeepCopy returns an independent copy via JSON round trip.
func (s *Session) DeepCopy() (*Session, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}
	var cp Session
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &cp, nil
}
