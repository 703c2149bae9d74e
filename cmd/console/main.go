package main

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/jwebster45206/modforge/pkg/state"
)

type ConsoleConfig struct {
	APIBaseURL   string
	Timeout      time.Duration
	PollInterval time.Duration
	AutoFix      bool
}

func main() {
	autoFix, err := strconv.ParseBool(getEnv("AUTO_FIX", "true"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "AUTO_FIX must be true or false\n")
		os.Exit(1)
	}
	cfg := &ConsoleConfig{
		APIBaseURL:   getEnv("API_BASE_URL", "http://localhost:8080"),
		Timeout:      30 * time.Second,
		PollInterval: 750 * time.Millisecond,
		AutoFix:      autoFix,
	}

	api := NewAPIClient(&http.Client{Timeout: cfg.Timeout}, cfg.APIBaseURL)
	if !api.Healthy() {
		fmt.Fprintf(os.Stderr, "Could not connect to API. Please ensure the API is running.\nTry: docker-compose up -d\n")
		os.Exit(1)
	}

	s, err := openSession(api, os.Getenv("SESSION_ID"), cfg.AutoFix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	p := tea.NewProgram(NewConsoleUI(cfg, api, s),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}

// openSession resumes the session named by id, or starts a new one when id
// is empty.
func openSession(api *APIClient, id string, autoFix bool) (*state.Session, error) {
	if id == "" {
		return api.CreateSession(autoFix)
	}
	sessionID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_ID: %w", err)
	}
	return api.GetSession(sessionID)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
