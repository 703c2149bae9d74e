package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jwebster45206/modforge/pkg/chat"
	"github.com/jwebster45206/modforge/pkg/queue"
	"github.com/jwebster45206/modforge/pkg/state"
	"github.com/muesli/reflow/wordwrap"
)

const (
	AgentName       = "modforge"
	PlaceHolderText = "Describe a unit, or type /help..."
)

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config       *ConsoleConfig
	api          *APIClient
	session      *state.Session
	chatViewport viewport.Model
	metaViewport viewport.Model
	textarea     textarea.Model
	ready        bool
	width        int
	height       int
	autoFix      bool

	// Output of local commands, shown below the transcript.
	notices []string

	// In-flight request state
	loading      bool
	pendingID    string
	pendingInput string
	progressTick int

	showQuitModal bool
}

type submittedMsg struct {
	requestID string
	err       error
}

type statusMsg struct {
	status *queue.RequestStatus
	err    error
}

type sessionMsg struct {
	session *state.Session
	err     error
}

type noticeMsg struct {
	text string
	err  error
}

type pollMsg struct{}

type progressTickMsg struct{}

var (
	chatPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	agentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	addedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")) // green

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)
)

var separatorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("240")) // dark grey

const helpText = `Commands:
• <text>                  Generate a unit from a description
• /image PATH [text]      Generate a unit from an image
• /audio PATH text        Generate a unit that uses an audio clip
• /edit TEXT              Change the latest unit
• /rename TEXT            Rename the mod
• /show                   Print the latest unit file
• /validate               Check the latest unit file
• /copy                   Copy the latest unit file to the clipboard
• /export [DIR]           Download the mod as a zip archive
• /autofix on|off         Toggle the corrector pass
• /quit                   Quit`

func NewConsoleUI(cfg *ConsoleConfig, api *APIClient, s *state.Session) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 2000
	ta.SetWidth(50)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	chatVp := viewport.New(50, 20)
	chatVp.MouseWheelEnabled = true

	metaVp := viewport.New(20, 20)

	return ConsoleUI{
		config:       cfg,
		api:          api,
		session:      s,
		autoFix:      s.AutoFix,
		textarea:     ta,
		chatViewport: chatVp,
		metaViewport: metaVp,
	}
}

func writeMetadata(s *state.Session, autoFix bool) string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("MOD") + "\n\n")

	content.WriteString("Session:\n")
	content.WriteString(s.ID.String()[:8] + "...\n\n")

	name := "(no units yet)"
	if s.Mod != nil {
		name = s.Mod.Name
	}
	content.WriteString("Name:\n" + name + "\n\n")

	content.WriteString("Units:\n")
	if s.Mod == nil || len(s.Mod.Units) == 0 {
		content.WriteString("None\n")
	} else {
		for i, u := range s.Mod.Units {
			marker := "•"
			if i == len(s.Mod.Units)-1 {
				marker = "▶"
			}
			fmt.Fprintf(&content, "%s %s (%d img, %d snd)\n", marker, u.UnitName, len(u.Images), len(u.Sounds))
		}
	}

	fix := "off"
	if autoFix {
		fix = "on"
	}
	content.WriteString("\nAuto-fix: " + fix + "\n\n")

	content.WriteString("Keys:\n")
	content.WriteString("• Ctrl+C: Quit\n")
	content.WriteString("• Enter: Send\n")
	content.WriteString("• /help: Help\n")

	return content.String()
}

// writeChatContent rebuilds the transcript for the current viewport width.
func (m *ConsoleUI) writeChatContent() {
	chatWidth := m.chatViewport.Width - 6 // Account for left(3) + right(3) padding

	var content strings.Builder
	content.WriteString(titleStyle.Render("MODFORGE") + "\n\n")
	content.WriteString("Describe a unit and press Enter. Type /help for commands.\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", max(chatWidth-6, 1))) + "\n\n")

	for _, msg := range m.session.ChatHistory {
		content.WriteString(formatMessage(msg, chatWidth) + "\n\n")
	}
	for _, n := range m.notices {
		content.WriteString(n + "\n\n")
	}
	if m.loading {
		if m.pendingInput != "" {
			content.WriteString(formatMessage(chat.ChatMessage{Role: chat.ChatRoleUser, Content: m.pendingInput}, chatWidth) + "\n\n")
		}
		content.WriteString(m.renderProgressBar())
	}

	m.chatViewport.SetContent(content.String())
	m.chatViewport.GotoBottom()
}

func formatMessage(msg chat.ChatMessage, width int) string {
	wrap := max(width-len(AgentName)-2, 10)
	if msg.Role == chat.ChatRoleUser {
		text := msg.Content
		switch {
		case msg.ImageURL != "":
			text += " [image]"
		case msg.AudioURL != "":
			text += " [audio]"
		}
		return userStyle.Render("You: ") + wordwrap.String(text, wrap)
	}
	return agentStyle.Render(AgentName+": ") + wordwrap.String(msg.Content, wrap)
}

// renderDiff colors added and removed lines of a unit diff.
func renderDiff(diff string) string {
	lines := strings.Split(strings.TrimSuffix(diff, "\n"), "\n")
	for i, l := range lines {
		switch {
		case strings.HasPrefix(l, "+ "):
			lines[i] = addedStyle.Render(l)
		case strings.HasPrefix(l, "- "):
			lines[i] = errorStyle.Render(l)
		default:
			lines[i] = promptStyle.Render(l)
		}
	}
	return strings.Join(lines, "\n")
}

func (m *ConsoleUI) addNotice(text string) {
	m.notices = append(m.notices, text)
	m.writeChatContent()
}

func (m *ConsoleUI) resize() {
	chatWidth := int(float64(m.width)*0.75) - 4
	metaWidth := m.width - chatWidth - 6
	m.chatViewport.Width = chatWidth - 2
	m.chatViewport.Height = m.height - 7
	m.metaViewport.Width = metaWidth - 2
	m.metaViewport.Height = m.height - 4
	m.textarea.SetWidth(chatWidth - 4)
}

func (m ConsoleUI) Init() tea.Cmd {
	return textarea.Blink
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		mvCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.chatViewport, vpCmd = m.chatViewport.Update(msg)
		m.metaViewport, mvCmd = m.metaViewport.Update(msg)
		return m, tea.Batch(vpCmd, mvCmd)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.ready = true
		m.writeChatContent()
		m.metaViewport.SetContent(writeMetadata(m.session, m.autoFix))

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyEnter:
			input := strings.TrimSpace(m.textarea.Value())
			if input == "" {
				return m, nil
			}
			m.textarea.Reset()
			return m.handleInput(input)
		}

	case submittedMsg:
		if msg.err != nil {
			m.loading = false
			m.pendingInput = ""
			m.addNotice(errorStyle.Render("Error: " + msg.err.Error()))
			return m, nil
		}
		m.pendingID = msg.requestID
		return m, m.pollAfter()

	case pollMsg:
		return m, m.fetchStatus()

	case statusMsg:
		if msg.err != nil {
			m.loading = false
			m.addNotice(errorStyle.Render("Error: " + msg.err.Error()))
			return m, m.refreshSession()
		}
		if !msg.status.Status.Done() {
			return m, m.pollAfter()
		}
		m.loading = false
		m.pendingID = ""
		m.pendingInput = ""
		if msg.status.Diff != "" {
			m.notices = append(m.notices, renderDiff(msg.status.Diff))
		}
		return m, m.refreshSession()

	case sessionMsg:
		if msg.err != nil {
			m.addNotice(errorStyle.Render("Error: " + msg.err.Error()))
			return m, nil
		}
		m.session = msg.session
		m.writeChatContent()
		m.metaViewport.SetContent(writeMetadata(m.session, m.autoFix))

	case noticeMsg:
		if msg.err != nil {
			m.addNotice(errorStyle.Render("Error: " + msg.err.Error()))
		} else {
			m.addNotice(msg.text)
		}

	case progressTickMsg:
		if m.loading {
			m.progressTick++
			m.writeChatContent()
			return m, progressTick()
		}
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.chatViewport, vpCmd = m.chatViewport.Update(msg)
	m.metaViewport, mvCmd = m.metaViewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, mvCmd)
}

// command is a parsed line of input. Plain text has an empty name.
type command struct {
	name string
	arg  string
}

func parseCommand(input string) command {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return command{arg: input}
	}
	name, arg, _ := strings.Cut(input, " ")
	return command{name: strings.ToLower(name), arg: strings.TrimSpace(arg)}
}

// buildRequest turns a request command into the API request. Attachments
// are read from disk here.
func buildRequest(c command, autoFix bool) (chat.ChatRequest, error) {
	req := chat.ChatRequest{Message: c.arg, AutoFix: &autoFix}
	switch c.name {
	case "":
		req.Type = chat.RequestTypeGenerate
	case "/edit":
		req.Type = chat.RequestTypeEdit
	case "/rename":
		req.Type = chat.RequestTypeRename
	case "/image", "/audio":
		path, text, _ := strings.Cut(c.arg, " ")
		if path == "" {
			return req, fmt.Errorf("usage: %s PATH [text]", c.name)
		}
		dataURL, err := readAttachment(path)
		if err != nil {
			return req, err
		}
		req.Type = chat.RequestTypeGenerate
		req.Message = strings.TrimSpace(text)
		if c.name == "/image" {
			req.ImageURL = dataURL
		} else {
			req.AudioURL = dataURL
		}
	default:
		return req, fmt.Errorf("unknown command %s, type /help", c.name)
	}
	return req, req.Validate()
}

func (m ConsoleUI) handleInput(input string) (tea.Model, tea.Cmd) {
	c := parseCommand(input)
	latest := m.session.LatestUnit()

	switch c.name {
	case "/help":
		m.addNotice(titleStyle.Render("Help") + "\n" + helpText)
		return m, nil
	case "/quit":
		m.showQuitModal = true
		return m, nil
	case "/autofix":
		switch strings.ToLower(c.arg) {
		case "on":
			m.autoFix = true
		case "off":
			m.autoFix = false
		default:
			m.addNotice(errorStyle.Render("usage: /autofix on|off"))
			return m, nil
		}
		m.metaViewport.SetContent(writeMetadata(m.session, m.autoFix))
		return m, nil
	case "/show", "/copy", "/validate":
		if latest == nil {
			m.addNotice(errorStyle.Render("There is no unit yet."))
			return m, nil
		}
		switch c.name {
		case "/show":
			m.addNotice(titleStyle.Render(latest.IniFile.Name) + "\n" + latest.IniFile.Content)
		case "/copy":
			if err := clipboard.WriteAll(latest.IniFile.Content); err != nil {
				m.addNotice(errorStyle.Render("Error: " + err.Error()))
			} else {
				m.addNotice(promptStyle.Render("Copied " + latest.IniFile.Name + " to the clipboard."))
			}
		case "/validate":
			names := m.session.UnitNames()
			return m, m.validate(latest.IniFile.Content, names[:len(names)-1], len(latest.Sounds) > 0)
		}
		return m, nil
	case "/export":
		return m, m.export(c.arg)
	}

	if m.loading {
		m.addNotice(promptStyle.Render("Still working on the previous request."))
		return m, nil
	}
	req, err := buildRequest(c, m.autoFix)
	if err != nil {
		m.addNotice(errorStyle.Render("Error: " + err.Error()))
		return m, nil
	}

	m.loading = true
	m.progressTick = 0
	m.pendingInput = input
	m.writeChatContent()
	return m, tea.Batch(m.submit(req), progressTick())
}

func (m ConsoleUI) submit(req chat.ChatRequest) tea.Cmd {
	api, id := m.api, m.session.ID
	return func() tea.Msg {
		requestID, err := api.Submit(id, req)
		return submittedMsg{requestID, err}
	}
}

func (m ConsoleUI) pollAfter() tea.Cmd {
	return tea.Tick(m.config.PollInterval, func(time.Time) tea.Msg {
		return pollMsg{}
	})
}

func (m ConsoleUI) fetchStatus() tea.Cmd {
	api, id := m.api, m.pendingID
	return func() tea.Msg {
		st, err := api.RequestStatus(id)
		return statusMsg{st, err}
	}
}

func (m ConsoleUI) refreshSession() tea.Cmd {
	api, id := m.api, m.session.ID
	return func() tea.Msg {
		s, err := api.GetSession(id)
		return sessionMsg{s, err}
	}
}

func (m ConsoleUI) validate(content string, units []string, hasAudio bool) tea.Cmd {
	api := m.api
	return func() tea.Msg {
		resp, err := api.Validate(content, units, hasAudio)
		if err != nil {
			return noticeMsg{err: err}
		}
		return noticeMsg{text: formatValidation(resp)}
	}
}

func formatValidation(resp *validateResponse) string {
	var sb strings.Builder
	if resp.Result.IsValid {
		sb.WriteString(addedStyle.Render("Syntax OK"))
	} else {
		sb.WriteString(errorStyle.Render(resp.Result.Error))
	}
	if len(resp.Findings) == 0 {
		sb.WriteString("\nNo rule violations.")
	}
	for _, f := range resp.Findings {
		sb.WriteString("\n• " + f.String())
	}
	return sb.String()
}

func (m ConsoleUI) export(dir string) tea.Cmd {
	api, id := m.api, m.session.ID
	if dir == "" {
		dir = "."
	}
	return func() tea.Msg {
		data, name, err := api.Export(id)
		if err != nil {
			return noticeMsg{err: err}
		}
		path := filepath.Join(dir, filepath.Base(name))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return noticeMsg{err: err}
		}
		return noticeMsg{text: promptStyle.Render(fmt.Sprintf("Saved %s (%d bytes).", path, len(data)))}
	}
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				m.textarea.Focus()
				return m, textarea.Blink
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit?"))
	content.WriteString("\n\n")
	content.WriteString("Your session is kept on the server. Resume it with\nSESSION_ID=" + m.session.ID.String())
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(60).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}

	if !m.ready {
		return "\n  Initializing..."
	}

	chatWidth := int(float64(m.width)*0.75) - 4
	metaWidth := m.width - chatWidth - 6

	chatPanel := chatPanelStyle.Width(chatWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.chatViewport.View(),
			"",
			separatorStyle.Render(strings.Repeat("─", max(chatWidth-4, 1))),
			m.textarea.View(),
		),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, chatPanel, metaPanel)
}

// renderProgressBar creates an animated progress bar for loading states
func (m ConsoleUI) renderProgressBar() string {
	usable := m.chatViewport.Width - 6
	if usable <= 0 {
		usable = 30 // fallback before sizing
	}
	if usable > 80 {
		usable = 80
	} else if usable < 10 {
		usable = 10
	}

	const totalFrames = 40
	frame := m.progressTick % totalFrames
	filled := (frame * usable) / totalFrames

	var bar strings.Builder
	for i := 0; i < usable; i++ {
		if i < filled {
			bar.WriteString("█")
		} else if i == filled && frame%4 < 2 {
			bar.WriteString("▓") // Blinking effect at the progress point
		} else {
			bar.WriteString("░")
		}
	}
	return separatorStyle.Render(bar.String())
}

func progressTick() tea.Cmd {
	return tea.Tick(time.Millisecond*200, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}
