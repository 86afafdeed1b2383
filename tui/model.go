package tui

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"vidshrink/catalog"
	"vidshrink/config"
	"vidshrink/encoder"
	"vidshrink/logging"
)

// State represents the current step of the prompt cycle
type State int

const (
	StateShowCatalog State = iota
	StateAwaitFile
	StateAwaitSize
	StateAwaitPreset
	StateCompressing
	StateShowResult
	StateEmptyCatalog
	StateFatal
)

func (s State) String() string {
	switch s {
	case StateShowCatalog:
		return "show-catalog"
	case StateAwaitFile:
		return "await-file"
	case StateAwaitSize:
		return "await-size"
	case StateAwaitPreset:
		return "await-preset"
	case StateCompressing:
		return "compressing"
	case StateShowResult:
		return "show-result"
	case StateEmptyCatalog:
		return "empty-catalog"
	case StateFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Compressor runs one compression; *encoder.Compressor satisfies it
type Compressor interface {
	Compress(ctx context.Context, req encoder.Request, notify func(encoder.Status)) encoder.Result
}

// Lister lists the input directory; catalog.List by default
type Lister func(dir string) ([]catalog.Entry, error)

// Options configures a Model
type Options struct {
	InputDir   string
	OutputDir  string
	Compressor Compressor
	Lister     Lister
	// Logs feeds the log panel; may be nil
	Logs   *logging.Ring
	Logger *slog.Logger
	// Context bounds the whole session; quitting cancels it
	Context context.Context
}

// catalogMsg carries a fresh listing of the input directory
type catalogMsg struct {
	entries []catalog.Entry
	err     error
}

// statusMsg is a notifier tick from the running compression
type statusMsg encoder.Status

// resultMsg is the final outcome of a compression
type resultMsg encoder.Result

// eventsClosedMsg is sent once the compression goroutine has finished
type eventsClosedMsg struct{}

// Model is the Bubble Tea model for the interactive session
type Model struct {
	opts   Options
	ctx    context.Context
	cancel context.CancelFunc

	State       State
	Session     Session
	Entries     []catalog.Entry
	Input       textinput.Model
	Progress    progress.Model
	LogViewport viewport.Model
	ShowLogs    bool
	Width       int
	Height      int

	// Notice is shown above the catalog after a restart
	Notice   string
	NoticeOK bool

	Request   encoder.Request
	Status    encoder.Status
	Result    *encoder.Result
	Err       error
	StartTime time.Time

	events <-chan tea.Msg
	// inflight is shared by every copy of the model
	inflight *sync.WaitGroup
}

// NewModel creates a new session model
func NewModel(opts Options) Model {
	if opts.Lister == nil {
		opts.Lister = catalog.List
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	parent := opts.Context
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	prog := progress.New(
		progress.WithGradient("#7C3AED", "#10B981"),
		progress.WithWidth(50),
		progress.WithoutPercentage(),
	)

	vp := viewport.New(80, 12)
	vp.SetContent("")

	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 64

	return Model{
		opts:        opts,
		ctx:         ctx,
		cancel:      cancel,
		State:       StateShowCatalog,
		Input:       ti,
		Progress:    prog,
		LogViewport: vp,
		inflight:    &sync.WaitGroup{},
	}
}

// Init loads the first catalog
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.loadCatalog())
}

func (m Model) loadCatalog() tea.Cmd {
	list, dir := m.opts.Lister, m.opts.InputDir
	return func() tea.Msg {
		entries, err := list(dir)
		return catalogMsg{entries: entries, err: err}
	}
}

// waitForEvent blocks on the compression channel for the next message
func waitForEvent(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return msg
	}
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.cancel()
			return m, tea.Quit
		case "enter":
			if m.awaitingInput() {
				return m.submit()
			}
		case "l", "L":
			if !m.awaitingInput() || m.Input.Value() == "" {
				m.ShowLogs = !m.ShowLogs
				m.refreshLogs()
				return m, nil
			}
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Progress.Width = msg.Width - 20
		m.LogViewport.Width = msg.Width - 4
		m.LogViewport.Height = max(msg.Height-20, 0)

	case catalogMsg:
		return m.applyCatalog(msg)

	case statusMsg:
		m.Status = encoder.Status(msg)
		m.refreshLogs()
		return m, waitForEvent(m.events)

	case resultMsg:
		res := encoder.Result(msg)
		m.Result = &res
		m.State = StateShowResult
		m.Notice = res.Message
		m.NoticeOK = res.OK
		m.Session.Reset()
		m.refreshLogs()
		return m, tea.Batch(waitForEvent(m.events), m.loadCatalog())

	case eventsClosedMsg:
		m.events = nil
		return m, nil
	}

	if m.awaitingInput() {
		var cmd tea.Cmd
		m.Input, cmd = m.Input.Update(msg)
		cmds = append(cmds, cmd)
	}

	// Update viewport if showing logs
	if m.ShowLogs {
		var cmd tea.Cmd
		m.LogViewport, cmd = m.LogViewport.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) awaitingInput() bool {
	switch m.State {
	case StateAwaitFile, StateAwaitSize, StateAwaitPreset:
		return true
	}
	return false
}

func (m Model) applyCatalog(msg catalogMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.State = StateFatal
		m.Err = msg.err
		m.opts.Logger.Error("input directory unreadable", "dir", m.opts.InputDir, "error", msg.err)
		m.cancel()
		return m, tea.Quit
	}
	if len(msg.entries) == 0 {
		m.State = StateEmptyCatalog
		m.opts.Logger.Info("input directory is empty", "dir", m.opts.InputDir)
		m.cancel()
		return m, tea.Quit
	}
	m.Entries = msg.entries
	m.State = StateAwaitFile
	return m, m.resetInput()
}

func (m *Model) resetInput() tea.Cmd {
	m.Input.Reset()
	return m.Input.Focus()
}

// submit consumes the typed line for the current prompt
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := m.Input.Value()

	switch m.State {
	case StateAwaitFile:
		if err := m.Session.SelectFile(m.Entries, text); err != nil {
			return m.restart(noticeFor(err, text))
		}
		m.Notice = ""
		m.State = StateAwaitSize
		return m, m.resetInput()

	case StateAwaitSize:
		if err := m.Session.SetSize(text); err != nil {
			return m.restart(noticeFor(err, text))
		}
		m.State = StateAwaitPreset
		return m, m.resetInput()

	case StateAwaitPreset:
		if err := m.Session.SetPreset(text); err != nil {
			return m.restart(noticeFor(err, text))
		}
		return m.startCompression()
	}
	return m, nil
}

// restart drops the current cycle's choices and lists the catalog again
func (m Model) restart(notice string) (tea.Model, tea.Cmd) {
	m.opts.Logger.Warn("input rejected", "state", m.State.String(), "notice", notice)
	m.Notice = notice
	m.NoticeOK = false
	m.Session.Reset()
	m.Entries = nil
	m.State = StateShowCatalog
	m.Input.Reset()
	m.Input.Blur()
	return m, m.loadCatalog()
}

// noticeFor turns a rejected input into the message shown after the restart
func noticeFor(err error, text string) string {
	text = strings.TrimSpace(text)
	switch {
	case errors.Is(err, catalog.ErrInvalidSelection):
		return "There is no file with index " + quoteInput(text)
	case encoder.IsInvalidSize(err):
		return "Invalid size " + quoteInput(text) + ": enter a positive number of megabytes"
	case errors.Is(err, config.ErrUnknownPreset):
		return "No such preset " + quoteInput(text)
	default:
		return err.Error()
	}
}

func quoteInput(text string) string {
	return `"` + text + `"`
}

// startCompression runs the compression off the UI goroutine and streams
// its status ticks and final result back through a channel. Status ticks
// are dropped when the buffer is full; the result is always delivered
// unless the session is shutting down.
func (m Model) startCompression() (tea.Model, tea.Cmd) {
	m.State = StateCompressing
	m.Input.Blur()
	m.Result = nil
	m.Status = encoder.Status{}
	m.StartTime = time.Now()

	req := m.Session.Request(m.opts.OutputDir)
	m.Request = req
	ctx, comp := m.ctx, m.opts.Compressor
	ch := make(chan tea.Msg, 16)
	m.events = ch

	m.inflight.Add(1)
	go func() {
		defer m.inflight.Done()
		defer close(ch)
		res := comp.Compress(ctx, req, func(s encoder.Status) {
			select {
			case ch <- statusMsg(s):
			default:
			}
		})
		select {
		case ch <- resultMsg(res):
		case <-ctx.Done():
		}
	}()

	return m, waitForEvent(ch)
}

func (m *Model) refreshLogs() {
	if m.opts.Logs == nil {
		return
	}
	lines := m.opts.Logs.Lines()
	if len(lines) > 0 {
		m.LogViewport.SetContent(strings.Join(lines, "\n"))
		m.LogViewport.GotoBottom()
	}
}

// Wait blocks until the compression started by this session, if any, has
// returned. After a quit that means ffmpeg has exited and its partial
// output is gone.
func (m Model) Wait() {
	if m.inflight != nil {
		m.inflight.Wait()
	}
}

// InputDir returns the directory the catalog is read from
func (m Model) InputDir() string {
	return m.opts.InputDir
}
