package tui

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"vidshrink/config"
	"vidshrink/encoder"
)

// Tailwind shades. The progress bar gradient runs from colorPrimary to
// colorSuccess.
var (
	colorPrimary   = lipgloss.Color("#7C3AED")
	colorSecondary = lipgloss.Color("#06B6D4")
	colorSuccess   = lipgloss.Color("#10B981")
	colorError     = lipgloss.Color("#EF4444")
	colorWarning   = lipgloss.Color("#F59E0B")
	colorMuted     = lipgloss.Color("#6B7280")
	colorText      = lipgloss.Color("#F9FAFB")
	colorTextDim   = lipgloss.Color("#9CA3AF")
	colorBorder    = lipgloss.Color("#374151")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorText).
			Background(colorPrimary).
			Padding(0, 2).
			MarginBottom(1)

	sectionHeaderStyle = lipgloss.NewStyle().
				Foreground(colorSecondary).
				Bold(true).
				MarginTop(1)

	statsBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(1, 2).
			MarginTop(1)

	statLabelStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Width(10)

	statValueStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Bold(true)

	statUnitStyle = lipgloss.NewStyle().
			Foreground(colorTextDim)

	fileBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 2).
			MarginTop(1)

	fileLabelStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Width(8)

	filePathStyle = lipgloss.NewStyle().
			Foreground(colorTextDim)

	indexStyle = lipgloss.NewStyle().
			Foreground(colorSecondary).
			Bold(true).
			Width(5).
			Align(lipgloss.Right)

	promptStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Bold(true).
			MarginTop(1)

	successStyle = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(colorWarning).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			MarginTop(1)

	logBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1).
			MarginTop(1)

	// percent*Style color the percentage by thirds
	percentLowStyle = lipgloss.NewStyle().
			Foreground(colorWarning).
			Bold(true)

	percentMidStyle = lipgloss.NewStyle().
			Foreground(colorSecondary).
			Bold(true)

	percentHighStyle = lipgloss.NewStyle().
				Foreground(colorSuccess).
				Bold(true)
)

const (
	promptFile = "Enter the index of the file to compress"
	promptSize = "Enter the desired size in megabytes"
)

// placeholder stands in for a value ffmpeg has not reported yet
const placeholder = "—"

// metricText renders one ffmpeg progress reading. ffmpeg prints N/A for
// values it cannot measure; empty readings and the given zero forms show
// the placeholder.
func metricText(raw, value string, zero ...string) string {
	switch {
	case raw == "N/A" || value == "N/A":
		return "N/A"
	case value == "" || slices.Contains(zero, value):
		return placeholder
	}
	return value
}

func formatSpeed(raw, speed string) string {
	return metricText(raw, speed, "0x")
}

func formatBitrateDisplay(raw, bitrate string) string {
	return metricText(raw, bitrate)
}

func formatETADisplay(eta time.Duration, available bool) string {
	if available {
		return formatDuration(eta)
	}
	return placeholder
}

// formatPercentage shows "..." until the input duration is known
func formatPercentage(pct float64, total time.Duration) string {
	if total <= 0 {
		return "..."
	}
	return strconv.FormatFloat(encoder.ClampPercentage(pct), 'f', 1, 64) + "%"
}

func percentStyle(pct float64) lipgloss.Style {
	switch {
	case pct >= 66:
		return percentHighStyle
	case pct >= 33:
		return percentMidStyle
	default:
		return percentLowStyle
	}
}

// formatSizeDisplay is blank until ffmpeg reports a total_size
func formatSizeDisplay(size int64) string {
	if size <= 0 {
		return placeholder
	}
	return humanize.IBytes(uint64(size))
}

// View renders the TUI
func (m Model) View() string {
	var b strings.Builder

	title := titleStyle.Render(" ⚡ vidshrink ")
	b.WriteString(title + "\n")

	if m.Notice != "" && m.State != StateCompressing {
		if m.NoticeOK {
			b.WriteString(successStyle.Render("  ✓ "+m.Notice) + "\n")
		} else {
			b.WriteString(errorStyle.Render("  ✗ "+m.Notice) + "\n")
		}
	}

	switch m.State {
	case StateShowCatalog, StateShowResult:
		b.WriteString("\n" + statUnitStyle.Render("  Reading "+m.opts.InputDir+"...") + "\n")

	case StateAwaitFile:
		b.WriteString(m.renderCatalog())
		b.WriteString(promptStyle.Render(promptFile) + "\n")
		b.WriteString(m.Input.View() + "\n")

	case StateAwaitSize:
		b.WriteString(m.renderSelection())
		b.WriteString(promptStyle.Render(promptSize) + "\n")
		b.WriteString(m.Input.View() + "\n")

	case StateAwaitPreset:
		b.WriteString(m.renderSelection())
		b.WriteString(renderPresets())
		b.WriteString(m.Input.View() + "\n")

	case StateCompressing:
		b.WriteString(m.renderCompressingView())

	case StateEmptyCatalog:
		b.WriteString("\n" + warningStyle.Render("  ⊘ No files in "+m.opts.InputDir) + "\n")

	case StateFatal:
		b.WriteString(m.renderFatalView())
	}

	if m.ShowLogs {
		b.WriteString(m.renderLogs())
	}

	help := helpStyle.Render("  [L] Toggle logs  •  [Ctrl+C] Quit")
	b.WriteString("\n" + help + "\n")

	return b.String()
}

func (m Model) renderCatalog() string {
	var b strings.Builder
	b.WriteString(sectionHeaderStyle.Render("  Files in "+m.opts.InputDir) + "\n")
	for _, e := range m.Entries {
		line := indexStyle.Render(fmt.Sprintf("%d.", e.Index)) + " " +
			statValueStyle.Render(e.FileName) + "  " +
			statUnitStyle.Render(humanize.IBytes(uint64(e.Size)))
		b.WriteString(line + "\n")
	}
	return b.String()
}

func (m Model) renderSelection() string {
	var lines []string
	if m.Session.HasEntry {
		lines = append(lines, fileLabelStyle.Render("File")+filePathStyle.Render(m.Session.Entry.FileName))
	}
	if m.Session.SizeMB > 0 {
		lines = append(lines, fileLabelStyle.Render("Size")+filePathStyle.Render(fmt.Sprintf("%g MB", m.Session.SizeMB)))
	}
	if len(lines) == 0 {
		return ""
	}
	return fileBoxStyle.Render(strings.Join(lines, "\n")) + "\n"
}

// renderPresets lists every preset in its display color
func renderPresets() string {
	var b strings.Builder
	b.WriteString(sectionHeaderStyle.Render("  Presets") + "\n")
	for _, p := range config.AvailablePresets() {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(config.PresetColor(p)))
		name := style.Bold(true).Width(12).Render(string(p))
		b.WriteString("  " + name + style.Render(config.PresetDescription(p)) + "\n")
	}
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderCompressingView() string {
	var b strings.Builder
	st := m.Status
	prog := st.Progress

	b.WriteString("\n")
	if st.BitrateKbps > 0 {
		b.WriteString(statLabelStyle.Render("  Bitrate") +
			statValueStyle.Render(fmt.Sprintf("%dk", st.BitrateKbps)) +
			statUnitStyle.Render(" calculated") + "\n")
	}
	indicator := st.Indicator
	if indicator == "" {
		indicator = encoder.Indicator(0)
	}
	b.WriteString("  " + sectionHeaderStyle.UnsetMarginTop().Render(indicator) + "\n\n")

	// Progress bar - clamp to valid range
	percentage := prog.Percentage / 100
	if percentage > 1 {
		percentage = 1
	}
	if percentage < 0 {
		percentage = 0
	}
	hasProgressData := prog.Frame > 0 || prog.OutTimeUs > 0

	pctStr := "..."
	if hasProgressData {
		pctStr = formatPercentage(prog.Percentage, prog.TotalDuration)
	}
	pctStyled := percentStyle(prog.Percentage).Render(pctStr)
	b.WriteString("  " + m.Progress.ViewAs(percentage) + "  " + pctStyled + "\n")

	elapsed := st.Elapsed
	if elapsed == 0 && !m.StartTime.IsZero() {
		elapsed = time.Since(m.StartTime)
	}
	b.WriteString(statsBoxStyle.Render(buildStatsGrid(prog, elapsed.Round(time.Second))))
	b.WriteString("\n")
	b.WriteString(fileBoxStyle.Render(m.buildFilesSection()))
	b.WriteString("\n")

	return b.String()
}

func buildStatsGrid(prog encoder.Progress, elapsed time.Duration) string {
	var lines []string

	// Row 1: Frame and FPS
	frameVal := "—"
	if prog.Frame > 0 {
		frameVal = fmt.Sprintf("%d", prog.Frame)
	}
	fpsVal := "—"
	if prog.FPS > 0 {
		fpsVal = fmt.Sprintf("%.1f", prog.FPS)
	}
	lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top,
		statLabelStyle.Render("Frame"),
		statValueStyle.Width(12).Render(frameVal),
		statLabelStyle.Render("FPS"),
		statValueStyle.Render(fpsVal),
	))

	// Row 2: Speed and Bitrate
	lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top,
		statLabelStyle.Render("Speed"),
		statValueStyle.Width(12).Render(formatSpeed(prog.SpeedRaw, prog.Speed)),
		statLabelStyle.Render("Bitrate"),
		statValueStyle.Render(formatBitrateDisplay(prog.BitrateRaw, prog.Bitrate)),
	))

	// Row 3: Size and ETA
	lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top,
		statLabelStyle.Render("Size"),
		statValueStyle.Width(12).Render(formatSizeDisplay(prog.TotalSize)),
		statLabelStyle.Render("ETA"),
		statValueStyle.Render(formatETADisplay(prog.ETA, prog.ETAAvailable)),
	))

	lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top,
		statLabelStyle.Render("Elapsed"),
		statValueStyle.Render(formatDuration(elapsed)),
	))

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) buildFilesSection() string {
	// Truncate paths if too long
	maxPathLen := m.Width - 16
	if maxPathLen < 20 {
		maxPathLen = 60
	}

	req := m.Request
	inputDisplay := truncatePath(req.InputPath, maxPathLen)
	outputDisplay := truncatePath(req.OutputPath, maxPathLen)

	line1 := fileLabelStyle.Render("Input") + filePathStyle.Render(inputDisplay)
	line2 := fileLabelStyle.Render("Output") + filePathStyle.Render(outputDisplay)
	line3 := fileLabelStyle.Render("Preset") + lipgloss.NewStyle().
		Foreground(lipgloss.Color(config.PresetColor(req.Preset))).
		Render(string(req.Preset))

	return line1 + "\n" + line2 + "\n" + line3
}

// truncatePath shortens path to at most maxLen bytes. Wide limits keep both
// ends so the file name stays visible.
func truncatePath(path string, maxLen int) string {
	const ellipsis, gap = "...", " ... "
	switch {
	case len(path) <= maxLen:
		return path
	case maxLen < 20:
		return path[:maxLen-len(ellipsis)] + ellipsis
	}
	keep := (maxLen - len(gap)) / 2
	return path[:keep] + gap + path[len(path)-keep:]
}

func (m Model) renderFatalView() string {
	msg := "unknown error"
	if m.Err != nil {
		msg = m.Err.Error()
	}
	errBox := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorError).
		Padding(0, 2).
		Foreground(colorError).
		Render(msg)
	return "\n" + errorStyle.Render("  ✗ Cannot continue") + "\n\n" + errBox + "\n"
}

func (m Model) renderLogs() string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(sectionHeaderStyle.Render("  Log") + "\n")
	b.WriteString(logBoxStyle.Render(m.LogViewport.View()))
	return b.String()
}

// formatDuration renders d as m:ss, or h:mm:ss from an hour up
func formatDuration(d time.Duration) string {
	if d < 0 {
		return placeholder
	}
	secs := int64(d.Round(time.Second) / time.Second)
	h, m, sec := secs/3600, secs/60%60, secs%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%d:%02d", m, sec)
}
