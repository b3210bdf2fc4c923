package tui

import (
	"strings"

	catppuccin "github.com/catppuccin/go"
	"github.com/charmbracelet/lipgloss"

	"cc_session_hub/internal/config"
)

// Styles holds every style the browser renders with, derived from one
// catppuccin flavour and the configured tool groups
type Styles struct {
	flavor catppuccin.Flavor
	groups *config.Config

	Title             lipgloss.Style
	Status            lipgloss.Style
	ActiveIndicator   lipgloss.Style
	InactiveIndicator lipgloss.Style
	Error             lipgloss.Style

	ActiveTab   lipgloss.Style
	InactiveTab lipgloss.Style
	TabGap      lipgloss.Style

	Selected lipgloss.Style
	Normal   lipgloss.Style
	Muted    lipgloss.Style
	Help     lipgloss.Style
	Badge    lipgloss.Style

	User      lipgloss.Style
	Assistant lipgloss.Style
	Thinking  lipgloss.Style

	Label        lipgloss.Style
	Path         lipgloss.Style
	Danger       lipgloss.Style
	DangerHeader lipgloss.Style
	Warning      lipgloss.Style
	Addition     lipgloss.Style
	Deletion     lipgloss.Style
}

// flavorFor maps a theme name onto a catppuccin flavour, defaulting to mocha
func flavorFor(theme string) catppuccin.Flavor {
	switch strings.ToLower(theme) {
	case "latte":
		return catppuccin.Latte
	case "frappe":
		return catppuccin.Frappe
	case "macchiato":
		return catppuccin.Macchiato
	default:
		return catppuccin.Mocha
	}
}

// flavorColor resolves a catppuccin colour name. Unknown names map to text.
func flavorColor(f catppuccin.Flavor, name string) lipgloss.Color {
	var c catppuccin.Color
	switch strings.ToLower(name) {
	case "rosewater":
		c = f.Rosewater()
	case "flamingo":
		c = f.Flamingo()
	case "pink":
		c = f.Pink()
	case "mauve":
		c = f.Mauve()
	case "red":
		c = f.Red()
	case "maroon":
		c = f.Maroon()
	case "peach":
		c = f.Peach()
	case "yellow":
		c = f.Yellow()
	case "green":
		c = f.Green()
	case "teal":
		c = f.Teal()
	case "sky":
		c = f.Sky()
	case "sapphire":
		c = f.Sapphire()
	case "blue":
		c = f.Blue()
	case "lavender":
		c = f.Lavender()
	case "subtext1":
		c = f.Subtext1()
	case "subtext0":
		c = f.Subtext0()
	case "overlay2":
		c = f.Overlay2()
	case "overlay1":
		c = f.Overlay1()
	case "overlay0":
		c = f.Overlay0()
	case "surface2":
		c = f.Surface2()
	case "surface1":
		c = f.Surface1()
	case "surface0":
		c = f.Surface0()
	default:
		c = f.Text()
	}
	return lipgloss.Color(c.Hex)
}

// NewStyles builds the style set for cfg's theme
func NewStyles(cfg *config.Config) Styles {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	f := flavorFor(cfg.Theme)
	hex := func(c catppuccin.Color) lipgloss.Color { return lipgloss.Color(c.Hex) }

	muted := lipgloss.NewStyle().Foreground(hex(f.Overlay1()))
	return Styles{
		flavor: f,
		groups: cfg,

		Title:             lipgloss.NewStyle().Bold(true).Foreground(hex(f.Mauve())),
		Status:            muted,
		ActiveIndicator:   lipgloss.NewStyle().Bold(true).Foreground(hex(f.Green())),
		InactiveIndicator: muted,
		Error:             lipgloss.NewStyle().Bold(true).Padding(1).Foreground(hex(f.Red())),

		ActiveTab: lipgloss.NewStyle().Bold(true).Padding(0, 2).
			Background(hex(f.Mauve())).Foreground(hex(f.Base())),
		InactiveTab: muted.Padding(0, 2),
		TabGap:      lipgloss.NewStyle().Foreground(hex(f.Surface2())),

		Selected: lipgloss.NewStyle().Bold(true).
			Background(hex(f.Surface0())).Foreground(hex(f.Text())),
		Normal: lipgloss.NewStyle().Foreground(hex(f.Text())),
		Muted:  muted,
		Help:   muted,
		Badge: lipgloss.NewStyle().Padding(0, 1).
			Background(hex(f.Surface1())).Foreground(hex(f.Text())),

		User:      lipgloss.NewStyle().Bold(true).Foreground(hex(f.Blue())),
		Assistant: lipgloss.NewStyle().Bold(true).Foreground(hex(f.Green())),
		Thinking:  muted.Italic(true),

		Label:        lipgloss.NewStyle().Bold(true).Foreground(hex(f.Subtext1())),
		Path:         lipgloss.NewStyle().Foreground(hex(f.Sapphire())),
		Danger:       lipgloss.NewStyle().Foreground(hex(f.Red())),
		DangerHeader: lipgloss.NewStyle().Bold(true).Foreground(hex(f.Red())),
		Warning:      lipgloss.NewStyle().Foreground(hex(f.Yellow())),
		Addition:     lipgloss.NewStyle().Foreground(hex(f.Green())),
		Deletion:     lipgloss.NewStyle().Foreground(hex(f.Red())),
	}
}

// CodeBlock frames command text and file content
func (s Styles) CodeBlock(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Width(max(width, 1)).
		Padding(0, 1).
		Background(lipgloss.Color(s.flavor.Mantle().Hex)).
		Foreground(lipgloss.Color(s.flavor.Text().Hex))
}

// DetailHeader is the title bar of the detail panel
func (s Styles) DetailHeader(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Width(max(width, 1)).
		Bold(true).
		Foreground(lipgloss.Color(s.flavor.Mauve().Hex)).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(lipgloss.Color(s.flavor.Surface2().Hex))
}

// ColumnHeader renders the header row above a list
func (s Styles) ColumnHeader(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Width(max(width, 1)).
		Bold(true).
		Foreground(lipgloss.Color(s.flavor.Subtext0().Hex))
}

// ForPattern styles a permission pattern by the first tool group that
// matches it
func (s Styles) ForPattern(pattern string) lipgloss.Style {
	style := s.Normal
	if s.groups == nil {
		return style
	}
	group := s.groups.GetToolGroup(pattern)
	if group == nil {
		return style
	}
	style = lipgloss.NewStyle().Foreground(flavorColor(s.flavor, group.Color))
	if group.Bold {
		style = style.Bold(true)
	}
	return style
}

// GroupName returns the name of the tool group a pattern falls in
func (s Styles) GroupName(pattern string) string {
	if s.groups == nil {
		return ""
	}
	if group := s.groups.GetToolGroup(pattern); group != nil {
		return group.Name
	}
	return ""
}

// Excluded reports whether tool calls with this pattern are hidden
func (s Styles) Excluded(pattern string) bool {
	return s.groups != nil && s.groups.ShouldExclude(pattern)
}

// IsDangerous reports whether a pattern falls in the dangerous group
func (s Styles) IsDangerous(pattern string) bool {
	return s.GroupName(pattern) == "dangerous"
}

// RoleStyle styles a message role label
func (s Styles) RoleStyle(role string) lipgloss.Style {
	if role == "user" {
		return s.User
	}
	return s.Assistant
}
