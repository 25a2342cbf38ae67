package color

import (
	"fmt"
	"os"
	"strings"
)

// ANSI color codes
const (
	Reset  = "\033[0m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Cyan   = "\033[36m"
	Bold   = "\033[1m"
)

// Color represents a colorizer that can be enabled or disabled
type Color struct {
	enabled bool
}

// New creates a new Color instance
func New(enabled bool) *Color {
	return &Color{enabled: enabled && shouldEnableColor()}
}

// shouldEnableColor determines if color should be enabled based on environment
func shouldEnableColor() bool {
	// Check NO_COLOR environment variable (https://no-color.org/)
	if os.Getenv("NO_COLOR") != "" {
		return false
	}

	term := os.Getenv("TERM")
	if term == "dumb" || term == "" {
		return false
	}

	return true
}

// Grant colors a string to indicate a granted permission (green)
func (c *Color) Grant(text string) string {
	if !c.enabled {
		return text
	}
	return Green + text + Reset
}

// Revoke colors a string to indicate a revoked actor (red)
func (c *Color) Revoke(text string) string {
	if !c.enabled {
		return text
	}
	return Red + text + Reset
}

// Warn colors a string yellow
func (c *Color) Warn(text string) string {
	if !c.enabled {
		return text
	}
	return Yellow + text + Reset
}

// Bold makes text bold
func (c *Color) Bold(text string) string {
	if !c.enabled {
		return text
	}
	return Bold + text + Reset
}

// Cyan colors text cyan (for headers and labels)
func (c *Color) Cyan(text string) string {
	if !c.enabled {
		return text
	}
	return Cyan + text + Reset
}

// FormatGrantLine formats one permission line in plan output
func (c *Color) FormatGrantLine(privilege, object, actor string) string {
	return fmt.Sprintf("  %s %s ON %s TO %s", c.Grant("+"), privilege, object, actor)
}

// FormatRevokeLine formats one revoked actor line in plan output
func (c *Color) FormatRevokeLine(actor string) string {
	return fmt.Sprintf("  %s %s", c.Revoke("-"), actor)
}

// FormatPlanHeader formats the main plan header
func (c *Color) FormatPlanHeader(grants, revoked int) string {
	parts := []string{
		c.Grant(fmt.Sprintf("%d grants", grants)),
		c.Revoke(fmt.Sprintf("%d actors revoked", revoked)),
	}
	return fmt.Sprintf("Plan: %s.", strings.Join(parts, ", "))
}
