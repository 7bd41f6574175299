package main

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/wrenhall/dchwatch/internal/hnap"
)

// Color palette for command output
var (
	successColor = lipgloss.Color("#43BF6D") // Green - online, detections
	errorColor   = lipgloss.Color("#FF5555") // Red - failures
	warningColor = lipgloss.Color("#FFA500") // Orange - rebooting, degraded
	mutedColor   = lipgloss.Color("#626262") // Gray - labels, secondary info
)

var (
	labelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(18)

	headerStyle = lipgloss.NewStyle().
			Bold(true)

	onlineStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	degradedStyle = lipgloss.NewStyle().
			Foreground(warningColor).
			Bold(true)

	failedStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)

	detectionStyle = lipgloss.NewStyle().
			Foreground(successColor)
)

// renderStatus colors a device status by how worried the user should be
func renderStatus(status hnap.DeviceStatus) string {
	switch status {
	case hnap.StatusOnline:
		return onlineStyle.Render(status.String())
	case hnap.StatusRebooting, hnap.StatusNeedsReboot, hnap.StatusInitializing, hnap.StatusUnknown:
		return degradedStyle.Render(status.String())
	default:
		return failedStyle.Render(status.String())
	}
}
