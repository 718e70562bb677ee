// Package ui provides terminal render helpers for the depgraph CLI.
package ui

import "github.com/charmbracelet/lipgloss"

var (
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	dimStyle    = lipgloss.NewStyle().Faint(true)
	boldStyle   = lipgloss.NewStyle().Bold(true)
)

// RenderPass renders success markers (green).
func RenderPass(s string) string { return passStyle.Render(s) }

// RenderWarn renders warning markers (yellow).
func RenderWarn(s string) string { return warnStyle.Render(s) }

// RenderFail renders failure markers (red).
func RenderFail(s string) string { return failStyle.Render(s) }

// RenderAccent renders informational accents (cyan).
func RenderAccent(s string) string { return accentStyle.Render(s) }

// RenderDim renders de-emphasized text.
func RenderDim(s string) string { return dimStyle.Render(s) }

// RenderBold renders emphasized text.
func RenderBold(s string) string { return boldStyle.Render(s) }
