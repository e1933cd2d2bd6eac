// Package ui renders diagnostic output for the esp32aq command.
//
// A Report prints in one of three formats. FormatPlain is the line oriented
// output scripts parse; FormatStyled draws a lipgloss result box with
// troubleshooting tips on failure; FormatJSON is for tooling.
//
// WatchModel is a Bubble Tea program that polls one device and redraws its
// readings in place, colored by air quality level.
package ui
