// Package tui implements the calibscope terminal dashboard.
//
// Built with Charmbracelet's BubbleTea and Lipgloss. Blocking work
// (pose capture, solving, saving, store queries) runs in tea.Cmds;
// the model only ever reads session snapshots.
//
// Component architecture:
//
//	model.go      root model, message routing, Init/Update/View
//	theme.go      centralized color + style definitions
//	header.go     top bar with device context, footer with key hints
//	devicelist.go device selector (initial screen)
//	handeye.go    hand-eye session: camera, intrinsic, poses, result
//	stats.go      joint statistics: table, spread bars, sparklines
//	helpers.go    truncation, vector formatting, sparklines
package tui
