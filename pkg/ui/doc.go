// Package ui holds the terminal output of the cyarchive CLI: colored
// messages, the single-line progress display and completion notifications.
// Everything writes to a swappable writer and honours quiet mode.
package ui
