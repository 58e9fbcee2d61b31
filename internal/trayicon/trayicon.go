// Package trayicon embeds the system tray icon asset, the way
// kluzzebass-gastrolog/backend/internal/frontend embeds its static assets
// with go:embed rather than reading them from disk at runtime.
package trayicon

import _ "embed"

//go:embed assets/icon.ico
var Data []byte
