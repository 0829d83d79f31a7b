// Package systemd renders unit files for running budgetwatch as a service.
package systemd

import (
	"fmt"
	"strings"
)

// Modes that can run under systemd.
const (
	ModeServe  = "serve"
	ModeDaemon = "daemon"
)

// UnitName returns the unit file name for mode.
func UnitName(mode string) string {
	return "budgetwatch-" + mode + ".service"
}

// Unit returns the systemd unit for mode. binary is the absolute path of the
// budgetwatch executable and configPath the config it is started with.
func Unit(mode, binary, configPath string) (string, error) {
	var desc string
	switch mode {
	case ModeServe:
		desc = "Budgetwatch gRPC server"
	case ModeDaemon:
		desc = "Budgetwatch inbox daemon"
	default:
		return "", fmt.Errorf("unknown mode %q (expected %s or %s)", mode, ModeServe, ModeDaemon)
	}
	if !strings.HasPrefix(binary, "/") {
		return "", fmt.Errorf("binary path must be absolute: %s", binary)
	}

	exec := binary + " " + mode
	if configPath != "" {
		exec += " --config " + configPath
	}

	return fmt.Sprintf(`[Unit]
Description=%s
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
ExecStart=%s
Restart=on-failure
RestartSec=2
NoNewPrivileges=true
PrivateTmp=true

[Install]
WantedBy=multi-user.target
`, desc, exec), nil
}
