package main

import (
	"fmt"
	"os"
	"strings"
)

// uiMode is the --ui setting.
type uiMode uint8

const (
	uiAuto uiMode = iota
	uiOn
	uiOff
)

var uiModes = map[string]uiMode{"": uiAuto, "auto": uiAuto, "on": uiOn, "off": uiOff}

func readUIMode(value string) (uiMode, error) {
	mode, ok := uiModes[strings.ToLower(strings.TrimSpace(value))]
	if !ok {
		return uiAuto, fmt.Errorf("invalid --ui value %q (expected auto|on|off)", value)
	}
	return mode, nil
}

// shouldUseTUI decides for the progress view, which renders on stderr.
func shouldUseTUI(mode uiMode) bool {
	if mode == uiAuto {
		return isTerminal(os.Stderr)
	}
	return mode == uiOn
}
