package main

import (
	"fmt"
	"sort"
)

// CommandInfo describes a CLI command.
type CommandInfo struct {
	Name string
	Desc string
	Run  func(cfg *Config, args []string) int
}

// commands is the registry of all available commands.
var commands = map[string]CommandInfo{
	"extension": {Name: "extension", Desc: "Print the extension base URL", Run: func(cfg *Config, args []string) int { return cmdExtension(cfg) }},
	"mode": {Name: "mode", Desc: "Select a popup mode and print the example page cookies", Run: func(cfg *Config, args []string) int {
		if len(args) < 1 {
			return cmdMissingArg(cfg, "usage: xdebug-e2e mode <disable|debug|profile|trace>")
		}
		return cmdMode(cfg, args[0])
	}},
	"settings": {Name: "settings", Desc: "Print the stored options", Run: func(cfg *Config, args []string) int { return cmdSettings(cfg) }},
}

func sortedCommands() []CommandInfo {
	out := make([]CommandInfo, 0, len(commands))
	for _, c := range commands {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func cmdMissingArg(cfg *Config, usage string) int {
	fmt.Fprintln(cfg.Stderr, usage)
	return ExitError
}
