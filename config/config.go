package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	configDir  = ".godbg"
	configFile = "config.yml"
)

// User configuration loaded from ~/.godbg/config.yml.  Missing file or
// fields fall back to defaults; a malformed file is an error so typos
// don't silently disable settings.
type Config struct {
	// Command aliases, e.g. c: [continue].
	Aliases map[string][]string `yaml:"aliases"`

	// Readline history location.  Defaults to ~/.godbg/history.
	HistoryFile string `yaml:"history-file"`

	// Number of instructions printed by the disassemble command.
	DisassembleInstructionCount int `yaml:"disassemble-instruction-count"`

	// Number of bytes printed by the memory read command.
	MemoryReadByteCount int `yaml:"memory-read-byte-count"`

	// Log verbosity for the debugger process itself (panic, fatal, error,
	// warn, info, debug, trace).
	LogLevel string `yaml:"log-level"`
}

func defaultConfig() *Config {
	return &Config{
		Aliases:                     map[string][]string{},
		DisassembleInstructionCount: 5,
		MemoryReadByteCount:         32,
		LogLevel:                    "warn",
	}
}

func configPath(fileName string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate home directory: %w", err)
	}

	return filepath.Join(home, configDir, fileName), nil
}

// Loads the config file, or returns the defaults when the file does not
// exist.
func LoadConfig() (*Config, error) {
	config := defaultConfig()

	path, err := configPath(configFile)
	if err != nil {
		return config, nil
	}

	return LoadConfigFile(path)
}

func LoadConfigFile(path string) (*Config, error) {
	config := defaultConfig()

	content, err := os.ReadFile(path)
	if err == nil {
		err = yaml.Unmarshal(content, config)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if config.HistoryFile == "" {
		historyPath, err := configPath("history")
		if err == nil {
			config.HistoryFile = historyPath
		}
	}

	return config, nil
}

// Expands a command alias.  Non-alias commands are returned unchanged.
func (config *Config) ExpandAlias(args []string) []string {
	if len(args) == 0 {
		return args
	}

	replacement, ok := config.Aliases[args[0]]
	if !ok {
		return args
	}

	expanded := make([]string, 0, len(replacement)+len(args)-1)
	expanded = append(expanded, replacement...)
	expanded = append(expanded, args[1:]...)
	return expanded
}
