// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/Thermoquad/rmsgstat/pkg/rmsg"
	"github.com/sirupsen/logrus"
)

// settings holds everything configurable by flag or configuration file.
type settings struct {
	Port        string
	Baud        int
	URL         string
	Username    string
	NoSSLVerify bool

	Role      string
	MaxInLen  int
	MaxOutLen int
	Strict    bool
	Tokens    []string
	Remarks   []string

	FirmwareVersion int
	FreeMemory      int

	LogLevel string
}

func defaultSettings() settings {
	return settings{
		Baud:            115200,
		Role:            "host",
		MaxInLen:        rmsg.DefaultMaxInLen,
		MaxOutLen:       rmsg.DefaultMaxOutLen,
		Strict:          true,
		FirmwareVersion: 1,
		FreeMemory:      1024,
		LogLevel:        "info",
	}
}

// config.toml key mapping to settings.
type fileConfig struct {
	Port            string   `toml:"port"`
	Baud            int      `toml:"baud"`
	URL             string   `toml:"url"`
	Username        string   `toml:"username"`
	NoSSLVerify     bool     `toml:"no_ssl_verify"`
	Role            string   `toml:"role"`
	MaxInLen        int      `toml:"max_in_len"`
	MaxOutLen       int      `toml:"max_out_len"`
	Strict          bool     `toml:"strict"`
	Tokens          []string `toml:"tokens"`
	Remarks         []string `toml:"remarks"`
	FirmwareVersion int      `toml:"firmware_version"`
	FreeMemory      int      `toml:"free_memory"`
	LogLevel        string   `toml:"log_level"`
}

// loadConfigFile overlays the TOML file at path onto s. Keys whose flag
// was given on the command line are left alone.
func loadConfigFile(path string, s *settings, changed func(flag string) bool) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("load config: unknown keys: %s", strings.Join(keys, ", "))
	}

	use := func(key, flag string) bool {
		return meta.IsDefined(key) && !changed(flag)
	}

	if use("port", "port") {
		s.Port = strings.TrimSpace(raw.Port)
	}
	if use("baud", "baud") {
		s.Baud = raw.Baud
	}
	if use("url", "url") {
		s.URL = strings.TrimSpace(raw.URL)
	}
	if use("username", "username") {
		s.Username = strings.TrimSpace(raw.Username)
	}
	if use("no_ssl_verify", "no-ssl-verify") {
		s.NoSSLVerify = raw.NoSSLVerify
	}
	if use("role", "role") {
		s.Role = strings.ToLower(strings.TrimSpace(raw.Role))
	}
	if use("max_in_len", "max-in") {
		s.MaxInLen = raw.MaxInLen
	}
	if use("max_out_len", "max-out") {
		s.MaxOutLen = raw.MaxOutLen
	}
	if use("strict", "strict") {
		s.Strict = raw.Strict
	}
	if meta.IsDefined("tokens") {
		s.Tokens = raw.Tokens
	}
	if meta.IsDefined("remarks") {
		s.Remarks = raw.Remarks
	}
	if use("firmware_version", "firmware-version") {
		s.FirmwareVersion = raw.FirmwareVersion
	}
	if use("free_memory", "free-memory") {
		s.FreeMemory = raw.FreeMemory
	}
	if use("log_level", "log-level") {
		s.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	return nil
}

// protocolConfig builds the protocol configuration for the given role.
func (s settings) protocolConfig(role rmsg.Role, log logrus.FieldLogger) (rmsg.Config, error) {
	cfg := rmsg.DefaultConfig()
	cfg.Role = role
	cfg.MaxInLen = s.MaxInLen
	cfg.MaxOutLen = s.MaxOutLen
	cfg.Strict = s.Strict
	cfg.Logger = log

	if len(s.Tokens) > 0 {
		tokens, err := rmsg.NewTokenTable(s.Tokens...)
		if err != nil {
			return rmsg.Config{}, err
		}
		cfg.Tokens = tokens
	}
	if len(s.Remarks) > 0 {
		cfg.Remarks = s.Remarks
	}
	if err := cfg.Validate(); err != nil {
		return rmsg.Config{}, err
	}
	return cfg, nil
}

// localRole parses the --role setting.
func (s settings) localRole() (rmsg.Role, error) {
	role, err := rmsg.ParseRole(strings.ToLower(s.Role))
	if err != nil {
		return role, fmt.Errorf("%w: %q (use host or client)", err, s.Role)
	}
	return role, nil
}
