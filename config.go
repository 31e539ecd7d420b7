// SPDX-License-Identifier: MPL-2.0

package threadbare

import (
	"os"

	"github.com/pelletier/go-toml/v2"
)

// fileDefaults is the shape of an on-disk defaults file: a flat table
// of the same keys Settings/Local/Remote read from the active scope.
type fileDefaults struct {
	User             string `toml:"user"`
	HostString       string `toml:"host_string"`
	Port             int    `toml:"port"`
	KeyFilename      string `toml:"key_filename"`
	UseShell         *bool  `toml:"use_shell"`
	UseSudo          bool   `toml:"use_sudo"`
	RemoteWorkingDir string `toml:"remote_working_dir"`
	Quiet            bool   `toml:"quiet"`
	DiscardOutput    bool   `toml:"discard_output"`
	CombineStderr    bool   `toml:"combine_stderr"`
	WarnOnly         *bool  `toml:"warn_only"`
	AbortOnPrompts   bool   `toml:"abort_on_prompts"`
	PoolSize         int    `toml:"pool_size"`
}

// LoadDefaults reads a TOML file at path and installs its contents as
// the root Config Scope's defaults via SetDefaults. It is the toolkit's
// analogue of the teacher's viper-backed config.Load, scaled down to a
// single flat table since this package has no nested sections of its
// own.
func LoadDefaults(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var parsed fileDefaults
	if err := toml.Unmarshal(data, &parsed); err != nil {
		return err
	}

	defaults := map[string]any{}
	if parsed.User != "" {
		defaults[optUser] = parsed.User
	}
	if parsed.HostString != "" {
		defaults[optHostString] = parsed.HostString
	}
	if parsed.Port != 0 {
		defaults[optPort] = parsed.Port
	}
	if parsed.KeyFilename != "" {
		defaults[optKeyFilename] = parsed.KeyFilename
	}
	if parsed.UseShell != nil {
		defaults[optUseShell] = *parsed.UseShell
	}
	defaults[optUseSudo] = parsed.UseSudo
	if parsed.RemoteWorkingDir != "" {
		defaults[optRemoteWorkingDir] = parsed.RemoteWorkingDir
	}
	defaults[optQuiet] = parsed.Quiet
	defaults[optDiscardOutput] = parsed.DiscardOutput
	defaults[optCombineStderr] = parsed.CombineStderr
	if parsed.WarnOnly != nil {
		defaults[optWarnOnly] = *parsed.WarnOnly
	}
	defaults[optAbortOnPrompts] = parsed.AbortOnPrompts
	if parsed.PoolSize != 0 {
		defaults[optPoolSize] = parsed.PoolSize
	}

	return SetDefaults(defaults)
}
