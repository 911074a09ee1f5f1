package config

import (
	"errors"
	"fmt"
	"strings"

	coretypes "github.com/projecteru2/core/types"

	"github.com/projecteru2/podfleet/types"
)

var ErrMissingAPIKey = errors.New("RUNPOD_API_KEY is not set")

// Config holds global podfleet configuration. It is built once per process
// from defaults, the config file, environment and flags (lowest to highest
// precedence) and must not be modified afterwards.
//
// Top-level keys keep the names used by the legacy config.env so an existing
// file can be passed straight to --config.
type Config struct {
	// APIKey authenticates against the provider API.
	// Env: RUNPOD_API_KEY or PODFLEET_RUNPOD_API_KEY.
	APIKey string `json:"runpod_api_key" mapstructure:"runpod_api_key"`
	// APIURL is the provider GraphQL endpoint.
	// Default: https://api.runpod.io/graphql.
	APIURL string `json:"runpod_api_url" mapstructure:"runpod_api_url"`
	// Prefix is prepended to every machine name: pod name = "{prefix}-{machine}".
	// Env: PODFLEET_MACHINE_NAME_PREFIX. Default: "arena".
	Prefix string `json:"machine_name_prefix" mapstructure:"machine_name_prefix"`
	// Machines is the ordered allow-list of short machine names. Order
	// determines proxy listen ports and must only ever be appended to.
	// Accepts a list, a comma separated string, or a bracketed literal.
	Machines []string `json:"machine_name_list" mapstructure:"machine_name_list"`
	// ProxyBasePort is the listen port of the first allow-listed machine.
	// Default: 12000.
	ProxyBasePort int `json:"ssh_proxy_starting_port" mapstructure:"ssh_proxy_starting_port"`

	// SSHUser is the login user on pods.
	// Default: "root".
	SSHUser string `json:"ssh_user" mapstructure:"ssh_user"`
	// SSHHost is the public address of the proxy host, used by the
	// proxy-side SSH config.
	SSHHost string `json:"ssh_host" mapstructure:"ssh_host"`
	// SSHKeyPath is the identity file for connecting through the proxy.
	SSHKeyPath string `json:"ssh_key_path" mapstructure:"ssh_key_path"`
	// SharedSSHKeyPath is the identity file for direct pod connections.
	SharedSSHKeyPath string `json:"shared_ssh_key_path" mapstructure:"shared_ssh_key_path"`
	// SSHPublicKeyPath is read at create time and injected into new pods.
	// A missing file is a warning, not an error.
	SSHPublicKeyPath string `json:"ssh_public_key_path" mapstructure:"ssh_public_key_path"`
	// SSHBinary is the ssh client used for remote commands.
	// Default: "ssh".
	SSHBinary string `json:"ssh_binary" mapstructure:"ssh_binary"`
	// RemoteTimeoutSeconds bounds each remote command.
	// Default: 30.
	RemoteTimeoutSeconds int `json:"remote_timeout_seconds" mapstructure:"remote_timeout_seconds"`

	// CreateIntervalSeconds is the minimum delay between create calls.
	// Default: 2.
	CreateIntervalSeconds float64 `json:"create_interval_seconds" mapstructure:"create_interval_seconds"`
	// ActionIntervalSeconds is the minimum delay between stop/terminate calls.
	// Default: 1.
	ActionIntervalSeconds float64 `json:"action_interval_seconds" mapstructure:"action_interval_seconds"`

	// Template is the resource template for new pods.
	Template types.FleetTemplate `json:"template" mapstructure:"template"`
	// Proxy configures the nginx stream artifact.
	Proxy ProxyConfig `json:"proxy" mapstructure:"proxy"`
	// Schedule configures the rule scheduler.
	Schedule ScheduleConfig `json:"schedule" mapstructure:"schedule"`
	// Keys configures API key deployment onto pods.
	Keys KeysConfig `json:"keys" mapstructure:"keys"`

	// Log configuration, uses eru core's ServerLogConfig.
	Log *coretypes.ServerLogConfig `json:"log" mapstructure:"log"`
}

// ProxyConfig describes where the proxy artifact goes and how the daemon is reloaded.
type ProxyConfig struct {
	// ConfigPath is the nginx stream include rewritten on refresh.
	// Default: /etc/nginx/streams-enabled/proxy.conf.
	ConfigPath string `json:"config_path" mapstructure:"config_path"`
	// ReloadCommand is run after the file is written. Empty disables reload.
	// Default: ["sudo", "systemctl", "restart", "nginx"].
	ReloadCommand []string `json:"reload_command" mapstructure:"reload_command"`
	// AccessLog and ErrorLog are emitted into the stream config header.
	AccessLog string `json:"access_log" mapstructure:"access_log"`
	ErrorLog  string `json:"error_log" mapstructure:"error_log"`
}

// ScheduleConfig configures `schedule run`.
type ScheduleConfig struct {
	// File is the schedule document (JSON or YAML).
	// Default: /etc/vm_scheduler/schedule.json.
	File string `json:"file" mapstructure:"file"`
	// StateFile enables exactly-once firing per minute when set.
	StateFile string `json:"state_file" mapstructure:"state_file"`
	// WorkDir is the working directory for rule commands.
	WorkDir string `json:"work_dir" mapstructure:"work_dir"`
	// CommandTimeoutSeconds bounds each rule command. 0 means no limit.
	CommandTimeoutSeconds int `json:"command_timeout_seconds" mapstructure:"command_timeout_seconds"`
}

// KeysConfig configures `keys deploy`.
type KeysConfig struct {
	// Sources maps an environment variable name to a "hostname,key" CSV file.
	Sources map[string]string `json:"sources" mapstructure:"sources"`
	// RCFiles are the remote shell rc files the export line is appended to.
	RCFiles []string `json:"rc_files" mapstructure:"rc_files"`
}

// EnvSources returns Sources keyed by upper-cased variable name. Config
// loading lowercases map keys, so names are normalized here.
func (k KeysConfig) EnvSources() map[string]string {
	out := make(map[string]string, len(k.Sources))
	for env, path := range k.Sources {
		out[strings.ToUpper(env)] = path
	}
	return out
}

// RequireAPIKey returns ErrMissingAPIKey when no credential is configured.
func (c *Config) RequireAPIKey() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// Validate checks invariants that every command relies on.
func (c *Config) Validate() error {
	if c.Prefix == "" {
		return fmt.Errorf("machine_name_prefix must not be empty")
	}
	if c.ProxyBasePort <= 0 || c.ProxyBasePort > 65535 {
		return fmt.Errorf("ssh_proxy_starting_port %d out of range", c.ProxyBasePort)
	}
	if last := c.ProxyBasePort + len(c.Machines) - 1; last > 65535 {
		return fmt.Errorf("machine_name_list too long: last listen port %d exceeds 65535", last)
	}
	if c.CreateIntervalSeconds < 0 || c.ActionIntervalSeconds < 0 {
		return fmt.Errorf("call intervals must not be negative")
	}
	if c.RemoteTimeoutSeconds <= 0 {
		return fmt.Errorf("remote_timeout_seconds must be positive")
	}
	return nil
}
