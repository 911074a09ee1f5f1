package config

import (
	coretypes "github.com/projecteru2/core/types"

	"github.com/projecteru2/podfleet/types"
)

const DefaultAPIURL = "https://api.runpod.io/graphql"

// DefaultConfig returns the built-in configuration. The template mirrors the
// pods the fleet has historically run.
func DefaultConfig() *Config {
	return &Config{
		APIURL:                DefaultAPIURL,
		Prefix:                "arena",
		ProxyBasePort:         12000, //nolint:mnd
		SSHUser:               "root",
		SSHBinary:             "ssh",
		RemoteTimeoutSeconds:  30,  //nolint:mnd
		CreateIntervalSeconds: 2,   //nolint:mnd
		ActionIntervalSeconds: 1,
		Template: types.FleetTemplate{
			GPUType:         "NVIDIA RTX A4000",
			GPUCount:        1,
			CloudType:       "COMMUNITY",
			Image:           "nickypro/arena-env:5.2",
			ContainerDiskGB: 100, //nolint:mnd
			VolumeGB:        20,  //nolint:mnd
			Ports:           "8888/http,22/tcp",
			VolumeMountPath: "/workspace",
		},
		Proxy: ProxyConfig{
			ConfigPath:    "/etc/nginx/streams-enabled/proxy.conf",
			ReloadCommand: []string{"sudo", "systemctl", "restart", "nginx"},
			AccessLog:     "/var/log/nginx/ssh_access.log",
			ErrorLog:      "/var/log/nginx/ssh_error.log",
		},
		Schedule: ScheduleConfig{
			File: "/etc/vm_scheduler/schedule.json",
		},
		Keys: KeysConfig{
			Sources: map[string]string{
				"OPENAI_API_KEY":    "keys/openai_api_keys.csv",
				"ANTHROPIC_API_KEY": "keys/anthropic_api_keys.csv",
			},
			RCFiles: []string{"~/.bashrc", "~/.zshrc"},
		},
		Log: &coretypes.ServerLogConfig{
			Level: "info",
		},
	}
}

// Defaults flattens DefaultConfig into viper keys. Registering every key as a
// default is what lets AutomaticEnv and config files override nested fields.
func Defaults() map[string]any {
	d := DefaultConfig()
	return map[string]any{
		"runpod_api_key":          d.APIKey,
		"runpod_api_url":          d.APIURL,
		"machine_name_prefix":     d.Prefix,
		"machine_name_list":       d.Machines,
		"ssh_proxy_starting_port": d.ProxyBasePort,
		"ssh_user":                d.SSHUser,
		"ssh_host":                d.SSHHost,
		"ssh_key_path":            d.SSHKeyPath,
		"shared_ssh_key_path":     d.SharedSSHKeyPath,
		"ssh_public_key_path":     d.SSHPublicKeyPath,
		"ssh_binary":              d.SSHBinary,
		"remote_timeout_seconds":  d.RemoteTimeoutSeconds,
		"create_interval_seconds": d.CreateIntervalSeconds,
		"action_interval_seconds": d.ActionIntervalSeconds,

		"template.gpu_type":          d.Template.GPUType,
		"template.gpu_count":         d.Template.GPUCount,
		"template.cloud_type":        d.Template.CloudType,
		"template.image":             d.Template.Image,
		"template.container_disk_gb": d.Template.ContainerDiskGB,
		"template.volume_gb":         d.Template.VolumeGB,
		"template.ports":             d.Template.Ports,
		"template.volume_mount_path": d.Template.VolumeMountPath,

		"proxy.config_path":    d.Proxy.ConfigPath,
		"proxy.reload_command": d.Proxy.ReloadCommand,
		"proxy.access_log":     d.Proxy.AccessLog,
		"proxy.error_log":      d.Proxy.ErrorLog,

		"schedule.file":                    d.Schedule.File,
		"schedule.state_file":              d.Schedule.StateFile,
		"schedule.work_dir":                d.Schedule.WorkDir,
		"schedule.command_timeout_seconds": d.Schedule.CommandTimeoutSeconds,

		"keys.sources":  d.Keys.Sources,
		"keys.rc_files": d.Keys.RCFiles,

		"log.level": d.Log.Level,
	}
}
