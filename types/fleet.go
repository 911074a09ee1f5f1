package types

// MachineIdentity is a logical machine slot. Its pod name is derived, never stored.
type MachineIdentity struct {
	Prefix    string `json:"prefix"`
	ShortName string `json:"short_name"`
}

// PodName returns "{prefix}-{shortName}".
func (m MachineIdentity) PodName() string {
	return m.Prefix + "-" + m.ShortName
}

// FleetTemplate is the resource template applied to every created pod.
type FleetTemplate struct {
	GPUType         string `json:"gpu_type" mapstructure:"gpu_type"`
	GPUCount        int    `json:"gpu_count" mapstructure:"gpu_count"`
	CloudType       string `json:"cloud_type" mapstructure:"cloud_type"`
	Image           string `json:"image" mapstructure:"image"`
	ContainerDiskGB int    `json:"container_disk_gb" mapstructure:"container_disk_gb"`
	VolumeGB        int    `json:"volume_gb" mapstructure:"volume_gb"`
	Ports           string `json:"ports" mapstructure:"ports"`
	VolumeMountPath string `json:"volume_mount_path" mapstructure:"volume_mount_path"`
	// SSHPublicKey is injected as PUBLIC_KEY into the pod environment when set.
	SSHPublicKey string `json:"ssh_public_key,omitempty" mapstructure:"-"`
}

// DesiredFleet is the ordered set of machines that should exist, plus the
// template to create them with. Built once per invocation.
type DesiredFleet struct {
	Machines []MachineIdentity
	Template FleetTemplate
}

// Endpoint is the public address through which a pod's SSH service is reachable.
type Endpoint struct {
	IP   string `json:"ip"`
	Port int    `json:"port"`
}

// ProxyRoute maps an allow-listed machine to its current upstream and its
// stable proxy listen port.
type ProxyRoute struct {
	MachineShortName string `json:"machine"`
	UpstreamIP       string `json:"upstream_ip"`
	UpstreamPort     int    `json:"upstream_port"`
	ListenPort       int    `json:"listen_port"`
}
