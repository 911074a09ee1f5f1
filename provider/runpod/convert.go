package runpod

import (
	"strings"

	"github.com/projecteru2/podfleet/types"
)

// toPod is the single translation point from the provider's wire schema to
// the typed pod record. Schema drift is absorbed here.
func toPod(r rawPod) types.Pod {
	p := types.Pod{
		ID:               r.ID,
		Name:             r.Name,
		DesiredStatus:    types.PodStatus(strings.ToUpper(r.DesiredStatus)),
		CostPerHr:        r.CostPerHr,
		LastStatusChange: r.LastStatusChange,
		GPUCount:         r.GPUCount,
		ImageName:        r.ImageName,
	}
	if r.Machine != nil {
		p.GPUDisplayName = r.Machine.GPUDisplayName
	}
	if r.Runtime != nil {
		p.RuntimePorts = make([]types.PortBinding, 0, len(r.Runtime.Ports))
		for _, port := range r.Runtime.Ports {
			p.RuntimePorts = append(p.RuntimePorts, types.PortBinding{
				IP:          port.IP,
				IsPublic:    port.IsIPPublic,
				Port:        port.PublicPort,
				PrivatePort: port.PrivatePort,
				Protocol:    types.Protocol(strings.ToLower(port.Type)),
			})
		}
	}
	return p
}

// deployInput builds the podFindAndDeployOnDemand input object.
func deployInput(name string, t types.FleetTemplate, env map[string]string) map[string]any {
	input := map[string]any{
		"name":              name,
		"imageName":         t.Image,
		"gpuTypeId":         t.GPUType,
		"gpuCount":          t.GPUCount,
		"cloudType":         t.CloudType,
		"containerDiskInGb": t.ContainerDiskGB,
		"volumeInGb":        t.VolumeGB,
		"ports":             t.Ports,
		"volumeMountPath":   t.VolumeMountPath,
	}
	vars := make([]envVar, 0, len(env)+1)
	if t.SSHPublicKey != "" {
		vars = append(vars, envVar{Key: "PUBLIC_KEY", Value: t.SSHPublicKey})
	}
	for _, k := range sortedKeys(env) {
		vars = append(vars, envVar{Key: k, Value: env[k]})
	}
	if len(vars) > 0 {
		input["env"] = vars
	}
	return input
}
