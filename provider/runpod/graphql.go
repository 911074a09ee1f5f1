package runpod

const listPodsQuery = `query Pods {
  myself {
    pods {
      id
      name
      desiredStatus
      costPerHr
      lastStatusChange
      gpuCount
      imageName
      machine {
        gpuDisplayName
      }
      runtime {
        ports {
          ip
          isIpPublic
          privatePort
          publicPort
          type
        }
      }
    }
  }
}`

const deployPodMutation = `mutation Deploy($input: PodFindAndDeployOnDemandInput) {
  podFindAndDeployOnDemand(input: $input) {
    id
    name
    desiredStatus
    imageName
    costPerHr
    machine {
      gpuDisplayName
    }
  }
}`

const stopPodMutation = `mutation StopPod($input: PodStopInput!) {
  podStop(input: $input) {
    id
    desiredStatus
  }
}`

const terminatePodMutation = `mutation TerminatePod($input: PodTerminateInput!) {
  podTerminate(input: $input)
}`

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlError struct {
	Message string `json:"message"`
}

type gqlResponse[T any] struct {
	Data   T          `json:"data"`
	Errors []gqlError `json:"errors"`
}

// Wire records. These never leave the package.

type rawPort struct {
	IP          string `json:"ip"`
	IsIPPublic  bool   `json:"isIpPublic"`
	PrivatePort int    `json:"privatePort"`
	PublicPort  int    `json:"publicPort"`
	Type        string `json:"type"`
}

type rawPod struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	DesiredStatus    string  `json:"desiredStatus"`
	CostPerHr        float64 `json:"costPerHr"`
	LastStatusChange string  `json:"lastStatusChange"`
	GPUCount         int     `json:"gpuCount"`
	ImageName        string  `json:"imageName"`
	Machine          *struct {
		GPUDisplayName string `json:"gpuDisplayName"`
	} `json:"machine"`
	Runtime *struct {
		Ports []rawPort `json:"ports"`
	} `json:"runtime"`
}

type listPodsData struct {
	Myself *struct {
		Pods []rawPod `json:"pods"`
	} `json:"myself"`
}

type deployPodData struct {
	Pod *rawPod `json:"podFindAndDeployOnDemand"`
}

type envVar struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
