package reconcile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/projecteru2/podfleet/naming"
	"github.com/projecteru2/podfleet/types"
	"github.com/projecteru2/podfleet/utils"
)

// ErrInsufficientCapacity is matched by *InsufficientCapacityError.
var ErrInsufficientCapacity = errors.New("insufficient unused machine names")

// InsufficientCapacityError reports a PlanAddN request that the allow-list
// cannot satisfy.
type InsufficientCapacityError struct {
	Requested int
	Available int
	Used      []string
}

func (e *InsufficientCapacityError) Error() string {
	return fmt.Sprintf("requested %d machines but only %d unused names remain (in use: %s)",
		e.Requested, e.Available, strings.Join(e.Used, ", "))
}

func (e *InsufficientCapacityError) Is(target error) bool { return target == ErrInsufficientCapacity }

// CreatePlan is the outcome of PlanCreate.
type CreatePlan struct {
	ToCreate      []types.MachineIdentity
	AlreadyExists []types.MachineIdentity
}

// Names returns the pod names that will be created.
func (p CreatePlan) Names() []string {
	out := make([]string, 0, len(p.ToCreate))
	for _, id := range p.ToCreate {
		out = append(out, id.PodName())
	}
	return out
}

// PlanCreate splits desired into machines that must be created and machines
// whose pod name already exists in observed. Desired order is preserved and
// duplicate names collapse, so no name is ever requested twice.
func PlanCreate(desired []types.MachineIdentity, observed []types.Pod) CreatePlan {
	existing := podNames(observed)
	planned := make(map[string]struct{}, len(desired))
	var plan CreatePlan
	for _, id := range desired {
		name := id.PodName()
		if utils.Has(planned, name) {
			continue
		}
		planned[name] = struct{}{}
		if utils.Has(existing, name) {
			plan.AlreadyExists = append(plan.AlreadyExists, id)
			continue
		}
		plan.ToCreate = append(plan.ToCreate, id)
	}
	return plan
}

// PlanAddN picks the first n allow-listed machines whose pod does not exist,
// in allow-list order.
func PlanAddN(n int, reg *naming.Registry, observed []types.Pod) ([]types.MachineIdentity, error) {
	if n <= 0 {
		return nil, fmt.Errorf("machine count must be positive, got %d", n)
	}
	existing := podNames(observed)
	var unused []types.MachineIdentity
	var used []string
	for _, id := range reg.Identities() {
		if utils.Has(existing, id.PodName()) {
			used = append(used, id.ShortName)
			continue
		}
		unused = append(unused, id)
	}
	if n > len(unused) {
		return nil, &InsufficientCapacityError{Requested: n, Available: len(unused), Used: used}
	}
	return unused[:n], nil
}

// FilterPods applies the include/exclude pipeline:
//
//  1. drop every pod whose name is in exclude;
//  2. if include is non-empty, keep only pods whose name is in include.
//
// A name in both lists is therefore excluded.
func FilterPods(pods []types.Pod, include, exclude []string) []types.Pod {
	ex := utils.SetOf(exclude)
	in := utils.SetOf(include)
	var out []types.Pod
	for _, p := range pods {
		if utils.Has(ex, p.Name) {
			continue
		}
		if len(in) > 0 && !utils.Has(in, p.Name) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// PlanStop returns the RUNNING pods that pass the filters.
func PlanStop(observed []types.Pod, include, exclude []string) []types.Pod {
	return FilterPods(keep(observed, (*types.Pod).IsRunning), include, exclude)
}

// PlanDelete returns the EXITED pods that pass the filters. Running pods are
// never deletion candidates; they must be stopped first.
func PlanDelete(observed []types.Pod, include, exclude []string) []types.Pod {
	return FilterPods(keep(observed, (*types.Pod).IsExited), include, exclude)
}

// Names returns the names of pods, in order.
func Names(pods []types.Pod) []string {
	out := make([]string, 0, len(pods))
	for _, p := range pods {
		out = append(out, p.Name)
	}
	return out
}

func keep(pods []types.Pod, pred func(*types.Pod) bool) []types.Pod {
	var out []types.Pod
	for i := range pods {
		if pred(&pods[i]) {
			out = append(out, pods[i])
		}
	}
	return out
}

func podNames(pods []types.Pod) map[string]struct{} {
	return utils.SetOf(Names(pods))
}
