// Package descriptor models single-service deployment descriptors: the
// declarative document naming an image, how many replicas of it to run, which
// port it exposes, and where its environment comes from.
package descriptor

type Metadata struct {
	Name        string            `json:"name"`
	Namespace   string            `json:"namespace,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

type Resource[T any] struct {
	APIVersion string   `json:"apiVersion"`
	Kind       string   `json:"kind"`
	Metadata   Metadata `json:"metadata"`
	Spec       T        `json:"spec"`
}

type Selector struct {
	MatchLabels map[string]string `json:"matchLabels"`
}

type Deployment Resource[DeploymentSpec]

type DeploymentSpec struct {
	// Replicas left nil defers to the control plane default of one.
	Replicas *int32          `json:"replicas,omitempty"`
	Selector Selector        `json:"selector"`
	Template PodTemplateSpec `json:"template"`
}

type PodTemplateSpec struct {
	Metadata TemplateMetadata `json:"metadata"`
	Spec     PodSpec          `json:"spec"`
}

type TemplateMetadata struct {
	Labels      map[string]string `json:"labels,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

type PodSpec struct {
	Containers []Container `json:"containers"`
}

type Container struct {
	Name    string          `json:"name"`
	Image   string          `json:"image"`
	Command []string        `json:"command,omitempty"`
	Args    []string        `json:"args,omitempty"`
	Ports   []ContainerPort `json:"ports,omitempty"`
	Env     []EnvVar        `json:"env,omitempty"`
}

type ContainerPort struct {
	Name          string `json:"name,omitempty"`
	ContainerPort int32  `json:"containerPort"`
	Protocol      string `json:"protocol,omitempty"`
}

// EnvVar binds a name to exactly one of a literal value or an external
// secret store entry resolved at container start.
type EnvVar struct {
	Name      string        `json:"name"`
	Value     string        `json:"value,omitempty"`
	ValueFrom *EnvVarSource `json:"valueFrom,omitempty"`
}

type EnvVarSource struct {
	SecretKeyRef *SecretKeySelector `json:"secretKeyRef,omitempty"`
}

type SecretKeySelector struct {
	Name string `json:"name"`
	Key  string `json:"key"`
}

// SecretRefs returns every secret (name, key) pair the descriptor's
// environment depends on. Used for apply-time preflight checks.
func (deployment Deployment) SecretRefs() []SecretKeySelector {
	var refs []SecretKeySelector
	for _, container := range deployment.Spec.Template.Spec.Containers {
		for _, env := range container.Env {
			if env.ValueFrom == nil || env.ValueFrom.SecretKeyRef == nil {
				continue
			}
			refs = append(refs, *env.ValueFrom.SecretKeyRef)
		}
	}
	return refs
}

func (deployment Deployment) Replicas() int32 {
	if deployment.Spec.Replicas == nil {
		return 1
	}
	return *deployment.Spec.Replicas
}
