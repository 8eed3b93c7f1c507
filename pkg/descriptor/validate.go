package descriptor

import (
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/util/validation"

	"github.com/davidmdm/x/xerr"
)

// Validate checks every locally checkable property of the descriptor and
// reports all violations at once. It accepts what the control plane would
// accept; the point is catching rejection before anything touches the
// cluster.
func (deployment Deployment) Validate() error {
	var errs []error

	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if deployment.APIVersion != "apps/v1" {
		fail("apiVersion: expected apps/v1 but got %q", deployment.APIVersion)
	}
	if deployment.Kind != "Deployment" {
		fail("kind: expected Deployment but got %q", deployment.Kind)
	}

	if name := deployment.Metadata.Name; name == "" {
		fail("metadata.name: required")
	} else if msgs := validation.IsDNS1123Subdomain(name); len(msgs) > 0 {
		fail("metadata.name: %s", strings.Join(msgs, "; "))
	}

	if namespace := deployment.Metadata.Namespace; namespace != "" {
		if msgs := validation.IsDNS1123Label(namespace); len(msgs) > 0 {
			fail("metadata.namespace: %s", strings.Join(msgs, "; "))
		}
	}

	if replicas := deployment.Spec.Replicas; replicas != nil && *replicas < 0 {
		fail("spec.replicas: must be non-negative but got %d", *replicas)
	}

	selector := deployment.Spec.Selector.MatchLabels
	if len(selector) == 0 {
		fail("spec.selector.matchLabels: required: a deployment with no selector cannot own pods")
	}

	templateLabels := deployment.Spec.Template.Metadata.Labels
	for key, value := range selector {
		if templateLabels[key] != value {
			fail("spec.selector.matchLabels: %s=%s is not present in spec.template.metadata.labels", key, value)
		}
	}

	for key, value := range templateLabels {
		if msgs := validation.IsQualifiedName(key); len(msgs) > 0 {
			fail("spec.template.metadata.labels: key %q: %s", key, strings.Join(msgs, "; "))
		}
		if msgs := validation.IsValidLabelValue(value); len(msgs) > 0 {
			fail("spec.template.metadata.labels: value %q: %s", value, strings.Join(msgs, "; "))
		}
	}

	containers := deployment.Spec.Template.Spec.Containers
	if len(containers) == 0 {
		fail("spec.template.spec.containers: at least one container is required")
	}

	names := map[string]struct{}{}
	for i, container := range containers {
		where := fmt.Sprintf("spec.template.spec.containers[%d]", i)

		if container.Name == "" {
			fail("%s.name: required", where)
		} else {
			if msgs := validation.IsDNS1123Label(container.Name); len(msgs) > 0 {
				fail("%s.name: %s", where, strings.Join(msgs, "; "))
			}
			if _, ok := names[container.Name]; ok {
				fail("%s.name: duplicate container name %q", where, container.Name)
			}
			names[container.Name] = struct{}{}
		}

		if container.Image == "" {
			fail("%s.image: required", where)
		}

		errs = append(errs, validatePorts(where, container.Ports)...)
		errs = append(errs, validateEnv(where, container.Env)...)
	}

	return xerr.MultiErrOrderedFrom("invalid descriptor", errs...)
}

func validatePorts(where string, ports []ContainerPort) []error {
	var errs []error

	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	portNames := map[string]struct{}{}
	portNumbers := map[int32]struct{}{}

	for i, port := range ports {
		where := fmt.Sprintf("%s.ports[%d]", where, i)

		if msgs := validation.IsValidPortNum(int(port.ContainerPort)); len(msgs) > 0 {
			fail("%s.containerPort: %s", where, strings.Join(msgs, "; "))
		}
		if _, ok := portNumbers[port.ContainerPort]; ok {
			fail("%s.containerPort: duplicate port %d", where, port.ContainerPort)
		}
		portNumbers[port.ContainerPort] = struct{}{}

		if port.Name != "" {
			if msgs := validation.IsValidPortName(port.Name); len(msgs) > 0 {
				fail("%s.name: %s", where, strings.Join(msgs, "; "))
			}
			if _, ok := portNames[port.Name]; ok {
				fail("%s.name: duplicate port name %q", where, port.Name)
			}
			portNames[port.Name] = struct{}{}
		}

		switch port.Protocol {
		case "", "TCP", "UDP", "SCTP":
		default:
			fail("%s.protocol: must be one of TCP, UDP, SCTP but got %q", where, port.Protocol)
		}
	}

	return errs
}

func validateEnv(where string, env []EnvVar) []error {
	var errs []error

	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	for i, variable := range env {
		where := fmt.Sprintf("%s.env[%d]", where, i)

		if variable.Name == "" {
			fail("%s.name: required", where)
		} else if msgs := validation.IsEnvVarName(variable.Name); len(msgs) > 0 {
			fail("%s.name: %s", where, strings.Join(msgs, "; "))
		}

		if variable.Value != "" && variable.ValueFrom != nil {
			fail("%s: value and valueFrom are mutually exclusive", where)
		}

		if source := variable.ValueFrom; source != nil {
			ref := source.SecretKeyRef
			if ref == nil {
				fail("%s.valueFrom: secretKeyRef is required", where)
				continue
			}
			if ref.Name == "" {
				fail("%s.valueFrom.secretKeyRef.name: required", where)
			}
			if ref.Key == "" {
				fail("%s.valueFrom.secretKeyRef.key: required", where)
			}
		}
	}

	return errs
}
