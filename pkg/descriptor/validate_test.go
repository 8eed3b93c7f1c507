package descriptor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func validDeployment() *Deployment {
	deployment, err := Parse([]byte(graphNodeDescriptor))
	if err != nil {
		panic(err)
	}
	return deployment
}

func TestValidateAccepts(t *testing.T) {
	require.NoError(t, validDeployment().Validate())
}

func TestValidateAcceptsScaleToZero(t *testing.T) {
	deployment := validDeployment()
	zero := int32(0)
	deployment.Spec.Replicas = &zero
	require.NoError(t, deployment.Validate())
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		Name     string
		Mutate   func(*Deployment)
		Expected string
	}{
		{
			Name:     "wrong api version",
			Mutate:   func(d *Deployment) { d.APIVersion = "apps/v1beta1" },
			Expected: `apiVersion: expected apps/v1 but got "apps/v1beta1"`,
		},
		{
			Name:     "wrong kind",
			Mutate:   func(d *Deployment) { d.Kind = "StatefulSet" },
			Expected: `kind: expected Deployment but got "StatefulSet"`,
		},
		{
			Name:     "missing name",
			Mutate:   func(d *Deployment) { d.Metadata.Name = "" },
			Expected: "metadata.name: required",
		},
		{
			Name:     "invalid name",
			Mutate:   func(d *Deployment) { d.Metadata.Name = "Graph_Node" },
			Expected: "metadata.name:",
		},
		{
			Name: "negative replicas",
			Mutate: func(d *Deployment) {
				negative := int32(-1)
				d.Spec.Replicas = &negative
			},
			Expected: "spec.replicas: must be non-negative but got -1",
		},
		{
			Name:     "empty selector",
			Mutate:   func(d *Deployment) { d.Spec.Selector.MatchLabels = nil },
			Expected: "spec.selector.matchLabels: required",
		},
		{
			Name: "selector not subset of template labels",
			Mutate: func(d *Deployment) {
				d.Spec.Selector.MatchLabels = map[string]string{"app": "other"}
			},
			Expected: "app=other is not present in spec.template.metadata.labels",
		},
		{
			Name:     "no containers",
			Mutate:   func(d *Deployment) { d.Spec.Template.Spec.Containers = nil },
			Expected: "at least one container is required",
		},
		{
			Name: "duplicate container names",
			Mutate: func(d *Deployment) {
				containers := d.Spec.Template.Spec.Containers
				d.Spec.Template.Spec.Containers = append(containers, containers[0])
			},
			Expected: `duplicate container name "graph-node"`,
		},
		{
			Name:     "missing image",
			Mutate:   func(d *Deployment) { d.Spec.Template.Spec.Containers[0].Image = "" },
			Expected: "containers[0].image: required",
		},
		{
			Name: "port out of range",
			Mutate: func(d *Deployment) {
				d.Spec.Template.Spec.Containers[0].Ports[0].ContainerPort = 70000
			},
			Expected: "containers[0].ports[0].containerPort:",
		},
		{
			Name: "port zero",
			Mutate: func(d *Deployment) {
				d.Spec.Template.Spec.Containers[0].Ports[0].ContainerPort = 0
			},
			Expected: "containers[0].ports[0].containerPort:",
		},
		{
			Name: "invalid port name",
			Mutate: func(d *Deployment) {
				d.Spec.Template.Spec.Containers[0].Ports[0].Name = "this-name-is-way-too-long"
			},
			Expected: "containers[0].ports[0].name:",
		},
		{
			Name: "invalid protocol",
			Mutate: func(d *Deployment) {
				d.Spec.Template.Spec.Containers[0].Ports[0].Protocol = "ICMP"
			},
			Expected: `must be one of TCP, UDP, SCTP but got "ICMP"`,
		},
		{
			Name: "env name missing",
			Mutate: func(d *Deployment) {
				d.Spec.Template.Spec.Containers[0].Env[0].Name = ""
			},
			Expected: "env[0].name: required",
		},
		{
			Name: "env value and valueFrom",
			Mutate: func(d *Deployment) {
				d.Spec.Template.Spec.Containers[0].Env[0].Value = "literal"
			},
			Expected: "value and valueFrom are mutually exclusive",
		},
		{
			Name: "secret ref without key",
			Mutate: func(d *Deployment) {
				d.Spec.Template.Spec.Containers[0].Env[0].ValueFrom.SecretKeyRef.Key = ""
			},
			Expected: "valueFrom.secretKeyRef.key: required",
		},
		{
			Name: "secret ref without name",
			Mutate: func(d *Deployment) {
				d.Spec.Template.Spec.Containers[0].Env[0].ValueFrom.SecretKeyRef.Name = ""
			},
			Expected: "valueFrom.secretKeyRef.name: required",
		},
		{
			Name: "valueFrom without secret ref",
			Mutate: func(d *Deployment) {
				d.Spec.Template.Spec.Containers[0].Env[0].ValueFrom.SecretKeyRef = nil
			},
			Expected: "valueFrom: secretKeyRef is required",
		},
	}

	for _, tc := range cases {
		t.Run(tc.Name, func(t *testing.T) {
			deployment := validDeployment()
			tc.Mutate(deployment)

			err := deployment.Validate()
			require.Error(t, err)
			require.ErrorContains(t, err, tc.Expected)
		})
	}
}

func TestValidateCollectsAllViolations(t *testing.T) {
	deployment := validDeployment()
	deployment.Metadata.Name = ""
	negative := int32(-3)
	deployment.Spec.Replicas = &negative

	err := deployment.Validate()
	require.Error(t, err)
	require.ErrorContains(t, err, "metadata.name: required")
	require.ErrorContains(t, err, "spec.replicas: must be non-negative but got -3")
}
