package descriptor

import (
	"encoding/json"
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	kyaml "k8s.io/apimachinery/pkg/util/yaml"
)

// Parse decodes a descriptor from YAML or JSON the way the control plane
// would read it.
func Parse(data []byte) (*Deployment, error) {
	var deployment Deployment
	if err := kyaml.Unmarshal(data, &deployment); err != nil {
		return nil, fmt.Errorf("failed to unmarshal descriptor: %w", err)
	}
	return &deployment, nil
}

// Unstructured converts the descriptor for use with the dynamic client.
func (deployment Deployment) Unstructured() (*unstructured.Unstructured, error) {
	data, err := json.Marshal(deployment)
	if err != nil {
		return nil, err
	}

	// decode through the unstructured scheme so that integers stay int64 and
	// deep equality against revision history holds.
	var resource unstructured.Unstructured
	if err := resource.UnmarshalJSON(data); err != nil {
		return nil, err
	}

	return &resource, nil
}
