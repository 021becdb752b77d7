package svcclient

import (
	"encoding/json"

	"github.com/npc-engine/npc-engine/metadata"
)

// ControlClient is a Stub permanently addressed at the "control" pseudo-id,
// exposing its admin methods as typed calls (mirrors control_client.py's
// ControlClient).
type ControlClient struct {
	*Stub
}

// NewControlClient connects a ControlClient over endpoint.
func NewControlClient(endpoint string) (*ControlClient, error) {
	stub, err := Create(endpoint, "control")
	if err != nil {
		return nil, err
	}
	return &ControlClient{Stub: stub}, nil
}

// StartService requests start_service for id.
func (c *ControlClient) StartService(id string) error {
	_, err := c.Call("start_service", id)
	return err
}

// StopService requests stop_service for id.
func (c *ControlClient) StopService(id string) error {
	_, err := c.Call("stop_service", id)
	return err
}

// RestartService requests restart_service for id.
func (c *ControlClient) RestartService(id string) error {
	_, err := c.Call("restart_service", id)
	return err
}

// GetServiceStatus returns the lowercase state string for id.
func (c *ControlClient) GetServiceStatus(id string) (string, error) {
	raw, err := c.Call("get_service_status", id)
	if err != nil {
		return "", err
	}
	var status string
	if err := json.Unmarshal(raw, &status); err != nil {
		return "", err
	}
	return status, nil
}

// GetServicesMetadata returns metadata for every discovered package.
func (c *ControlClient) GetServicesMetadata() ([]metadata.Metadata, error) {
	raw, err := c.Call("get_services_metadata")
	if err != nil {
		return nil, err
	}
	var out []metadata.Metadata
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetServiceMetadata returns metadata for a single package.
func (c *ControlClient) GetServiceMetadata(id string) (metadata.Metadata, error) {
	raw, err := c.Call("get_service_metadata", id)
	if err != nil {
		return metadata.Metadata{}, err
	}
	var out metadata.Metadata
	if err := json.Unmarshal(raw, &out); err != nil {
		return metadata.Metadata{}, err
	}
	return out, nil
}

// CheckDependency declares that id depends on dependency and checks the
// whole graph for cycles.
func (c *ControlClient) CheckDependency(id, dependency string) error {
	_, err := c.Call("check_dependency", id, dependency)
	return err
}
