// Package registry holds the data model shared by the dynamic store, the
// static store and the query resource: nodes, services and announcements.
package registry

import "github.com/google/uuid"

// NodeId identifies an announcer. Stable across refreshes of the same
// logical process, opaque to the store.
type NodeId string

// ServiceId identifies one declared service instance.
type ServiceId string

// NewNodeId mints a fresh opaque node identifier.
func NewNodeId() NodeId {
	return NodeId(uuid.New().String())
}

// NewServiceId mints a fresh opaque service identifier.
func NewServiceId() ServiceId {
	return ServiceId(uuid.New().String())
}

// Service is one network-addressable service instance, whether it came from
// a live announcement or a static declaration.
type Service struct {
	ID         ServiceId         `json:"id"`
	NodeID     NodeId            `json:"nodeId"`
	Type       string            `json:"type"`
	Pool       string            `json:"pool"`
	Location   string            `json:"location"`
	Properties map[string]string `json:"properties,omitempty"`
}

// ServiceAnnouncement is the part of a DynamicAnnouncement describing a
// single service the announcing node currently offers.
type ServiceAnnouncement struct {
	ID         ServiceId         `json:"id"`
	Type       string            `json:"type"`
	Properties map[string]string `json:"properties,omitempty"`
}

// DynamicAnnouncement is what an announcer sends on each refresh. Pool and
// Location apply to every service carried in the announcement.
type DynamicAnnouncement struct {
	Environment          string                `json:"environment"`
	Location             string                `json:"location"`
	Pool                 string                `json:"pool"`
	ServiceAnnouncements []ServiceAnnouncement `json:"serviceAnnouncements"`
}

// Materialize expands a ServiceAnnouncement into a full Service, attaching
// the node identity and the per-announcement pool/location.
func (a DynamicAnnouncement) Materialize(nodeID NodeId) []Service {
	out := make([]Service, 0, len(a.ServiceAnnouncements))
	for _, sa := range a.ServiceAnnouncements {
		out = append(out, Service{
			ID:         sa.ID,
			NodeID:     nodeID,
			Type:       sa.Type,
			Pool:       a.Pool,
			Location:   a.Location,
			Properties: sa.Properties,
		})
	}
	return out
}

// Services is the response shape returned by the query resource: the set of
// live services tagged with the registry's configured environment.
type Services struct {
	Environment string    `json:"environment"`
	Services    []Service `json:"services"`
}
