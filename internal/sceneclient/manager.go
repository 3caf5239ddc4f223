// corevta - Taekwondo VTA scoring/broadcast event pipeline core.
// SPDX-License-Identifier: AGPL-3.0-or-later

package sceneclient

import "context"

// Role identifies which responsibility an endpoint's connection owns when
// multiple scene controllers are configured.
type Role string

const (
	RoleSingle Role = "SINGLE"
	RoleRec    Role = "REC"
	RoleStr    Role = "STR"
)

// AggregateStatus is the result of get_status() across all configured
// endpoints: booleans true if any owning connection reports active, plus
// per-role CPU usage and connection ownership.
type AggregateStatus struct {
	Recording    bool
	Streaming    bool
	CPUByRole    map[Role]float64
	OwnerOfState map[Role]string
}

// Manager owns one Client per enabled endpoint and assigns roles by
// declaration order: exactly one enabled endpoint gets SINGLE; two get
// {REC, STR} in the order they were declared.
type Manager struct {
	clients map[Role]*Client
	order   []Role
}

// NewManager builds a Manager with one connected client per endpoint
// given; it does not filter endpoints by enablement.
func NewManager(ctx context.Context, endpoints []Endpoint) (*Manager, error) {
	m := &Manager{clients: make(map[Role]*Client)}

	roles := assignRoles(len(endpoints))
	for i, ep := range endpoints {
		role := roles[i]
		client := New(ep)
		if err := client.Connect(ctx); err != nil {
			return nil, err
		}
		m.clients[role] = client
		m.order = append(m.order, role)
	}
	return m, nil
}

// assignRoles implements the position-based role assignment: one enabled
// endpoint is SINGLE; two are REC then STR in declaration order.
func assignRoles(n int) []Role {
	switch n {
	case 1:
		return []Role{RoleSingle}
	case 2:
		return []Role{RoleRec, RoleStr}
	default:
		roles := make([]Role, n)
		for i := range roles {
			roles[i] = RoleSingle
		}
		return roles
	}
}

// Client returns the connection owning role, or nil if not configured.
func (m *Manager) Client(role Role) *Client {
	return m.clients[role]
}

// Recording returns the connection responsible for recording control: REC
// if present, else SINGLE.
func (m *Manager) Recording() *Client {
	if c, ok := m.clients[RoleRec]; ok {
		return c
	}
	return m.clients[RoleSingle]
}

// Streaming returns the connection responsible for streaming control: STR
// if present, else SINGLE.
func (m *Manager) Streaming() *Client {
	if c, ok := m.clients[RoleStr]; ok {
		return c
	}
	return m.clients[RoleSingle]
}

// Status aggregates recording/streaming/CPU state across all roles.
func (m *Manager) Status(ctx context.Context) (AggregateStatus, error) {
	agg := AggregateStatus{
		CPUByRole:    make(map[Role]float64),
		OwnerOfState: make(map[Role]string),
	}
	for _, role := range m.order {
		c := m.clients[role]
		st, err := c.Status(ctx)
		if err != nil {
			return AggregateStatus{}, err
		}
		agg.CPUByRole[role] = st.CPUUsage
		if st.Recording {
			agg.Recording = true
			agg.OwnerOfState[RoleRec] = c.endpoint.Name
		}
		if st.Streaming {
			agg.Streaming = true
			agg.OwnerOfState[RoleStr] = c.endpoint.Name
		}
	}
	return agg, nil
}

// Clients returns every managed client keyed by its assigned role, for
// callers that need to fan out across all connections (e.g. forwarding
// each client's Events() channel to the UI side-channel).
func (m *Manager) Clients() map[Role]*Client {
	return m.clients
}

// Close disconnects every managed client.
func (m *Manager) Close() error {
	var firstErr error
	for _, c := range m.clients {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
