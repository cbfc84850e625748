// Copyright 2026 The Agent Messenger Bridge Authors
// SPDX-License-Identifier: Apache-2.0

package state

// Project is one configured project: a working directory, a runtime
// session, and the agent instances running inside it.
type Project struct {
	// Name is the unique project key.
	Name string `json:"name"`

	// Path is the project's working directory on disk.
	Path string `json:"path"`

	// RuntimeSession names the tmux session (or equivalent) hosting
	// the project's agent windows.
	RuntimeSession string `json:"runtimeSession"`

	// Instances maps instance id to instance. Within a project every
	// instance's ChannelID is unique — channel↔instance is a
	// bijection, which is what makes channel-based routing correct.
	Instances map[string]AgentInstance `json:"instances"`

	// Agents is the legacy flat map from agent type to runtime window,
	// consulted only when Instances is empty.
	Agents map[string]string `json:"agents,omitempty"`

	// ChannelsByAgentType is the legacy flat map from agent type to
	// channel id, consulted only when Instances is empty.
	ChannelsByAgentType map[string]string `json:"channels,omitempty"`
}

// AgentInstance is one running agent process mapped 1:1 to a chat
// channel. Immutable for the lifetime of a turn; replaced wholesale
// when the project is reloaded.
type AgentInstance struct {
	// InstanceID uniquely names the instance within its project.
	InstanceID string `json:"instanceId"`

	// AgentType identifies the agent CLI family.
	AgentType string `json:"agentType"`

	// ChannelID is the chat channel bound to this instance.
	ChannelID string `json:"channelId"`

	// Window is the runtime window (tmux window name) the agent
	// process runs in.
	Window string `json:"window"`

	// ContainerMode marks instances whose agent runs inside a
	// container; attachments are additionally injected into the
	// container workspace.
	ContainerMode bool `json:"containerMode,omitempty"`

	// ContainerID identifies the container for file injection.
	ContainerID string `json:"containerId,omitempty"`

	// ContainerName is the human-readable container name.
	ContainerName string `json:"containerName,omitempty"`
}

// Store is the read surface the bridge core consumes. Implementations
// must be safe for concurrent use.
type Store interface {
	// GetProject returns the named project, or false when unknown.
	GetProject(name string) (*Project, bool)

	// UpdateLastActive records activity on the project. Best-effort;
	// failures are not surfaced to the bridge.
	UpdateLastActive(name string)
}

// InstanceByID returns the instance with the given id.
func (p *Project) InstanceByID(instanceID string) (AgentInstance, bool) {
	instance, ok := p.Instances[instanceID]
	return instance, ok
}

// InstanceByChannel returns the instance bound to the given channel.
func (p *Project) InstanceByChannel(channelID string) (AgentInstance, bool) {
	for _, instance := range p.Instances {
		if instance.ChannelID == channelID {
			return instance, true
		}
	}
	return AgentInstance{}, false
}

// ResolveInstance resolves the target instance for an inbound message.
// An explicit mappedInstanceID wins; otherwise the instance is found by
// channel identity — never by agent type alone, so two instances of the
// same agent type on one project route to different windows purely by
// channel. When Instances is empty, a legacy instance is synthesized
// from the flat maps with the agent type doubling as instance id.
func (p *Project) ResolveInstance(agentType, channelID, mappedInstanceID string) (AgentInstance, bool) {
	if len(p.Instances) == 0 {
		return p.legacyInstance(agentType)
	}
	if mappedInstanceID != "" {
		return p.InstanceByID(mappedInstanceID)
	}
	return p.InstanceByChannel(channelID)
}

// ChannelFor returns the channel bound to the given instance key. Used
// by the hook server, where events carry (agentType, instanceID) but no
// channel. Falls back to the legacy per-agent-type channel map when
// Instances is empty.
func (p *Project) ChannelFor(agentType, instanceID string) (string, bool) {
	if len(p.Instances) == 0 {
		channelID, ok := p.ChannelsByAgentType[agentType]
		return channelID, ok
	}
	if instance, ok := p.Instances[instanceID]; ok {
		return instance.ChannelID, true
	}
	return "", false
}

// legacyInstance synthesizes an instance from the legacy flat maps.
func (p *Project) legacyInstance(agentType string) (AgentInstance, bool) {
	window, ok := p.Agents[agentType]
	if !ok {
		return AgentInstance{}, false
	}
	return AgentInstance{
		InstanceID: agentType,
		AgentType:  agentType,
		ChannelID:  p.ChannelsByAgentType[agentType],
		Window:     window,
	}, true
}
