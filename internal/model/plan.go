package model

// AgentKind selects the behavior behind a team member.
type AgentKind string

const (
	KindCoordinator AgentKind = "coordinator"
	KindHuman       AgentKind = "human"
	KindWorker      AgentKind = "worker"
)

// AgentProfile is a team member record. Name is unique and immutable for
// the run.
type AgentProfile struct {
	Name                 string    `json:"name" jsonschema_description:"Agent name. Must be unique within the team."`
	Role                 string    `json:"role" jsonschema_description:"General role such as 'backend developer'."`
	ProjectRole          string    `json:"project_role" jsonschema_description:"Concrete responsibilities of this agent in this project."`
	DetailedInstructions string    `json:"detailed_instructions" jsonschema_description:"Standing instructions this agent must keep in mind for the whole project."`
	Kind                 AgentKind `json:"kind,omitempty" jsonschema:"-"`
}

type FirstDirective struct {
	Recipient string `json:"recipient" jsonschema_description:"Name of the agent receiving the first task."`
	Message   string `json:"message" jsonschema_description:"Concrete instructions for the first task."`
}

// ProjectPlan is produced once when requirements are finalized.
type ProjectPlan struct {
	Team             []AgentProfile `json:"team" jsonschema_description:"Additional team members to form for this project."`
	BroadcastMessage string         `json:"broadcast_message" jsonschema_description:"Kickoff message sent to the whole team."`
	FirstDirective   FirstDirective `json:"first_directive" jsonschema_description:"The first task assignment."`
	Thought          string         `json:"thought" jsonschema_description:"Reasoning behind the team composition and first directive."`
}
