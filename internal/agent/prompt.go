package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/YumaSeno/AIDeveloper/internal/model"
)

const (
	requirementsTask = "You are gathering requirements from the client (" + model.HumanName + "). " +
		"Ask focused questions until the goal, users, features and constraints are clear. " +
		"When the client has agreed to a complete requirements definition, save it as a document with a file tool, " +
		"then send an AGENT turn to " + model.HumanName + " with special_action " + string(model.ActionFinalizeRequirements) + "."

	developmentTask = "Work on the project together with your team. Use tools to read and write files, " +
		"run commands and research. Report results to whoever assigned you the task. " +
		"Address " + model.Broadcast + " only when every team member must hear the message."

	completionRule = "Only " + model.CoordinatorName + " may set special_action to " + string(model.ActionCompleteProject) +
		", and only after reporting the finished deliverables to " + model.HumanName + "."
)

func writeSection(sb *strings.Builder, title, body string) {
	sb.WriteString("## ")
	sb.WriteString(title)
	sb.WriteString("\n\n")
	sb.WriteString(body)
	sb.WriteString("\n\n")
}

func writeJSONSection(sb *strings.Builder, title string, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		data = []byte(fmt.Sprintf("unavailable: %v", err))
	}
	writeSection(sb, title, "```json\n"+string(data)+"\n```")
}

// historyPayload renders entries as the bare turn and result objects.
func historyPayload(entries []model.Entry) []any {
	out := make([]any, 0, len(entries))
	for _, e := range entries {
		switch {
		case e.Turn != nil:
			out = append(out, e.Turn)
		case e.Result != nil:
			out = append(out, e.Result)
		}
	}
	return out
}

func publicProfiles(team []model.AgentProfile) []model.AgentProfile {
	out := make([]model.AgentProfile, len(team))
	for i, p := range team {
		p.Kind = ""
		out[i] = p
	}
	return out
}

func identity(p model.AgentProfile) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s, a member of an autonomous software development team.\n", p.Name)
	fmt.Fprintf(&sb, "Role: %s\n", p.Role)
	if p.ProjectRole != "" {
		fmt.Fprintf(&sb, "Project role: %s\n", p.ProjectRole)
	}
	if p.DetailedInstructions != "" {
		fmt.Fprintf(&sb, "Standing instructions: %s\n", p.DetailedInstructions)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func responseRules() string {
	return strings.Join([]string{
		"- Respond with exactly one JSON object describing your next action.",
		"- To talk to an agent set target_type to AGENT, recipient to its name and write the message.",
		"- To use a tool set target_type to TOOL, recipient to the tool name and fill tool_args with a single key equal to that tool name.",
		"- Address only members listed in the team or tools listed in the catalog.",
		"- " + completionRule,
		"- Explain your reasoning in thought.",
	}, "\n")
}

func fileTree(tree string) string {
	if strings.TrimSpace(tree) == "" {
		return "(no files yet)"
	}
	return "```\n" + tree + "\n```"
}

// buildTurnPrompt renders the decision prompt for a generated agent.
func buildTurnPrompt(p model.AgentProfile, task string, in TurnInput, history []model.Entry) string {
	var sb strings.Builder

	writeSection(&sb, "Identity", identity(p))
	writeSection(&sb, "Current Task", task)
	writeSection(&sb, "Project", in.Project)
	writeJSONSection(&sb, "Team", publicProfiles(in.Team))
	if in.Tools != nil {
		writeJSONSection(&sb, "Available Tools", in.Tools.Catalog())
	}
	writeSection(&sb, "Project Files", fileTree(in.FileTree))
	writeJSONSection(&sb, "Your Conversation History", historyPayload(history))
	writeSection(&sb, "Response Rules", responseRules())

	return sb.String()
}

// buildKickoffPrompt renders the team formation prompt over the full log.
func buildKickoffPrompt(p model.AgentProfile, team []model.AgentProfile, history []model.Entry) string {
	var sb strings.Builder

	writeSection(&sb, "Identity", identity(p))
	writeSection(&sb, "Current Task",
		"Requirements are finalized. Form the development team for this project. "+
			"Define each new member's name, role, project role and standing instructions. "+
			"Write a kickoff message for the whole team and choose the member who receives the first concrete task. "+
			"Do not redefine existing members.")
	writeJSONSection(&sb, "Existing Members", publicProfiles(team))
	writeJSONSection(&sb, "Project Log", historyPayload(history))

	return sb.String()
}
