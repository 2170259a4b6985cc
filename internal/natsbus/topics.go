package natsbus

import "fmt"

// Event types carried in the envelope and used as the last topic token.
const (
	EventEntry = "entry"
	EventPhase = "phase"
	EventTeam  = "team"
)

const TopicEventsAll = "events.>"

func TopicProjectEvent(project, event string) string {
	return fmt.Sprintf("events.project.%s.%s", project, event)
}

func TopicProjectAll(project string) string {
	return fmt.Sprintf("events.project.%s.*", project)
}
