package notify

import (
	"fmt"

	"quality-hub/internal/models"
)

// Message is the rendered, channel-independent content of an event
type Message struct {
	Title   string
	Body    string
	Path    string
	Details map[string]string
}

// Render builds the user-facing message for an outbox event
func Render(e *models.OutboxEvent) Message {
	title := e.Data["title"]
	if title == "" {
		title = "Inspection"
	}

	m := Message{Details: map[string]string{}}
	if e.InspectionID != nil {
		m.Path = "/quality-inspections/" + *e.InspectionID
	}
	if status := e.Data["status"]; status != "" {
		m.Details["Status"] = status
	}

	switch e.EventType {
	case models.EventInspectionSubmitted:
		m.Title = "Inspection submitted for review"
		m.Body = fmt.Sprintf("%q was submitted and is waiting for review.", title)
	case models.EventInspectionAssigned:
		m.Title = "Inspection assigned"
		m.Body = fmt.Sprintf("%q has been assigned for review.", title)
	case models.EventInspectionApproved:
		m.Title = "Inspection approved"
		m.Body = fmt.Sprintf("%q was approved by the reviewer and awaits final approval.", title)
	case models.EventInspectionRejected:
		m.Title = "Inspection rejected"
		m.Body = fmt.Sprintf("%q was rejected and returned to draft.", title)
		m.Details["Reason"] = e.Data["reason"]
	case models.EventRevisionRequested:
		m.Title = "Revision requested"
		m.Body = fmt.Sprintf("Changes were requested for %q.", title)
	case models.EventInspectionCompleted:
		m.Title = "Inspection completed"
		m.Body = fmt.Sprintf("%q received final approval.", title)
	case models.EventInspectionOverridden:
		m.Title = "Inspection decision overridden"
		m.Body = fmt.Sprintf("The review of %q was overridden with decision %q.", title, e.Data["decision"])
		m.Details["Reason"] = e.Data["reason"]
		m.Details["Previous status"] = e.Data["original_status"]
	case models.EventClientReviewed:
		m.Title = "Client reviewed inspection"
		m.Body = fmt.Sprintf("The client left a review on %q.", title)
	case models.EventClientApproved:
		m.Title = "Client approved inspection"
		m.Body = fmt.Sprintf("The client approved %q.", title)
	case models.EventClientRejected:
		m.Title = "Client rejected inspection"
		m.Body = fmt.Sprintf("The client rejected %q. Rework is required.", title)
	case models.EventRoleAssigned:
		m.Title = "Quality role assigned"
		m.Body = fmt.Sprintf("You now hold the quality role %q.", e.Data["role"])
		m.Path = "/quality-roles/me"
	case models.EventRoleRemoved:
		m.Title = "Quality role removed"
		m.Body = fmt.Sprintf("Your quality role %q was removed.", e.Data["role"])
		m.Path = "/quality-roles/me"
	case models.EventReviewReminder:
		m.Title = "Inspection awaiting review"
		m.Body = fmt.Sprintf("%q has been waiting for review since %s.", title, e.Data["submitted_at"])
	default:
		m.Title = "Inspection update"
		m.Body = fmt.Sprintf("%q was updated.", title)
	}

	for k, v := range m.Details {
		if v == "" {
			delete(m.Details, k)
		}
	}
	return m
}
