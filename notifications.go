package main

import (
	"fmt"
	"strconv"

	"pawrescue/libs/mailer"
)

func (a *App) buildReportCreatedEmail(created CreateReportResult) mailer.Message {
	subject := fmt.Sprintf("New injured animal report #%d", created.ID)

	assignment := "No NGO has been assigned yet."
	if created.AssignedNGO != nil && *created.AssignedNGO != "" {
		assignment = fmt.Sprintf("Assigned to %s.", *created.AssignedNGO)
		if created.DistanceKM != nil {
			assignment = fmt.Sprintf("Assigned to %s (%s km away).", *created.AssignedNGO, strconv.FormatFloat(*created.DistanceKM, 'f', -1, 64))
		}
	}

	html := fmt.Sprintf(`
		<div style="font-family: sans-serif; max-width: 600px; margin: 0 auto; line-height: 1.6; color: #333;">
			<h2>New report submitted</h2>
			<p>Report <strong>#%d</strong> was just submitted through the public form.</p>
			<p>%s</p>
			<p style="margin: 30px 0;">
				<a href="%s" style="background-color: #2e7d32; color: white; padding: 12px 24px; text-decoration: none; border-radius: 4px; font-weight: bold; display: inline-block;">
					Open dashboard
				</a>
			</p>
		</div>
	`, created.ID, assignment, buildPublicURL(a.cfg.PublicBaseURL, "/reports"))

	text := fmt.Sprintf(
		"Report #%d was just submitted through the public form.\n\n%s\n\nOpen the dashboard:\n%s",
		created.ID, assignment, buildPublicURL(a.cfg.PublicBaseURL, "/reports"),
	)

	return mailer.Message{
		To:      []string{a.cfg.NotifyEmailTo},
		Subject: subject,
		HTML:    html,
		Text:    text,
	}
}

// sendReportCreatedNotification emails the configured contact after a
// successful create. Runs off the request path; a mail failure is
// logged and never affects the submission result.
func (a *App) sendReportCreatedNotification(created CreateReportResult) {
	if a.mailer == nil || a.cfg.NotifyEmailTo == "" {
		return
	}
	if _, err := a.mailer.Send(a.buildReportCreatedEmail(created)); err != nil {
		a.log.Error("failed to send report notification", "report_id", created.ID, "err", err)
		return
	}
	a.log.Info("report notification sent", "report_id", created.ID, "to", a.cfg.NotifyEmailTo)
}
