package notify

import "fmt"

const baseStyle = `font-family: -apple-system, 'Segoe UI', Roboto, sans-serif; max-width: 560px; margin: 0 auto; padding: 24px; color: #1a1a2e;`

func wrap(body string) string {
	return fmt.Sprintf(`<div style="%s">%s<p style="color:#8a8a9e;font-size:12px;margin-top:32px;">You are receiving this because of your Peerlink account.</p></div>`, baseStyle, body)
}

// ConnectionInviteTemplate is sent to the invited patient with the accept link.
func ConnectionInviteTemplate(requesterName, acceptURL string) (subject, html string) {
	subject = fmt.Sprintf("%s invited you to connect on Peerlink", requesterName)
	html = wrap(fmt.Sprintf(`
		<h2>New connection invite</h2>
		<p><strong>%s</strong> would like to connect with you as a recovery peer.</p>
		<p><a href="%s" style="display:inline-block;background:#4361ee;color:#fff;padding:10px 20px;border-radius:6px;text-decoration:none;">Review invite</a></p>
		<p>This invite expires in 7 days.</p>`, requesterName, acceptURL))
	return subject, html
}

// SurveyLinkTemplate is sent to the patient when a doctor assigns a survey.
func SurveyLinkTemplate(doctorName, occasion, surveyURL string) (subject, html string) {
	subject = fmt.Sprintf("Dr. %s asked you to fill in a %s survey", doctorName, occasion)
	html = wrap(fmt.Sprintf(`
		<h2>Outcome survey</h2>
		<p>Dr. <strong>%s</strong> asked you to complete a short %s questionnaire.</p>
		<p><a href="%s" style="display:inline-block;background:#4361ee;color:#fff;padding:10px 20px;border-radius:6px;text-decoration:none;">Open survey</a></p>`, doctorName, occasion, surveyURL))
	return subject, html
}

// SessionReminderTemplate is sent shortly before a scheduled call.
func SessionReminderTemplate(otherName, when, joinRef string) (subject, html string) {
	subject = fmt.Sprintf("Upcoming call with %s", otherName)
	link := ""
	if joinRef != "" {
		link = fmt.Sprintf(`<p><a href="%s" style="display:inline-block;background:#4361ee;color:#fff;padding:10px 20px;border-radius:6px;text-decoration:none;">Join call</a></p>`, joinRef)
	}
	html = wrap(fmt.Sprintf(`
		<h2>Call reminder</h2>
		<p>Your call with <strong>%s</strong> starts at %s.</p>%s`, otherName, when, link))
	return subject, html
}
