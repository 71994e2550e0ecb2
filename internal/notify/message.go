package notify

import "github.com/muzkat/reminder/internal/models"

// Subject and body carry the reminder's title and description as-is.

func EmailSubject(r *models.Reminder) string {
	return "Reminder: " + r.Title
}

func EmailBody(r *models.Reminder) string {
	return r.Description
}

func ChatText(r *models.Reminder) string {
	return "Reminder: *" + r.Title + "*\n\n" +
		r.Description + "\n\n" +
		"*starts at* " + r.RemindAt.Format("15:04") + "\n" +
		"*date* " + r.RemindAt.Format("02-01-2006")
}
