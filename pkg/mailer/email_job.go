package mailer

// EmailJob is the JSON payload put on the RabbitMQ queue. All mail this
// service sends is plain text.
type EmailJob struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// WelcomeJob builds the job published after a user is created.
func WelcomeJob(to, name string) EmailJob {
	return EmailJob{
		To:      to,
		Subject: "Welcome!",
		Text:    "Hi " + name + ",\n\nYour account has been created.\n",
	}
}
