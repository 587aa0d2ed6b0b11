package mail

import "fmt"

// SMTPMailer satisfies the payments mailer contract over plain SMTP.
type SMTPMailer struct{}

func NewSMTPMailer() *SMTPMailer {
	return &SMTPMailer{}
}

// SendPaymentConfirmation notifies a user that their plan upgrade settled.
func (m *SMTPMailer) SendPaymentConfirmation(email, name, plan string) error {
	greeting := "Hi"
	if name != "" {
		greeting = "Hi " + name
	}
	subject := fmt.Sprintf("Your CardLink %s plan is active", plan)
	body := fmt.Sprintf(
		"<p>%s,</p>"+
			"<p>Your payment was confirmed and your <strong>%s</strong> plan is now active.</p>"+
			"<p>Thanks for supporting CardLink!</p>",
		greeting, plan,
	)
	return SendMail(email, subject, body)
}
