package services

import (
	"fmt"
	"log"
	"net/smtp"
	"time"
)

// EmailService sends best-effort scheduling notifications. Without SMTP
// configuration it runs in dev mode and logs instead of sending; a send
// failure is the caller's to log and never to propagate.
type EmailService struct {
	host    string
	port    string
	user    string
	pass    string
	from    string
	devMode bool
}

func NewEmailService(host, port, user, pass, from string) *EmailService {
	devMode := host == "" || user == ""
	if devMode {
		log.Println("⚠ Email service running in DEV MODE (logging to console)")
	}
	return &EmailService{
		host:    host,
		port:    port,
		user:    user,
		pass:    pass,
		from:    from,
		devMode: devMode,
	}
}

func (s *EmailService) SendSessionScheduled(to, subject string, start time.Time, meetLink string) error {
	body := fmt.Sprintf(
		"Your tutoring session \"%s\" has been scheduled for %s.",
		subject, start.Format("Monday, 2 Jan 2006 at 15:04 MST"))
	if meetLink != "" {
		body += fmt.Sprintf("\n\nJoin: %s", meetLink)
	}
	return s.send(to, "Session scheduled: "+subject, body)
}

func (s *EmailService) send(to, subject, body string) error {
	if s.devMode {
		log.Printf("[DEV EMAIL] to=%s subject=%q\n%s", to, subject, body)
		return nil
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", s.from, to, subject, body)
	auth := smtp.PlainAuth("", s.user, s.pass, s.host)
	if err := smtp.SendMail(s.host+":"+s.port, auth, s.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	return nil
}
