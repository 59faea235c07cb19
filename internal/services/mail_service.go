package services

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"html/template"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// BillingNotifier tells users about billing events they did not trigger.
type BillingNotifier interface {
	SendRenewalFailed(to, reason string) error
	SendSubscriptionExpired(to string) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	// true for SMTPS on 465, false for STARTTLS on 587
	UseSSL bool

	AppName    string
	AppBaseURL string
}

type smtpMailService struct {
	cfg     SMTPConfig
	htmlTpl *template.Template
	// swapped in tests
	deliver func(to string, msg []byte) error
}

// NewMailService returns an SMTP notifier, or a logging no-op when no SMTP
// host is configured.
func NewMailService(cfg SMTPConfig, log logrus.FieldLogger) BillingNotifier {
	if cfg.Host == "" {
		log.Warn("SMTP_HOST not set, billing emails are disabled")
		return noopNotifier{log: log}
	}
	s := &smtpMailService{
		cfg:     cfg,
		htmlTpl: template.Must(template.New("billing").Parse(billingHTMLTemplate)),
	}
	s.deliver = s.send
	return s
}

func (s *smtpMailService) SendRenewalFailed(to, reason string) error {
	return s.notify(to, "Pro 구독 결제에 실패했습니다", emailData{
		Title: "Pro 구독 갱신 결제 실패",
		Intro: fmt.Sprintf("등록된 카드로 이번 달 구독료를 결제하지 못해 무료 플랜으로 전환되었습니다. 사유: %s", reason),
		CTA:   "다시 구독하기",
	})
}

func (s *smtpMailService) SendSubscriptionExpired(to string) error {
	return s.notify(to, "Pro 구독이 종료되었습니다", emailData{
		Title: "Pro 구독 종료 안내",
		Intro: "해지 예약하신 Pro 구독 기간이 끝나 무료 플랜으로 전환되었습니다. 그동안 이용해주셔서 감사합니다.",
		CTA:   "구독 관리",
	})
}

type emailData struct {
	Title   string
	Intro   string
	CTA     string
	URL     string
	AppName string
	Year    int
}

const billingHTMLTemplate = `<!doctype html>
<html>
<head><meta charset="UTF-8"><title>{{.Title}}</title></head>
<body style="margin:0;padding:24px;background:#0f172a;color:#f8fafc;font-family:-apple-system,'Apple SD Gothic Neo',sans-serif;">
  <div style="max-width:520px;margin:0 auto;background:#1e293b;border-radius:12px;padding:32px;">
    <h1 style="font-size:20px;margin:0 0 16px;">{{.Title}}</h1>
    <p style="line-height:1.6;color:#cbd5e1;">{{.Intro}}</p>
    {{if .URL}}<p style="margin-top:24px;"><a href="{{.URL}}" style="background:#8b5cf6;color:#fff;padding:12px 20px;border-radius:8px;text-decoration:none;">{{.CTA}}</a></p>{{end}}
    <p style="margin-top:32px;font-size:12px;color:#64748b;">{{.AppName}} (c) {{.Year}}</p>
  </div>
</body>
</html>`

func (s *smtpMailService) notify(to, subject string, data emailData) error {
	data.AppName = s.cfg.AppName
	data.Year = time.Now().Year()
	data.URL = strings.TrimRight(s.cfg.AppBaseURL, "/") + "/subscription"

	var html bytes.Buffer
	if err := s.htmlTpl.Execute(&html, data); err != nil {
		return err
	}
	text := fmt.Sprintf("%s\n\n%s\n\n%s: %s\n", data.Title, data.Intro, data.CTA, data.URL)
	return s.deliver(to, s.buildMessage(to, subject, html.String(), text))
}

func (s *smtpMailService) buildMessage(to, subject, htmlBody, textBody string) []byte {
	boundary := fmt.Sprintf("alt_%d", time.Now().UnixNano())

	var msg bytes.Buffer
	write := func(format string, a ...any) { _, _ = fmt.Fprintf(&msg, format, a...) }

	write("From: %s\r\n", s.fromHeader())
	write("To: %s\r\n", to)
	write("Subject: %s\r\n", mime.BEncoding.Encode("UTF-8", subject))
	write("Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	write("MIME-Version: 1.0\r\n")
	write("Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)

	write("--%s\r\n", boundary)
	write("Content-Type: text/plain; charset=UTF-8\r\n")
	write("Content-Transfer-Encoding: 8bit\r\n\r\n")
	write("%s\r\n\r\n", textBody)

	write("--%s\r\n", boundary)
	write("Content-Type: text/html; charset=UTF-8\r\n")
	write("Content-Transfer-Encoding: 8bit\r\n\r\n")
	write("%s\r\n\r\n", htmlBody)

	write("--%s--\r\n", boundary)
	return msg.Bytes()
}

func (s *smtpMailService) fromHeader() string {
	name := strings.TrimSpace(s.cfg.FromName)
	if name == "" {
		return s.cfg.From
	}
	return fmt.Sprintf("%s <%s>", mime.BEncoding.Encode("UTF-8", name), s.cfg.From)
}

func (s *smtpMailService) send(to string, msg []byte) error {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)

	if !s.cfg.UseSSL {
		// SendMail upgrades with STARTTLS when the server offers it.
		return smtp.SendMail(addr, auth, s.cfg.From, []string{to}, msg)
	}

	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12})
	if err != nil {
		return err
	}
	defer conn.Close()

	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return err
	}
	defer c.Quit()

	if err = c.Auth(auth); err != nil {
		return err
	}
	if err = c.Mail(s.cfg.From); err != nil {
		return err
	}
	if err = c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err = w.Write(msg); err != nil {
		return err
	}
	return w.Close()
}

type noopNotifier struct {
	log logrus.FieldLogger
}

func (n noopNotifier) SendRenewalFailed(to, reason string) error {
	n.log.WithFields(logrus.Fields{"to": to, "reason": reason}).Debug("renewal failure email skipped")
	return nil
}

func (n noopNotifier) SendSubscriptionExpired(to string) error {
	n.log.WithField("to", to).Debug("expiry email skipped")
	return nil
}
