package email

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"

	"github.com/migratesafely/membership_server/config"
)

// 通知模板，key 与会员事件类型一致
var templates = map[string]struct {
	subject string
	body    *template.Template
}{
	"membership_activated": {
		subject: "Your MigrateSafely membership is active",
		body: mustParse(`<h2 style="color: #2563eb;">Membership activated</h2>
<p>Hello {{.name}},</p>
<p>Your membership is now active until <strong>{{.end_date}}</strong>.</p>`),
	},
	"referral_bonus_paid": {
		subject: "You earned a referral bonus",
		body: mustParse(`<h2 style="color: #16a34a;">Referral bonus credited</h2>
<p>Hello {{.name}},</p>
<p>A member you referred has activated their membership. <strong>{{.amount}} {{.currency}}</strong> has been added to your wallet.</p>`),
	},
	"membership_expired": {
		subject: "Your MigrateSafely membership has expired",
		body: mustParse(`<h2 style="color: #dc2626;">Membership expired</h2>
<p>Hello {{.name}},</p>
<p>Your membership expired on {{.end_date}}. Renew from your dashboard to keep your benefits.</p>`),
	},
	"payment_rejected": {
		subject: "Your membership payment could not be verified",
		body: mustParse(`<h2 style="color: #dc2626;">Payment not verified</h2>
<p>Hello {{.name}},</p>
<p>We could not verify your payment {{.reference}}.{{if .reason}} Reason: {{.reason}}.{{end}}</p>
<p>Please submit a new receipt.</p>`),
	},
}

const layout = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        %s
        <hr style="border: none; border-top: 1px solid #e5e7eb; margin: 20px 0;">
        <p style="color: #6b7280; font-size: 12px;">This message was sent automatically. Please do not reply.</p>
    </div>
</body>
</html>
`

func mustParse(s string) *template.Template {
	return template.Must(template.New("").Option("missingkey=zero").Parse(s))
}

type Service struct {
	cfg *config.EmailConfig
}

func NewService(cfg *config.EmailConfig) *Service {
	return &Service{cfg: cfg}
}

// Render 渲染事件通知，返回主题和 HTML 正文
func Render(event string, data map[string]string) (string, string, error) {
	tpl, ok := templates[event]
	if !ok {
		return "", "", fmt.Errorf("no email template for event %q", event)
	}
	var buf bytes.Buffer
	if err := tpl.body.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("render %s: %w", event, err)
	}
	return tpl.subject, fmt.Sprintf(layout, buf.String()), nil
}

// SendNotification 渲染并发送事件通知
func (s *Service) SendNotification(to, event string, data map[string]string) error {
	subject, body, err := Render(event, data)
	if err != nil {
		return err
	}
	return s.sendHTML(to, subject, body)
}

// sendHTML 发送 HTML 邮件
func (s *Service) sendHTML(to, subject, body string) error {
	if s.cfg == nil || s.cfg.SMTPHost == "" {
		return fmt.Errorf("smtp not configured")
	}

	var msg strings.Builder
	for _, h := range [][2]string{
		{"From", s.cfg.From},
		{"To", to},
		{"Subject", subject},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/html; charset=UTF-8"},
	} {
		msg.WriteString(fmt.Sprintf("%s: %s\r\n", h[0], h[1]))
	}
	msg.WriteString("\r\n")
	msg.WriteString(body)

	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.SMTPHost)
	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)

	return smtp.SendMail(addr, auth, s.cfg.From, []string{to}, []byte(msg.String()))
}
