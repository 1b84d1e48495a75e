package receipt

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"

	"github.com/sjpiano/paytrack/internal/services/reconcile/domain"
)

// ErrDeliveryDisabled is returned by LogSender: nothing was delivered.
var ErrDeliveryDisabled = errors.New("receipt delivery is not configured")

// SMTPConfig configures SMTPSender.
type SMTPConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	From        string
	BCC         []string
	AcademyName string
	Location    *time.Location
}

// SMTPSender delivers receipts over SMTP with implicit TLS.
type SMTPSender struct {
	cfg       SMTPConfig
	localizer Localizer
	clock     func() time.Time
	dial      func(ctx context.Context, addr string) (net.Conn, error)
}

// NewSMTPSender validates cfg and returns a sender.
func NewSMTPSender(cfg SMTPConfig, localizer Localizer) (*SMTPSender, error) {
	cfg.Host = strings.TrimSpace(cfg.Host)
	cfg.From = strings.TrimSpace(cfg.From)
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if cfg.Port <= 0 {
		cfg.Port = 465
	}
	if cfg.From == "" {
		cfg.From = strings.TrimSpace(cfg.Username)
	}
	if _, err := mail.ParseAddress(cfg.From); err != nil {
		return nil, fmt.Errorf("receipt sender address: %w", err)
	}
	if localizer == nil {
		return nil, fmt.Errorf("localizer is required")
	}
	dialer := &tls.Dialer{Config: &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}}
	return &SMTPSender{
		cfg:       cfg,
		localizer: localizer,
		clock:     time.Now,
		dial: func(ctx context.Context, addr string) (net.Conn, error) {
			return dialer.DialContext(ctx, "tcp", addr)
		},
	}, nil
}

// SendReceipt implements domain.ReceiptSender.
func (s *SMTPSender) SendReceipt(ctx context.Context, recipientEmail string, invoice domain.Invoice) error {
	if s == nil {
		return ErrDeliveryDisabled
	}
	recipient, err := mail.ParseAddress(strings.TrimSpace(recipientEmail))
	if err != nil {
		return fmt.Errorf("receipt recipient: %w", err)
	}
	out := Render(s.localizer, Input{Invoice: invoice, AcademyName: s.cfg.AcademyName, Location: s.cfg.Location})
	body := BuildMessage(s.cfg.From, recipient.Address, out, s.clock())

	conn, err := s.dial(ctx, net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port)))
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if s.cfg.Username != "" {
		if err := client.Auth(smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	sender, _ := mail.ParseAddress(s.cfg.From)
	if err := client.Mail(sender.Address); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	for _, rcpt := range append([]string{recipient.Address}, s.cfg.BCC...) {
		if strings.TrimSpace(rcpt) == "" {
			continue
		}
		if err := client.Rcpt(strings.TrimSpace(rcpt)); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", rcpt, err)
		}
	}
	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := writer.Write(body); err != nil {
		_ = writer.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("smtp data close: %w", err)
	}
	return client.Quit()
}

// BuildMessage renders a plain-text RFC 5322 message. Blind copies are
// passed as envelope recipients only and never appear in headers.
func BuildMessage(from, to string, out Output, now time.Time) []byte {
	var buf bytes.Buffer
	domainPart := "paytrack.local"
	if at := strings.LastIndex(from, "@"); at >= 0 {
		domainPart = strings.Trim(from[at+1:], "> ")
	}
	header := func(name, value string) {
		buf.WriteString(name)
		buf.WriteString(": ")
		buf.WriteString(value)
		buf.WriteString("\r\n")
	}
	header("From", from)
	header("To", to)
	header("Subject", mime.QEncoding.Encode("utf-8", out.Subject))
	header("Date", now.Format(time.RFC1123Z))
	header("Message-ID", "<"+uuid.NewString()+"@"+domainPart+">")
	header("MIME-Version", "1.0")
	header("Content-Type", `text/plain; charset="utf-8"`)
	header("Content-Transfer-Encoding", "8bit")
	buf.WriteString("\r\n")
	buf.WriteString(strings.ReplaceAll(strings.ReplaceAll(out.BodyText, "\r\n", "\n"), "\n", "\r\n"))
	return buf.Bytes()
}

// LogSender logs receipts instead of sending them and reports every send as
// failed so runs surface the missing delivery.
type LogSender struct {
	Localizer   Localizer
	AcademyName string
	Logf        func(format string, args ...any)
}

// SendReceipt implements domain.ReceiptSender.
func (s LogSender) SendReceipt(_ context.Context, recipientEmail string, invoice domain.Invoice) error {
	logf := s.Logf
	if logf == nil {
		logf = log.Printf
	}
	localizer := s.Localizer
	if localizer == nil {
		localizer = NewLocalizer(language.English)
	}
	out := Render(localizer, Input{Invoice: invoice, AcademyName: s.AcademyName})
	logf("receipt not sent to %s (%s): %q", recipientEmail, invoice.Number, out.Subject)
	return ErrDeliveryDisabled
}

var (
	_ domain.ReceiptSender = (*SMTPSender)(nil)
	_ domain.ReceiptSender = LogSender{}
)
