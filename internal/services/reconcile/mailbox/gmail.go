package mailbox

import (
	"context"
	"fmt"
	"iter"
	"net/mail"
	"os"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/sjpiano/paytrack/internal/services/reconcile/domain"
)

// GmailExport serves candidate emails from a Gmail API export: either a
// users.messages list response ({"messages": [...]}) or a bare array of
// message resources fetched with format=metadata.
type GmailExport struct {
	Path string
}

// SearchCandidateEmails implements domain.Mailbox.
func (g *GmailExport) SearchCandidateEmails(ctx context.Context, query domain.SearchQuery) iter.Seq2[domain.CandidateEmail, error] {
	return func(yield func(domain.CandidateEmail, error) bool) {
		if g == nil || strings.TrimSpace(g.Path) == "" {
			yield(domain.CandidateEmail{}, fmt.Errorf("gmail export path is not configured"))
			return
		}
		data, err := os.ReadFile(g.Path)
		if err != nil {
			yield(domain.CandidateEmail{}, fmt.Errorf("read gmail export: %w", err))
			return
		}
		messages, err := gmailMessages(data)
		if err != nil {
			yield(domain.CandidateEmail{}, err)
			return
		}
		for _, message := range messages {
			if err := ctx.Err(); err != nil {
				yield(domain.CandidateEmail{}, err)
				return
			}
			email := gmailCandidate(message)
			if !matchesQuery(email, query) {
				continue
			}
			if !yield(email, nil) {
				return
			}
		}
	}
}

func gmailMessages(data []byte) ([]gjson.Result, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("gmail export is not valid JSON")
	}
	root := gjson.ParseBytes(data)
	if root.IsArray() {
		return root.Array(), nil
	}
	if messages := root.Get("messages"); messages.IsArray() {
		return messages.Array(), nil
	}
	return nil, fmt.Errorf("gmail export has no messages array")
}

func gmailCandidate(message gjson.Result) domain.CandidateEmail {
	headers := map[string]string{}
	message.Get("payload.headers").ForEach(func(_, header gjson.Result) bool {
		name := strings.ToLower(header.Get("name").String())
		if _, seen := headers[name]; !seen {
			headers[name] = header.Get("value").String()
		}
		return true
	})

	var receivedAt time.Time
	if millis := message.Get("internalDate"); millis.Exists() && millis.Int() > 0 {
		receivedAt = time.UnixMilli(millis.Int()).UTC()
	} else if raw := headers["date"]; raw != "" {
		receivedAt = receivedAtOrZero(mail.ParseDate(raw))
	}

	messageID := strings.TrimSpace(message.Get("id").String())
	if messageID == "" {
		messageID = strings.TrimSpace(headers["message-id"])
	}
	return domain.CandidateEmail{
		MessageID:  messageID,
		Subject:    decodeHeader(headers["subject"]),
		ReplyTo:    decodeHeader(headers["reply-to"]),
		ReceivedAt: receivedAt,
	}
}
