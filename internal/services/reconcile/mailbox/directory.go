package mailbox

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/sjpiano/paytrack/internal/services/reconcile/domain"
)

// Directory serves candidate emails from .eml files. Messages whose headers
// cannot be parsed are logged and left out.
type Directory struct {
	Dir string
}

// SearchCandidateEmails implements domain.Mailbox.
func (d *Directory) SearchCandidateEmails(ctx context.Context, query domain.SearchQuery) iter.Seq2[domain.CandidateEmail, error] {
	return func(yield func(domain.CandidateEmail, error) bool) {
		if d == nil || strings.TrimSpace(d.Dir) == "" {
			yield(domain.CandidateEmail{}, fmt.Errorf("mailbox directory is not configured"))
			return
		}
		names, err := emlFiles(d.Dir)
		if err != nil {
			yield(domain.CandidateEmail{}, err)
			return
		}
		for _, name := range names {
			if err := ctx.Err(); err != nil {
				yield(domain.CandidateEmail{}, err)
				return
			}
			email, err := readEML(filepath.Join(d.Dir, name))
			if err != nil {
				if errors.Is(err, errMalformedMessage) {
					log.Printf("mailbox: skip %s: %v", name, err)
					continue
				}
				yield(domain.CandidateEmail{}, err)
				return
			}
			if !matchesQuery(email, query) {
				continue
			}
			if !yield(email, nil) {
				return
			}
		}
	}
}

var errMalformedMessage = errors.New("malformed message")

func emlFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read mailbox dir: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".eml") {
			continue
		}
		names = append(names, entry.Name())
	}
	slices.Sort(names)
	return names, nil
}

func readEML(path string) (domain.CandidateEmail, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.CandidateEmail{}, fmt.Errorf("%w: %v", errMalformedMessage, err)
		}
		return domain.CandidateEmail{}, fmt.Errorf("open message: %w", err)
	}
	defer file.Close()

	msg, err := mail.ReadMessage(file)
	if err != nil {
		return domain.CandidateEmail{}, fmt.Errorf("%w: %v", errMalformedMessage, err)
	}
	messageID := strings.TrimSpace(msg.Header.Get("Message-Id"))
	if messageID == "" {
		messageID = filepath.Base(path)
	}
	return domain.CandidateEmail{
		MessageID:  messageID,
		Subject:    decodeHeader(msg.Header.Get("Subject")),
		ReplyTo:    decodeHeader(msg.Header.Get("Reply-To")),
		ReceivedAt: receivedAtOrZero(msg.Header.Date()),
	}, nil
}
