package email

import (
	"bytes"
	"fmt"

	"gopkg.in/gomail.v2"
)

// BuildMIME renders msg as an RFC 2822 multipart/alternative message with a
// UTF-8 text/plain part followed by a UTF-8 text/html part.
func BuildMIME(msg Message) ([]byte, error) {
	m := gomail.NewMessage(gomail.SetCharset("UTF-8"), gomail.SetEncoding(gomail.QuotedPrintable))
	m.SetHeader("From", msg.From)
	m.SetHeader("To", msg.To...)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.TextBody)
	m.AddAlternative("text/html", msg.HTMLBody)

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to build MIME message: %w", err)
	}
	return buf.Bytes(), nil
}
