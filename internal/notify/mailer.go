// Package notify mails a short receipt for every registered document.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.io/infrasutra/docreg/internal/config"
	"github.io/infrasutra/docreg/internal/documents"
)

type Mailer struct {
	addr   string
	from   string
	to     []string
	auth   sasl.Client
	logger *slog.Logger
	now    func() time.Time
}

var _ documents.Listener = (*Mailer)(nil)

func NewMailer(cfg config.SMTPConfig, logger *slog.Logger) *Mailer {
	var auth sasl.Client
	if cfg.Username != "" {
		auth = sasl.NewPlainClient("", cfg.Username, cfg.Password)
	}
	return &Mailer{
		addr:   cfg.Addr,
		from:   cfg.From,
		to:     cfg.To,
		auth:   auth,
		logger: logger,
		now:    time.Now,
	}
}

func (m *Mailer) RowAppended(ctx context.Context, t documents.Type, row documents.Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := buildReceipt(m.from, m.to, t, row, m.now())
	if err != nil {
		return fmt.Errorf("build receipt: %w", err)
	}
	if err := smtp.SendMail(m.addr, m.auth, m.from, m.to, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("send receipt: %w", err)
	}
	m.logger.Info("receipt sent", "type", string(t), "number", row.Number, "to", len(m.to))
	return nil
}

func buildReceipt(from string, to []string, t documents.Type, row documents.Row, now time.Time) ([]byte, error) {
	var h mail.Header
	h.SetDate(now)
	h.SetAddressList("From", []*mail.Address{{Name: "Control de documentos", Address: from}})
	recipients := make([]*mail.Address, 0, len(to))
	for _, addr := range to {
		recipients = append(recipients, &mail.Address{Address: addr})
	}
	h.SetAddressList("To", recipients)
	h.SetSubject(fmt.Sprintf("Registro de %s Nro %s", t.Title(), row.Number))
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	if err := h.GenerateMessageID(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, err
	}
	body := fmt.Sprintf("Tipo: %s\r\nNro: %s\r\nFecha y Hora: %s\r\nRemitente: %s\r\nDestinatario: %s\r\nAsunto: %s\r\n",
		t, row.Number, row.Timestamp, row.Sender, row.Recipient, row.Subject)
	if _, err := io.WriteString(w, body); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
