package documents

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.io/infrasutra/docreg/internal/workbook"
)

// Listener is told about every appended row. Listener errors are logged
// and never undo the append.
type Listener interface {
	RowAppended(ctx context.Context, t Type, row Row) error
}

type Service struct {
	opener    workbook.Opener
	logger    *slog.Logger
	now       func() time.Time
	listeners []Listener
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func WithListener(l Listener) Option {
	return func(s *Service) {
		if l != nil {
			s.listeners = append(s.listeners, l)
		}
	}
}

func NewService(opener workbook.Opener, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{opener: opener, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Prepare loads what the form for t shows: reference lists, the number
// the next row would get and the current time.
func (s *Service) Prepare(ctx context.Context, t Type) (Form, error) {
	wb, err := s.opener.Open(ctx)
	if err != nil {
		return Form{}, fmt.Errorf("open workbook: %w", err)
	}
	senders, recipients, err := references(ctx, wb)
	if err != nil {
		return Form{}, err
	}
	values, err := wb.Values(ctx, string(t))
	if err != nil {
		return Form{}, fmt.Errorf("read %s: %w", t, err)
	}
	return Form{
		Type:       t,
		Number:     CorrelativeNumber(len(values)),
		Timestamp:  s.now().Format(TimestampLayout),
		Senders:    senders,
		Recipients: recipients,
	}, nil
}

// Register appends exactly one row to the tab of t. Number and timestamp
// are computed at submit time.
func (s *Service) Register(ctx context.Context, t Type, sub Submission) (Row, error) {
	wb, err := s.opener.Open(ctx)
	if err != nil {
		return Row{}, fmt.Errorf("open workbook: %w", err)
	}
	senders, recipients, err := references(ctx, wb)
	if err != nil {
		return Row{}, err
	}
	if !contains(senders, sub.Sender) || !contains(recipients, sub.Recipient) {
		return Row{}, ErrInvalidSelection
	}

	values, err := wb.Values(ctx, string(t))
	if err != nil {
		return Row{}, fmt.Errorf("read %s: %w", t, err)
	}
	row := Row{
		Number:    CorrelativeNumber(len(values)),
		Timestamp: s.now().Format(TimestampLayout),
		Sender:    sub.Sender,
		Recipient: sub.Recipient,
		Subject:   sub.Subject,
	}
	if err := wb.AppendRow(ctx, string(t), row.Cells()); err != nil {
		return Row{}, fmt.Errorf("append %s: %w", t, err)
	}
	s.logger.Info("document registered", "type", string(t), "number", row.Number)

	for _, l := range s.listeners {
		if err := l.RowAppended(ctx, t, row); err != nil {
			s.logger.Error("row listener", "type", string(t), "number", row.Number, "error", err)
		}
	}
	return row, nil
}

// Records returns the whole tab of t, fetched fresh.
func (s *Service) Records(ctx context.Context, t Type) (Table, error) {
	wb, err := s.opener.Open(ctx)
	if err != nil {
		return Table{}, fmt.Errorf("open workbook: %w", err)
	}
	values, err := wb.Values(ctx, string(t))
	if err != nil {
		return Table{}, fmt.Errorf("read %s: %w", t, err)
	}
	return tableFrom(values), nil
}

func references(ctx context.Context, wb workbook.Workbook) ([]string, []string, error) {
	senders, err := wb.Values(ctx, SendersTab)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", SendersTab, err)
	}
	recipients, err := wb.Values(ctx, RecipientsTab)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", RecipientsTab, err)
	}
	return labels(senders), labels(recipients), nil
}
