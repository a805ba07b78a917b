package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.io/infrasutra/docreg/internal/workbook"
)

const spreadsheetMimeType = "application/vnd.google-apps.spreadsheet"

var ErrSpreadsheetNotFound = errors.New("spreadsheet not found")

// Connector opens the registry spreadsheet once and hands out the cached
// handle afterwards. A failed attempt is not cached. The first open runs
// under the connector lock, so while a FileTokenProvider waits for the
// authorization code on the terminal every other caller waits too. Run
// `docreg authorize` before serving to avoid that.
type Connector struct {
	provider TokenProvider
	name     string
	id       string
	options  []option.ClientOption
	logger   *slog.Logger

	mu    sync.Mutex
	sheet *Spreadsheet
}

var _ workbook.Opener = (*Connector)(nil)

// NewConnector opens the spreadsheet with the given id, or, when id is
// empty, the first spreadsheet titled name visible to the credentials.
// Extra client options are appended to both API clients.
func NewConnector(provider TokenProvider, name, id string, logger *slog.Logger, opts ...option.ClientOption) *Connector {
	return &Connector{
		provider: provider,
		name:     name,
		id:       id,
		options:  opts,
		logger:   logger,
	}
}

func (c *Connector) Open(ctx context.Context) (workbook.Workbook, error) {
	sheet, err := c.Spreadsheet(ctx)
	if err != nil {
		return nil, err
	}
	return sheet, nil
}

func (c *Connector) Spreadsheet(ctx context.Context) (*Spreadsheet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sheet != nil {
		return c.sheet, nil
	}

	httpClient, err := c.provider.Client(ctx)
	if err != nil {
		return nil, fmt.Errorf("authorize: %w", err)
	}
	opts := append([]option.ClientOption{option.WithHTTPClient(httpClient)}, c.options...)

	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	id := c.id
	if id == "" {
		id, err = c.lookup(ctx, opts)
		if err != nil {
			return nil, err
		}
	}

	c.sheet = &Spreadsheet{srv: srv, id: id}
	c.logger.Info("spreadsheet connected", "name", c.name, "id", id)
	return c.sheet, nil
}

func (c *Connector) lookup(ctx context.Context, opts []option.ClientOption) (string, error) {
	srv, err := drive.NewService(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("create drive service: %w", err)
	}
	query := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false",
		escapeQuery(c.name), spreadsheetMimeType)
	list, err := srv.Files.List().
		Q(query).
		Fields(googleapi.Field("files(id, name)")).
		PageSize(1).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("find spreadsheet %q: %w", c.name, err)
	}
	if len(list.Files) == 0 {
		return "", fmt.Errorf("%w: %s", ErrSpreadsheetNotFound, c.name)
	}
	return list.Files[0].Id, nil
}

func escapeQuery(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	return strings.ReplaceAll(value, "'", `\'`)
}
