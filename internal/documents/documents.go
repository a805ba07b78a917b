// Package documents holds the registration workflow: reference lists,
// correlative numbering and the append of a document row.
package documents

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownType      = errors.New("unknown document type")
	ErrInvalidSelection = errors.New("sender or recipient not in reference list")
)

type Type string

const (
	Oficios           Type = "Oficios"
	HojasInformativas Type = "HojasInformativas"
)

const (
	SendersTab    = "Remitentes"
	RecipientsTab = "Destinatarios"

	TimestampLayout = "2006-01-02 15:04"
)

var (
	// Header is the first row of every document tab.
	Header = []string{"Nro", "Fecha y Hora", "Remitente", "Destinatario", "Asunto"}
	// ReferenceHeader is the first row of the sender and recipient tabs.
	ReferenceHeader = []string{"Nombre", "Cargo"}
)

func Types() []Type {
	return []Type{Oficios, HojasInformativas}
}

func ParseType(value string) (Type, error) {
	for _, t := range Types() {
		if string(t) == value {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownType, value)
}

func (t Type) Title() string {
	return strings.ToUpper(string(t))
}

type Row struct {
	Number    string `json:"number"`
	Timestamp string `json:"timestamp"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
}

func (r Row) Cells() []string {
	return []string{r.Number, r.Timestamp, r.Sender, r.Recipient, r.Subject}
}

type Submission struct {
	Sender    string
	Recipient string
	Subject   string
}

// Form is what the submission form needs to render.
type Form struct {
	Type       Type
	Number     string
	Timestamp  string
	Senders    []string
	Recipients []string
}

type Table struct {
	Header []string
	Rows   [][]string
}

// CorrelativeNumber derives the next document number from the number of
// rows already in the tab, header included. It is not collision safe when
// two writers append at once or rows are edited by hand.
func CorrelativeNumber(rowCount int) string {
	return fmt.Sprintf("%03d", rowCount)
}

// Label joins the two reference columns into one display value. Sheets
// drops trailing empty cells, so short rows read as empty strings.
func Label(cells []string) string {
	first, second := "", ""
	if len(cells) > 0 {
		first = cells[0]
	}
	if len(cells) > 1 {
		second = cells[1]
	}
	return first + "_" + second
}

func labels(values [][]string) []string {
	result := []string{}
	if len(values) <= 1 {
		return result
	}
	for _, row := range values[1:] {
		result = append(result, Label(row))
	}
	return result
}

func tableFrom(values [][]string) Table {
	if len(values) == 0 {
		return Table{Header: []string{}, Rows: [][]string{}}
	}
	header := values[0]
	rows := make([][]string, 0, len(values)-1)
	for _, row := range values[1:] {
		padded := make([]string, len(header))
		copy(padded, row)
		rows = append(rows, padded)
	}
	return Table{Header: header, Rows: rows}
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
