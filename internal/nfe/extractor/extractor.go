// Package extractor turns NFe XML into a models.Record.
package extractor

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"frota/internal/nfe/models"
)

// Namespace is the NFe schema namespace every looked-up element must carry.
const Namespace = "http://www.portalfiscal.inf.br/nfe"

const (
	emissionLayout = "2006-01-02T15:04:05"
	outputLayout   = "02/01/2006"
	// "-03:00"
	offsetLength = 6
)

// ErrMalformedDocument is returned when the bytes are not well-formed XML.
var ErrMalformedDocument = errors.New("malformed document")

var (
	emissionExpr = mustCompileNS("//nfe:dhEmi")
	paymentExpr  = mustCompileNS("//nfe:pag/nfe:detPag/nfe:vPag")
	infoExpr     = mustCompileNS("//nfe:infAdic/nfe:infCpl")
)

func mustCompileNS(expr string) *xpath.Expr {
	e, err := xpath.CompileWithNS(expr, map[string]string{"nfe": Namespace})
	if err != nil {
		panic(fmt.Sprintf("compile %q: %v", expr, err))
	}
	return e
}

// Extractor reads the emission date, payment amount, plate and odometer out
// of one document. It is stateless.
type Extractor struct{}

// New returns an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract parses raw and returns the record it describes. ok is false when
// the document is well formed but lacks the emission date or the payment
// amount; that is not an error. Malformed markup fails with
// ErrMalformedDocument.
func (e *Extractor) Extract(raw []byte) (record models.Record, ok bool, err error) {
	if err := checkWellFormed(raw); err != nil {
		return models.Record{}, false, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	doc, err := xmlquery.Parse(bytes.NewReader(raw))
	if err != nil {
		return models.Record{}, false, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	date := normalizeDate(lookup(doc, emissionExpr))
	amount := normalizeAmount(lookup(doc, paymentExpr))
	plate, km := matchPlate(lookup(doc, infoExpr))

	if date == "" || amount == "" {
		return models.Record{}, false, nil
	}
	return models.Record{
		Date:   date,
		Amount: amount,
		Plate:  plate,
		KM:     km,
	}, true, nil
}

// lookup returns the trimmed text of the first node matching expr, or ""
// when there is none.
func lookup(doc *xmlquery.Node, expr *xpath.Expr) string {
	n := xmlquery.QuerySelector(doc, expr)
	if n == nil {
		return ""
	}
	return strings.TrimSpace(n.InnerText())
}

// normalizeDate drops the trailing UTC offset and reformats the local
// timestamp as DD/MM/YYYY. A value that is present but unparseable becomes
// models.InvalidDate rather than "".
func normalizeDate(raw string) string {
	if raw == "" {
		return ""
	}
	local := raw
	if len(local) >= offsetLength {
		local = local[:len(local)-offsetLength]
	} else {
		local = ""
	}
	t, err := time.Parse(emissionLayout, local)
	if err != nil {
		return models.InvalidDate
	}
	return t.Format(outputLayout)
}

// normalizeAmount swaps the decimal separator to the Brazilian comma.
func normalizeAmount(raw string) string {
	return strings.ReplaceAll(raw, ".", ",")
}
