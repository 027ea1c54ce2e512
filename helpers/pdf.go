package helpers

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"
	"strings"
	"text/template"

	"bitbucket.org/etuitionbd/backend/models"
	"github.com/SebastiaanKlippert/go-wkhtmltopdf"
	"github.com/pkg/errors"
	qrcode "github.com/skip2/go-qrcode"
)

const pageBreak = `<div style="page-break-after: always;"></div>`

// PDFDocument collects rendered html sections and turns them into a single
// wkhtmltopdf document.
type PDFDocument struct {
	Title    string
	PageSize string

	sections []string
}

// AddTemplate renders the html template at path with data and appends it as a
// new section.
func (d *PDFDocument) AddTemplate(path string, data interface{}) error {
	t, err := template.ParseFiles(path)
	if err != nil {
		return errors.Wrapf(err, "failed parsing %s", path)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return errors.Wrapf(err, "failed executing %s", path)
	}
	d.sections = append(d.sections, buf.String())
	return nil
}

func (d *PDFDocument) Render() (*bytes.Buffer, error) {
	if len(d.sections) == 0 {
		return nil, errors.New("empty pdf document")
	}

	pdfg, err := wkhtmltopdf.NewPDFGenerator()
	if err != nil {
		return nil, errors.Wrap(err, "wkhtmltopdf not available")
	}
	if d.PageSize != "" {
		pdfg.PageSize.Set(d.PageSize)
	}
	if d.Title != "" {
		pdfg.Title.Set(d.Title)
	}

	// wkhtmltopdf reads a single page from stdin, sections are split with css
	// page breaks instead
	pdfg.AddPage(wkhtmltopdf.NewPageReader(strings.NewReader(strings.Join(d.sections, pageBreak))))

	if err := pdfg.Create(); err != nil {
		return nil, errors.Wrap(err, "failed creating pdf")
	}

	return pdfg.Buffer(), nil
}

// ReceiptTemplate is the html template rendered into payment receipts.
var ReceiptTemplate = "./templates/pdf/receipt.html"

// GeneratePaymentReceiptPDF renders the receipt of a completed payment with a
// QR code of its id.
func GeneratePaymentReceiptPDF(receipt models.PaymentReceiptHTML) (*bytes.Buffer, error) {
	img, err := qrcode.New(receipt.ID, qrcode.Medium)
	if err != nil {
		return nil, err
	}

	receipt.Image, err = EncodeImage(img.Image(256))
	if err != nil {
		return nil, err
	}
	receipt.StudentName = RemoveAccents(receipt.StudentName)
	receipt.TutorName = RemoveAccents(receipt.TutorName)

	doc := PDFDocument{
		Title:    "Receipt " + receipt.ID,
		PageSize: wkhtmltopdf.PageSizeA5,
	}
	if err := doc.AddTemplate(ReceiptTemplate, receipt); err != nil {
		return nil, err
	}

	return doc.Render()
}

// EncodeImage returns m as base64 png, ready for a data URI.
func EncodeImage(m image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, m); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
