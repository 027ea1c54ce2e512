package helpers

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"bitbucket.org/etuitionbd/backend/models"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPDFDocumentSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "receipt.html")
	require.NoError(t, os.WriteFile(path, []byte(`<h1>{{.ID}}</h1><img src="data:image/png;base64,{{.Image}}">`), 0o600))

	doc := PDFDocument{}
	require.NoError(t, doc.AddTemplate(path, models.PaymentReceiptHTML{ID: "pay-1", Image: "aGk+"}))
	require.Len(t, doc.sections, 1)
	// text/template keeps the data uri intact
	assert.Equal(t, `<h1>pay-1</h1><img src="data:image/png;base64,aGk+">`, doc.sections[0])

	assert.Error(t, doc.AddTemplate(filepath.Join(t.TempDir(), "missing.html"), nil))
}

func TestPDFDocumentEmpty(t *testing.T) {
	doc := PDFDocument{}
	_, err := doc.Render()
	assert.EqualError(t, err, "empty pdf document")
}

func TestEncodeImage(t *testing.T) {
	qr, err := qrcode.New("pay-1", qrcode.Medium)
	require.NoError(t, err)

	encoded, err := EncodeImage(qr.Image(64))
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
}
