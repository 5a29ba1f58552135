package converters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/card-ocr/internal/agent/ocr"
	"github.com/feichai0017/card-ocr/internal/models"
)

func TestConvertSampleText(t *testing.T) {
	snap := models.SessionSnapshot{
		ID:            "sess-1",
		CardType:      models.CardTypePassport,
		ExtractedText: ocr.SampleText("passport"),
		File:          &models.UploadedFile{Name: "passport.png", Size: 2048, MimeType: "image/png"},
	}

	doc, err := NewJSONConverter().Convert(snap)
	require.NoError(t, err)

	assert.Equal(t, "sess-1", doc.SessionID)
	assert.Equal(t, models.CardTypePassport, doc.CardType)
	require.NotEmpty(t, doc.Content)
	assert.Equal(t, "heading", doc.Content[0].Type)
	assert.Equal(t, "Sample OCR Results for passport:", doc.Content[0].Text)

	assert.Equal(t, "JOHN SMITH", doc.Fields["Name"])
	assert.Equal(t, "123456789", doc.Fields["ID Number"])
	assert.Equal(t, "03/15/2030", doc.Fields["Expiry Date"])

	assert.Equal(t, "passport.png", doc.Metadata.FileName)
	assert.Equal(t, "image/png", doc.Metadata.FileType)
	assert.Equal(t, len(doc.Content), doc.Metadata.LineCount)
	for i, line := range doc.Content {
		assert.Equal(t, i+1, line.Position)
	}
}

func TestConvertPlainLines(t *testing.T) {
	doc, err := NewJSONConverter().Convert(models.SessionSnapshot{
		ExtractedText: "VISA\n\nName: A\nName: B\n4111 1111 1111 1111",
	})
	require.NoError(t, err)

	require.Len(t, doc.Content, 4)
	assert.Equal(t, "text", doc.Content[0].Type)
	assert.Equal(t, "field", doc.Content[1].Type)
	assert.Equal(t, "A", doc.Fields["Name"])
	assert.Equal(t, "text", doc.Content[3].Type)
	assert.Zero(t, doc.Metadata.FileSize)
}

func TestConvertEmptyText(t *testing.T) {
	_, err := NewJSONConverter().Convert(models.SessionSnapshot{})
	assert.Error(t, err)
}
