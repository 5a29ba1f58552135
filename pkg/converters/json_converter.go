package converters

import (
	"fmt"
	"strings"
	"time"

	"github.com/feichai0017/card-ocr/internal/models"
)

// ResultConverter 定义识别结果转换器接口
type ResultConverter interface {
	Convert(snap models.SessionSnapshot) (*ResultDocument, error)
}

// ResultDocument 定义结构化的识别结果
type ResultDocument struct {
	SessionID   string            `json:"sessionId"`
	CardType    models.CardType   `json:"cardType"`
	Content     []LineContent     `json:"content"`
	Fields      map[string]string `json:"fields"`
	Metadata    ResultMetadata    `json:"metadata"`
	ProcessedAt time.Time         `json:"processedAt"`
}

// LineContent 定义单行文本
type LineContent struct {
	Text     string `json:"text"`
	Position int    `json:"position"`
	Type     string `json:"type"` // "heading", "field", "text"
	Key      string `json:"key,omitempty"`
	Value    string `json:"value,omitempty"`
}

// ResultMetadata 定义源文件元数据
type ResultMetadata struct {
	FileName  string `json:"fileName"`
	FileType  string `json:"fileType"`
	FileSize  int64  `json:"fileSize"`
	LineCount int    `json:"lineCount"`
}

// JSONConverter splits extracted text into lines and "Key: Value" fields.
type JSONConverter struct{}

func NewJSONConverter() *JSONConverter {
	return &JSONConverter{}
}

func (c *JSONConverter) Convert(snap models.SessionSnapshot) (*ResultDocument, error) {
	if snap.ExtractedText == "" {
		return nil, fmt.Errorf("no extracted text to convert")
	}

	doc := &ResultDocument{
		SessionID:   snap.ID,
		CardType:    snap.CardType,
		Content:     make([]LineContent, 0),
		Fields:      make(map[string]string),
		ProcessedAt: snap.UpdatedAt,
	}

	for _, raw := range strings.Split(snap.ExtractedText, "\n") {
		text := strings.TrimSpace(raw)
		if text == "" {
			continue
		}

		line := LineContent{Text: text, Position: len(doc.Content) + 1, Type: "text"}
		switch {
		case strings.HasSuffix(text, ":"):
			line.Type = "heading"
		default:
			if key, value, ok := strings.Cut(text, ": "); ok && key != "" && value != "" {
				line.Type = "field"
				line.Key = strings.TrimSpace(key)
				line.Value = strings.TrimSpace(value)
				// first occurrence wins
				if _, seen := doc.Fields[line.Key]; !seen {
					doc.Fields[line.Key] = line.Value
				}
			}
		}
		doc.Content = append(doc.Content, line)
	}

	if snap.File != nil {
		doc.Metadata.FileName = snap.File.Name
		doc.Metadata.FileType = snap.File.MimeType
		doc.Metadata.FileSize = snap.File.Size
	}
	doc.Metadata.LineCount = len(doc.Content)

	return doc, nil
}
