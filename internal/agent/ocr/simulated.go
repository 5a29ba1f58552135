package ocr

import (
	"context"
	"fmt"
	"time"
)

// DefaultDelay matches the latency the demo page was built around.
const DefaultDelay = 3 * time.Second

const sampleTemplate = `Sample OCR Results for %s:

Name: JOHN SMITH
Date of Birth: 01/15/1990
ID Number: 123456789
Address: 123 Main Street, City, State 12345
Issue Date: 03/15/2020
Expiry Date: 03/15/2030

Note: This is a demo result. In production, this would be replaced with actual OCR processing.`

// Simulated stands in for a real OCR backend: it waits, then returns canned text for the card type.
type Simulated struct {
	delay time.Duration
}

// NewSimulated creates a simulated extractor; a negative delay is treated as zero.
func NewSimulated(delay time.Duration) *Simulated {
	if delay < 0 {
		delay = 0
	}
	return &Simulated{delay: delay}
}

func (s *Simulated) Name() string {
	return "simulated"
}

func (s *Simulated) Extract(ctx context.Context, req Request) (string, error) {
	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	return SampleText(string(req.CardType)), nil
}

// SampleText is the canned result for cardType.
func SampleText(cardType string) string {
	return fmt.Sprintf(sampleTemplate, cardType)
}
