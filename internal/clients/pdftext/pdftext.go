package pdftext

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pkg/errors"
)

type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

// Text returns the plain text of a PDF document. The reader panics on some
// malformed files, those come back as errors.
func (e *Extractor) Text(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", errors.Wrap(err, "open pdf")
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", errors.Wrap(err, "extract pdf text")
	}
	var buf bytes.Buffer
	if _, err = buf.ReadFrom(plain); err != nil {
		return "", errors.Wrap(err, "extract pdf text")
	}
	return strings.TrimSpace(buf.String()), nil
}
