package voice

import (
	"context"
	"strings"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
)

const voiceFileName = "voice.ogg"

var ErrEmptyTranscription = errors.New("empty transcription")

type downloader interface {
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
}

type speechToText interface {
	Transcribe(ctx context.Context, name string, audio []byte) (string, error)
}

type Transcriber struct {
	files downloader
	stt   speechToText
}

func New(files downloader, stt speechToText) *Transcriber {
	return &Transcriber{files: files, stt: stt}
}

// Transcribe downloads a Telegram voice note and returns its text.
func (t *Transcriber) Transcribe(ctx context.Context, fileID string) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "voice.Transcribe")
	defer span.Finish()

	audio, err := t.files.DownloadFile(ctx, fileID)
	if err != nil {
		return "", errors.Wrap(err, "download voice")
	}
	text, err := t.stt.Transcribe(ctx, voiceFileName, audio)
	if err != nil {
		return "", errors.Wrap(err, "transcribe voice")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyTranscription
	}
	return text, nil
}
