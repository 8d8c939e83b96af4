package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/mgpai22/wordsync/internal/audio"
	"github.com/mgpai22/wordsync/internal/timing"
)

// implements Transcriber using the OpenAI audio transcription API with
// word timestamp granularity
type OpenAITranscriber struct {
	client  openai.Client
	model   string
	options Options
}

type whisperWord struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type whisperSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// verbose_json response
type whisperVerboseResponse struct {
	Text     string           `json:"text"`
	Words    []whisperWord    `json:"words"`
	Segments []whisperSegment `json:"segments"`
	Language string           `json:"language"`
	Duration float64          `json:"duration"`
}

func NewOpenAITranscriber(
	ctx context.Context,
	apiKey string,
	opts Options,
) (*OpenAITranscriber, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	model := opts.Model
	if model == "" {
		model = "whisper-1"
	}

	return &OpenAITranscriber{
		client:  openai.NewClient(option.WithAPIKey(apiKey)),
		model:   model,
		options: opts,
	}, nil
}

func (t *OpenAITranscriber) Transcribe(
	ctx context.Context,
	audioPath string,
) (*Result, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer file.Close()

	duration, _ := audio.GetDuration(ctx, audioPath)

	params := openai.AudioTranscriptionNewParams{
		File:                   file,
		Model:                  openai.AudioModel(t.model),
		ResponseFormat:         openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []string{"word", "segment"},
	}
	if t.options.Language != "" {
		params.Language = openai.String(t.options.Language)
	}
	if t.options.Prompt != "" {
		params.Prompt = openai.String(t.options.Prompt)
	}

	resp, err := t.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}

	words, lang, err := parseVerboseJSONResponse(resp.RawJSON(), duration)
	if err != nil {
		// plain text is still usable, spread over the whole file
		words = timing.Spread(resp.Text, 0, duration.Seconds())
		if len(words) == 0 {
			return nil, fmt.Errorf("no usable timings in response: %w", err)
		}
	}
	if lang == "" {
		lang = t.options.Language
	}

	return &Result{
		Words:    words,
		Language: lang,
		Duration: duration,
	}, nil
}

// parseVerboseJSONResponse prefers word timestamps, then segment timestamps
// spread over their words, then the bare text spread over the duration.
func parseVerboseJSONResponse(
	rawJSON string,
	fallbackDuration time.Duration,
) ([]timing.TimedWord, string, error) {
	if rawJSON == "" {
		return nil, "", fmt.Errorf("empty response")
	}

	var resp whisperVerboseResponse
	if err := json.Unmarshal([]byte(rawJSON), &resp); err != nil {
		return nil, "", fmt.Errorf("failed to parse verbose_json response: %w", err)
	}

	if len(resp.Words) > 0 {
		words := make([]timing.TimedWord, 0, len(resp.Words))
		for _, w := range resp.Words {
			words = append(words, timing.TimedWord{Text: w.Word, Start: w.Start, End: w.End})
		}
		if words = cleanWords(words); len(words) > 0 {
			return words, resp.Language, nil
		}
	}

	var words []timing.TimedWord
	for _, seg := range resp.Segments {
		words = append(words, timing.Spread(strings.TrimSpace(seg.Text), seg.Start, seg.End)...)
	}
	if len(words) > 0 {
		return words, resp.Language, nil
	}

	total := fallbackDuration.Seconds()
	if resp.Duration > 0 {
		total = resp.Duration
	}
	if words = timing.Spread(resp.Text, 0, total); len(words) > 0 {
		return words, resp.Language, nil
	}

	return nil, "", fmt.Errorf("no words, segments or text in response")
}
