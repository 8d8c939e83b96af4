package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"google.golang.org/genai"

	"github.com/mgpai22/wordsync/internal/audio"
	"github.com/mgpai22/wordsync/internal/timing"
)

// implements Transcriber by prompting Gemini for word-level timings
type GeminiTranscriber struct {
	client  *genai.Client
	model   string
	options Options
}

// one word as Gemini returns it; some responses use "text" instead of "word"
type wordEntry struct {
	Word  string  `json:"word"`
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func NewGeminiTranscriber(ctx context.Context, apiKey string, opts Options) (*GeminiTranscriber, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}

	return &GeminiTranscriber{
		client:  client,
		model:   model,
		options: opts,
	}, nil
}

func (t *GeminiTranscriber) Transcribe(ctx context.Context, audioPath string) (*Result, error) {
	uploaded, err := t.client.Files.UploadFromPath(ctx, audioPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upload audio file: %w", err)
	}
	defer func() {
		_, _ = t.client.Files.Delete(ctx, uploaded.Name, nil)
	}()

	parts := []*genai.Part{
		genai.NewPartFromText(t.buildPrompt()),
		genai.NewPartFromURI(uploaded.URI, uploaded.MIMEType),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	resp, err := t.client.Models.GenerateContent(ctx, t.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}

	text := responseText(resp)
	if text == "" {
		return nil, fmt.Errorf("no text in Gemini response")
	}

	entries, err := extractWordEntries(cleanJSONResponse(text))
	if err != nil {
		return nil, fmt.Errorf("failed to parse transcription: %w (response: %s)", err, truncateString(text, 200))
	}

	duration, _ := audio.GetDuration(ctx, audioPath)

	return &Result{
		Words:    toTimedWords(entries),
		Language: t.options.Language,
		Duration: duration,
	}, nil
}

func (t *GeminiTranscriber) buildPrompt() string {
	var sb strings.Builder

	sb.WriteString("Transcribe this audio word by word. ")
	sb.WriteString("For every spoken word give the exact word and the time in seconds at which it starts and ends. ")
	sb.WriteString("Format your response as a JSON array of objects with 'word', 'start' and 'end' fields, ")
	sb.WriteString("where 'start' and 'end' are numbers. Keep the words in spoken order. ")

	if t.options.Language != "" {
		fmt.Fprintf(&sb, "The audio is in %s. ", t.options.Language)
	}
	if t.options.Prompt != "" {
		sb.WriteString(t.options.Prompt)
		sb.WriteString(" ")
	}

	sb.WriteString("Return ONLY the JSON array, no other text or markdown formatting.")

	return sb.String()
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, part := range c.Content.Parts {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

var codeFence = regexp.MustCompile("```(?:json)?\\s*")

// removes markdown code fences around the JSON
func cleanJSONResponse(s string) string {
	s = codeFence.ReplaceAllString(strings.TrimSpace(s), "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// extractWordEntries finds the first JSON value in s that holds a usable
// list of word entries. Models wrap the array in prose or in an object
// ({"words": [...]}) often enough that a plain Unmarshal is not enough.
func extractWordEntries(s string) ([]wordEntry, error) {
	for i := 0; i < len(s); i++ {
		if s[i] != '[' && s[i] != '{' {
			continue
		}
		var raw json.RawMessage
		if err := json.NewDecoder(strings.NewReader(s[i:])).Decode(&raw); err != nil {
			continue
		}
		if entries, ok := findEntries(raw, 0); ok {
			return entries, nil
		}
	}
	return nil, fmt.Errorf("no word list found in response")
}

var preferredKeys = []string{"words", "segments", "transcript", "data"}

func findEntries(raw json.RawMessage, depth int) ([]wordEntry, bool) {
	if depth > 3 {
		return nil, false
	}

	var entries []wordEntry
	if err := json.Unmarshal(raw, &entries); err == nil {
		return entries, validateEntries(entries)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, false
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.SliceStable(keys, func(i, j int) bool {
		return keyRank(keys[i]) < keyRank(keys[j]) ||
			(keyRank(keys[i]) == keyRank(keys[j]) && keys[i] < keys[j])
	})

	for _, k := range keys {
		if entries, ok := findEntries(obj[k], depth+1); ok {
			return entries, true
		}
	}
	return nil, false
}

func keyRank(k string) int {
	for i, p := range preferredKeys {
		if strings.EqualFold(k, p) {
			return i
		}
	}
	return len(preferredKeys)
}

// true when at least one entry carries a word and a timing
func validateEntries(entries []wordEntry) bool {
	for _, e := range entries {
		if strings.TrimSpace(e.Word+e.Text) != "" && e.End > 0 {
			return true
		}
	}
	return false
}

func toTimedWords(entries []wordEntry) []timing.TimedWord {
	words := make([]timing.TimedWord, 0, len(entries))
	for _, e := range entries {
		text := e.Word
		if text == "" {
			text = e.Text
		}
		// a phrase-level entry is spread over its words
		if strings.ContainsAny(strings.TrimSpace(text), " \t\n") {
			words = append(words, timing.Spread(text, e.Start, e.End)...)
			continue
		}
		words = append(words, timing.TimedWord{Text: text, Start: e.Start, End: e.End})
	}
	return cleanWords(words)
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
