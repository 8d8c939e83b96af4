package subtitle

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// SRT and VTT timing line; hours are optional in VTT, SRT uses a comma
var cueTiming = regexp.MustCompile(
	`(?:(\d+):)?(\d{2}):(\d{2})[,.](\d{3})\s*-->\s*(?:(\d+):)?(\d{2}):(\d{2})[,.](\d{3})`,
)

// Open parses an SRT, VTT or ASS file chosen by extension.
func Open(path string) (*Subtitle, error) {
	format, ok := ParseFormat(extension(path))
	if !ok {
		return nil, fmt.Errorf("unsupported subtitle format: %s", extension(path))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open subtitle file: %w", err)
	}
	defer func() { _ = f.Close() }()

	sub, err := Parse(f, format)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return sub, nil
}

func Parse(r io.Reader, format Format) (*Subtitle, error) {
	var (
		entries []Entry
		err     error
	)
	switch format {
	case FormatSRT, FormatVTT:
		entries, err = parseCues(r)
	case FormatASS:
		entries, err = parseASS(r)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
	if err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].StartTime < entries[j].StartTime
	})
	for i := range entries {
		entries[i].Index = i + 1
	}

	return &Subtitle{Entries: entries, Format: format}, nil
}

// parseCues reads blank-line separated blocks. A block is a cue when one of
// its lines is a timing line; the lines after it are the text. Headers, NOTE,
// STYLE and REGION blocks have no timing line and are skipped.
func parseCues(r io.Reader) ([]Entry, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		entries []Entry
		block   []string
		lineNum int
	)

	flush := func() error {
		defer func() { block = block[:0] }()
		for i, line := range block {
			m := cueTiming.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			start, err := cueTime(m[1], m[2], m[3], m[4])
			if err != nil {
				return fmt.Errorf("invalid start timestamp near line %d: %w", lineNum, err)
			}
			end, err := cueTime(m[5], m[6], m[7], m[8])
			if err != nil {
				return fmt.Errorf("invalid end timestamp near line %d: %w", lineNum, err)
			}
			if end < start {
				return fmt.Errorf("cue ends before it starts near line %d", lineNum)
			}
			text := strings.Join(block[i+1:], "\n")
			if strings.TrimSpace(text) != "" {
				entries = append(entries, Entry{StartTime: start, EndTime: end, Text: text})
			}
			return nil
		}
		return nil
	}

	for scanner.Scan() {
		line := scanner.Text()
		lineNum++
		if lineNum == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}

		if strings.TrimSpace(line) == "" {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		block = append(block, strings.TrimRight(line, "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading subtitles: %w", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}

	return entries, nil
}

func cueTime(hours, minutes, seconds, millis string) (time.Duration, error) {
	var total time.Duration
	parts := []struct {
		value string
		unit  time.Duration
	}{
		{hours, time.Hour},
		{minutes, time.Minute},
		{seconds, time.Second},
		{millis, time.Millisecond},
	}
	for _, p := range parts {
		if p.value == "" {
			continue
		}
		n, err := strconv.Atoi(p.value)
		if err != nil {
			return 0, err
		}
		total += time.Duration(n) * p.unit
	}
	return total, nil
}

// parseASS reads Dialogue lines from the [Events] section using its Format line.
func parseASS(r io.Reader) ([]Entry, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		entries  []Entry
		inEvents bool
		fields   []string
	)

	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))

		if strings.HasPrefix(line, "[") {
			inEvents = strings.EqualFold(line, "[Events]")
			continue
		}
		if !inEvents {
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "Format":
			fields = nil
			for _, f := range strings.Split(value, ",") {
				fields = append(fields, strings.ToLower(strings.TrimSpace(f)))
			}
		case "Dialogue":
			if len(fields) == 0 {
				return nil, fmt.Errorf("dialogue before format line in [Events]")
			}
			values := strings.SplitN(strings.TrimSpace(value), ",", len(fields))
			if len(values) != len(fields) {
				continue
			}
			var e Entry
			var err error
			for i, f := range fields {
				switch f {
				case "start":
					e.StartTime, err = assTime(values[i])
				case "end":
					e.EndTime, err = assTime(values[i])
				case "text":
					e.Text = values[i]
				}
				if err != nil {
					return nil, err
				}
			}
			if strings.TrimSpace(stripMarkup(e.Text)) != "" {
				entries = append(entries, e)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading subtitles: %w", err)
	}

	return entries, nil
}

// h:mm:ss.cc
func assTime(ts string) (time.Duration, error) {
	ts = strings.TrimSpace(ts)
	h, rest, ok := strings.Cut(ts, ":")
	if !ok {
		return 0, fmt.Errorf("invalid ASS timestamp %q", ts)
	}
	m, rest, ok := strings.Cut(rest, ":")
	if !ok {
		return 0, fmt.Errorf("invalid ASS timestamp %q", ts)
	}
	secs, err := strconv.ParseFloat(rest, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid ASS timestamp %q: %w", ts, err)
	}
	hours, err := strconv.Atoi(h)
	if err != nil {
		return 0, fmt.Errorf("invalid ASS timestamp %q: %w", ts, err)
	}
	minutes, err := strconv.Atoi(m)
	if err != nil {
		return 0, fmt.Errorf("invalid ASS timestamp %q: %w", ts, err)
	}

	return time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(secs*float64(time.Second)).Round(10*time.Millisecond), nil
}
