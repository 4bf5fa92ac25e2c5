package segment

import (
	"context"
	"fmt"

	"github.com/manhtienmai/dailyfluent/pkg/stt"
)

// leadInSeconds pads each drafted segment's start so the first word is not
// clipped when the browser seeks slightly late.
const leadInSeconds = 0.15

// Draft turns a transcription into a draft segment list for author review.
// Each recognised span becomes one segment; spans are numbered in order and
// carry no hints. Drafted segments still pass [Segment.Validate] — a span
// whose padding would push its start negative is clamped to zero.
func Draft(ctx context.Context, tr stt.Transcriber, samples []float32, sampleRate int) ([]Segment, error) {
	spans, err := tr.Transcribe(ctx, samples, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("segment: draft transcription: %w", err)
	}

	segs := make([]Segment, 0, len(spans))
	for i, sp := range spans {
		start := sp.Start.Seconds() - leadInSeconds
		if start < 0 {
			start = 0
		}
		end := sp.End.Seconds()
		if end <= start {
			continue
		}
		segs = append(segs, Segment{
			Start: start,
			End:   end,
			Text:  sp.Text,
			Order: i,
		})
	}
	return segs, nil
}
