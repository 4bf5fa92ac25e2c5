package segment

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/manhtienmai/dailyfluent/pkg/stt"
	sttmock "github.com/manhtienmai/dailyfluent/pkg/stt/mock"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		seg     Segment
		wantErr bool
	}{
		{"valid", Segment{Start: 1, End: 2.5}, false},
		{"zero start", Segment{Start: 0, End: 0.1}, false},
		{"end equals start", Segment{Start: 3, End: 3}, true},
		{"end before start", Segment{Start: 5, End: 4}, true},
		{"negative start", Segment{Start: -1, End: 2}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.seg.Validate()
			if tc.wantErr && !errors.Is(err, ErrMalformed) {
				t.Errorf("Validate() = %v, want ErrMalformed", err)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
		})
	}
}

const exerciseJSON = `{
	"slug": "toeic-listening-01",
	"title": "Office announcements",
	"audio_url": "/media/toeic-listening-01.mp3",
	"segments": [
		{"start_time": 10.0, "end_time": 6.0, "correct_text": "broken bounds", "order": 1},
		{"start_time": 6.5, "end_time": 10.0, "correct_text": "Please hold the line.", "order": 2},
		{"start_time": 0.0, "end_time": 6.0, "correct_text": "Good morning everyone.", "order": 0}
	]
}`

func TestLoadDropsMalformedAndSorts(t *testing.T) {
	t.Parallel()

	ex, err := Load(strings.NewReader(exerciseJSON))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(ex.Segments) != 2 {
		t.Fatalf("got %d segments, want 2 (malformed one dropped)", len(ex.Segments))
	}
	if ex.Segments[0].Order != 0 || ex.Segments[1].Order != 2 {
		t.Errorf("segments not sorted by order: %+v", ex.Segments)
	}
}

func TestLoadRejectsEmptyExercise(t *testing.T) {
	t.Parallel()

	_, err := Load(strings.NewReader(`{"slug":"x","segments":[{"start_time":2,"end_time":1,"correct_text":"a"}]}`))
	if !errors.Is(err, ErrNoSegments) {
		t.Fatalf("err = %v, want ErrNoSegments", err)
	}
}

func TestLoadRequiresSlug(t *testing.T) {
	t.Parallel()

	_, err := Load(strings.NewReader(`{"segments":[{"start_time":0,"end_time":1,"correct_text":"a"}]}`))
	if err == nil {
		t.Fatal("Load accepted an exercise without a slug")
	}
}

func TestDraft(t *testing.T) {
	t.Parallel()

	tr := &sttmock.Transcriber{Result: []stt.Span{
		{Start: 0, End: 3 * time.Second, Text: "Good morning everyone."},
		{Start: 3500 * time.Millisecond, End: 7 * time.Second, Text: "Please hold the line."},
	}}

	segs, err := Draft(context.Background(), tr, nil, 16000)
	if err != nil {
		t.Fatalf("Draft: %v", err)
	}
	if len(segs) != 2 {
		t.Fatalf("got %d segments, want 2", len(segs))
	}
	if segs[0].Start != 0 {
		t.Errorf("first segment start = %v, want clamped to 0", segs[0].Start)
	}
	if segs[1].Start >= segs[1].End {
		t.Errorf("second segment bounds inverted: %+v", segs[1])
	}
	for i, s := range segs {
		if err := s.Validate(); err != nil {
			t.Errorf("drafted segment %d fails validation: %v", i, err)
		}
		if s.Order != i {
			t.Errorf("segment %d has order %d", i, s.Order)
		}
	}
}
