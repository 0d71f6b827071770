package history

import (
	"strings"
	"testing"
	"time"

	"github.com/claude/liftlog/internal/workout"
)

const sampleExport = `"Push Day";"2026-02-19 17:54";"62 min"
"1. Bench Press · STRENGTH"
#;REPS;KG
1;8;82,5
2;8;82,5
3;6;87,5
"2. Cable Fly · STRENGTH";"slow eccentric"
#;REPS;KG
1;12;25

"Morning Run";"2026-02-20 6:30";"35 min"
"1. Treadmill Run · CARDIO"
#;SEC;DIST;UNIT
1;2100;5,2;km
"2. Hamstring Stretch · FLEXIBILITY"
#;SEC;STRETCH;INT
1;45;static;6
2;45;static;7
`

// TestParseSampleExport verifies a two-session export parses into the right
// session/slot/set shape with European decimals converted.
func TestParseSampleExport(t *testing.T) {
	sessions, err := Parse(strings.NewReader(sampleExport))
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 2 {
		t.Fatalf("got %d sessions, want 2", len(sessions))
	}

	push := sessions[0]
	if push.Name != "Push Day" {
		t.Errorf("name = %q", push.Name)
	}
	wantStart := time.Date(2026, 2, 19, 17, 54, 0, 0, time.UTC)
	if !push.StartedAt.Equal(wantStart) {
		t.Errorf("started_at = %v, want %v", push.StartedAt, wantStart)
	}
	if push.DurationMinutes != 62 {
		t.Errorf("duration = %d, want 62", push.DurationMinutes)
	}
	if len(push.Slots) != 2 {
		t.Fatalf("got %d slots, want 2", len(push.Slots))
	}

	bench := push.Slots[0]
	if bench.ExerciseName != "Bench Press" || bench.Category != workout.CategoryStrength {
		t.Errorf("slot 1 = %q %s", bench.ExerciseName, bench.Category)
	}
	if len(bench.Sets) != 3 {
		t.Fatalf("bench sets = %d, want 3", len(bench.Sets))
	}
	p := bench.Sets[2].Payload.(workout.StrengthPayload)
	if p.Reps != 6 || p.WeightKg != 87.5 {
		t.Errorf("set 3 = %+v, want 6 reps at 87.5", p)
	}

	if got := push.Slots[1].Notes; got != "slow eccentric" {
		t.Errorf("slot 2 notes = %q", got)
	}

	run := sessions[1]
	if len(run.Slots) != 2 {
		t.Fatalf("run slots = %d, want 2", len(run.Slots))
	}
	cp := run.Slots[0].Sets[0].Payload.(workout.CardioPayload)
	if cp.DurationSeconds != 2100 || cp.Distance == nil || *cp.Distance != 5.2 || cp.DistanceUnit != workout.UnitKilometers {
		t.Errorf("cardio set = %+v", cp)
	}
	fp := run.Slots[1].Sets[1].Payload.(workout.FlexibilityPayload)
	if fp.DurationSeconds != 45 || fp.StretchType != "static" || fp.Intensity != 7 {
		t.Errorf("flexibility set = %+v", fp)
	}
}

// TestParseCardioWithoutDistance verifies the optional distance fields may
// be empty.
func TestParseCardioWithoutDistance(t *testing.T) {
	input := `"Bike";"2026-03-01 8:00";"30 min"
"1. Spin Bike · CARDIO"
1;1800;;
`
	sessions, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	p := sessions[0].Slots[0].Sets[0].Payload.(workout.CardioPayload)
	if p.Distance != nil || p.DistanceUnit != workout.UnitNone {
		t.Errorf("payload = %+v, want no distance", p)
	}
}

// TestParseErrors verifies structural errors are reported rather than
// silently skipped.
func TestParseErrors(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{"slot before session", `"1. Bench Press · STRENGTH"`},
		{"set before slot", "\"S\";\"2026-03-01 8:00\";\"30 min\"\n1;8;80"},
		{"garbage line", "\"S\";\"2026-03-01 8:00\";\"30 min\"\nhello world"},
		{"wrong strength arity", "\"S\";\"2026-03-01 8:00\";\"30 min\"\n\"1. Bench Press · STRENGTH\"\n1;8;80;2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse(strings.NewReader(tc.input)); err == nil {
				t.Error("expected parse error")
			}
		})
	}
}

// TestParseEuropeanFloat verifies comma decimals convert.
func TestParseEuropeanFloat(t *testing.T) {
	cases := map[string]float64{
		"102,5": 102.5,
		"0,5":   0.5,
		"80":    80,
		" 7,25": 7.25,
	}
	for in, want := range cases {
		if got := parseEuropeanFloat(in); got != want {
			t.Errorf("parseEuropeanFloat(%q) = %g, want %g", in, got, want)
		}
	}
}
