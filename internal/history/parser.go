// Package history imports workout session exports: a line-oriented CSV
// format holding completed sessions, their exercise slots and the sets
// performed. A local SQLite ledger remembers which files were already
// imported so directories can be re-scanned safely.
package history

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/claude/liftlog/internal/workout"
)

// Session is one completed session as read from an export file. Exercise
// references are by name; the importer resolves them against the catalog.
type Session struct {
	Name            string
	StartedAt       time.Time
	DurationMinutes int
	Slots           []Slot
}

// Slot is one exercise position inside an exported session.
type Slot struct {
	Order        int
	ExerciseName string
	Category     workout.Category
	Notes        string
	Sets         []Set
}

// Set is one performed set. The payload shape follows the slot's category.
type Set struct {
	Number  int
	Payload workout.SetPayload
}

var (
	// sessionHeaderRe matches: "Push Day";"2026-02-19 17:54";"62 min"
	sessionHeaderRe = regexp.MustCompile(`^"(.+)";"(\d{4}-\d{2}-\d{2}\s+\d+:\d{2})";"(\d+)\s+min"$`)

	// slotHeaderRe matches: "1. Bench Press · STRENGTH"[;"notes"]
	slotHeaderRe = regexp.MustCompile(`^"(\d+)\.\s+(.+?)\s+·\s+(STRENGTH|CARDIO|FLEXIBILITY)"(?:;"(.*)")?$`)

	// setDataRe matches any semicolon-separated set line: 1;8;82,5
	setDataRe = regexp.MustCompile(`^\d+;`)

	// columnHeaderRe matches the per-category column header lines.
	columnHeaderRe = regexp.MustCompile(`^#;(REPS;KG|SEC;DIST;UNIT|SEC;STRETCH;INT)$`)
)

// Parse reads a LiftLog CSV export and returns the sessions it holds.
func Parse(r io.Reader) ([]Session, error) {
	scanner := bufio.NewScanner(r)
	var sessions []Session
	var current *Session
	var currentSlot *Slot

	flushSlot := func() {
		if current != nil && currentSlot != nil {
			current.Slots = append(current.Slots, *currentSlot)
			currentSlot = nil
		}
	}
	flushSession := func() {
		flushSlot()
		if current != nil {
			sessions = append(sessions, *current)
			current = nil
		}
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Blank line = session boundary
		if line == "" {
			flushSession()
			continue
		}

		// Skip column headers
		if columnHeaderRe.MatchString(line) {
			continue
		}

		// Try session header
		if m := sessionHeaderRe.FindStringSubmatch(line); m != nil {
			flushSession()
			started, err := time.Parse("2006-01-02 15:04", m[2])
			if err != nil {
				return nil, fmt.Errorf("parsing session start %q: %w", m[2], err)
			}
			minutes, _ := strconv.Atoi(m[3])
			current = &Session{Name: m[1], StartedAt: started.UTC(), DurationMinutes: minutes}
			continue
		}

		// Try slot header
		if m := slotHeaderRe.FindStringSubmatch(line); m != nil {
			if current == nil {
				return nil, fmt.Errorf("slot without session: %q", line)
			}
			flushSlot()
			order, _ := strconv.Atoi(m[1])
			currentSlot = &Slot{
				Order:        order,
				ExerciseName: strings.TrimSpace(m[2]),
				Category:     workout.Category(m[3]),
				Notes:        m[4],
			}
			continue
		}

		// Try set data
		if setDataRe.MatchString(line) {
			if currentSlot == nil {
				return nil, fmt.Errorf("set data without slot: %q", line)
			}
			set, err := parseSetLine(line, currentSlot.Category)
			if err != nil {
				return nil, fmt.Errorf("parsing set %q: %w", line, err)
			}
			currentSlot.Sets = append(currentSlot.Sets, set)
			continue
		}

		return nil, fmt.Errorf("unrecognized line: %q", line)
	}

	flushSession()
	return sessions, scanner.Err()
}

// parseSetLine decodes one set line into the payload shape the slot's
// category demands:
//
//	STRENGTH:    1;8;82,5           (number;reps;weight kg)
//	CARDIO:      1;900;3,5;km       (number;seconds;distance;unit — distance optional)
//	FLEXIBILITY: 1;45;static;7      (number;seconds;stretch type;intensity)
func parseSetLine(line string, category workout.Category) (Set, error) {
	fields := strings.Split(line, ";")
	number, err := strconv.Atoi(fields[0])
	if err != nil {
		return Set{}, fmt.Errorf("bad set number %q", fields[0])
	}

	switch category {
	case workout.CategoryStrength:
		if len(fields) != 3 {
			return Set{}, fmt.Errorf("strength sets need 3 fields, got %d", len(fields))
		}
		reps, err := strconv.Atoi(fields[1])
		if err != nil {
			return Set{}, fmt.Errorf("bad reps %q", fields[1])
		}
		return Set{Number: number, Payload: workout.StrengthPayload{
			Reps:     reps,
			WeightKg: parseEuropeanFloat(fields[2]),
		}}, nil

	case workout.CategoryCardio:
		if len(fields) != 4 {
			return Set{}, fmt.Errorf("cardio sets need 4 fields, got %d", len(fields))
		}
		seconds, err := strconv.Atoi(fields[1])
		if err != nil {
			return Set{}, fmt.Errorf("bad duration %q", fields[1])
		}
		p := workout.CardioPayload{DurationSeconds: seconds}
		if fields[2] != "" {
			d := parseEuropeanFloat(fields[2])
			p.Distance = &d
			p.DistanceUnit = workout.DistanceUnit(fields[3])
		}
		return Set{Number: number, Payload: p}, nil

	case workout.CategoryFlexibility:
		if len(fields) != 4 {
			return Set{}, fmt.Errorf("flexibility sets need 4 fields, got %d", len(fields))
		}
		seconds, err := strconv.Atoi(fields[1])
		if err != nil {
			return Set{}, fmt.Errorf("bad duration %q", fields[1])
		}
		intensity, err := strconv.Atoi(fields[3])
		if err != nil {
			return Set{}, fmt.Errorf("bad intensity %q", fields[3])
		}
		return Set{Number: number, Payload: workout.FlexibilityPayload{
			DurationSeconds: seconds,
			StretchType:     fields[2],
			Intensity:       intensity,
		}}, nil
	}
	return Set{}, fmt.Errorf("unknown category %q", category)
}

// parseEuropeanFloat converts a European decimal string to float64.
// "102,5" -> 102.5, "0,5" -> 0.5
func parseEuropeanFloat(s string) float64 {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", ".")
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
