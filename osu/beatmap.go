package osu

import (
	"bufio"
	"bytes"
	"os"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Hit object type bits from the .osu format.
const (
	typeCircle   = 1 << 0
	typeSlider   = 1 << 1
	typeNewCombo = 1 << 2
	typeSpinner  = 1 << 3
)

type Kind int

const (
	KindCircle Kind = iota
	KindSlider
	KindSpinner
)

type Point struct {
	X, Y float64
}

type TimingPoint struct {
	Time        float64
	BeatLength  float64
	Uninherited bool
}

type HitObject struct {
	Pos      Point
	Time     int
	Kind     Kind
	NewCombo bool

	// Slider fields.
	CurveType byte
	Points    []Point // control points after the head
	Slides    int
	Length    float64

	// Spinner end time.
	EndTime int
}

// Beatmap is the subset of a .osu file needed to emit events.
type Beatmap struct {
	Title            string
	Version          string
	SliderMultiplier float64
	TimingPoints     []TimingPoint
	HitObjects       []HitObject
}

// ParseFile reads and parses the .osu file at path.
func ParseFile(path string) (*Beatmap, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	b, err := Parse(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return b, nil
}

// Parse parses .osu text. Input may carry a UTF-8 or UTF-16 byte order
// mark; invalid UTF-8 without a BOM is read as Windows-1252.
func Parse(raw []byte) (*Beatmap, error) {
	text, err := decodeText(raw)
	if err != nil {
		return nil, err
	}

	b := &Beatmap{SliderMultiplier: 1.4}
	section := ""
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = line[1 : len(line)-1]
			continue
		}
		switch section {
		case "Metadata":
			k, v, ok := keyValue(line)
			if !ok {
				continue
			}
			switch k {
			case "Title":
				b.Title = v
			case "Version":
				b.Version = v
			}
		case "Difficulty":
			k, v, ok := keyValue(line)
			if ok && k == "SliderMultiplier" {
				f, err := strconv.ParseFloat(v, 64)
				if err != nil {
					return nil, errors.Wrapf(err, "line %d: slider multiplier", lineNo)
				}
				b.SliderMultiplier = f
			}
		case "TimingPoints":
			tp, err := parseTimingPoint(line)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", lineNo)
			}
			b.TimingPoints = append(b.TimingPoints, tp)
		case "HitObjects":
			ho, err := parseHitObject(line)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", lineNo)
			}
			b.HitObjects = append(b.HitObjects, ho)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(b.TimingPoints, func(i, j int) bool {
		return b.TimingPoints[i].Time < b.TimingPoints[j].Time
	})
	return b, nil
}

func decodeText(raw []byte) (string, error) {
	hasBOM := bytes.HasPrefix(raw, []byte{0xFF, 0xFE}) ||
		bytes.HasPrefix(raw, []byte{0xFE, 0xFF}) ||
		bytes.HasPrefix(raw, []byte{0xEF, 0xBB, 0xBF})
	if hasBOM || utf8.Valid(raw) {
		out, _, err := transform.Bytes(unicode.BOMOverride(transform.Nop), raw)
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(raw)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func keyValue(line string) (string, string, bool) {
	k, v, ok := strings.Cut(line, ":")
	if !ok {
		return "", "", false
	}
	return strings.TrimSpace(k), strings.TrimSpace(v), true
}

func parseTimingPoint(line string) (TimingPoint, error) {
	f := strings.Split(line, ",")
	if len(f) < 2 {
		return TimingPoint{}, errors.Errorf("timing point %q: too few fields", line)
	}
	t, err := strconv.ParseFloat(strings.TrimSpace(f[0]), 64)
	if err != nil {
		return TimingPoint{}, errors.Wrap(err, "timing point time")
	}
	bl, err := strconv.ParseFloat(strings.TrimSpace(f[1]), 64)
	if err != nil {
		return TimingPoint{}, errors.Wrap(err, "timing point beat length")
	}
	// Old files omit the uninherited column; positive beat lengths are red lines.
	uninherited := bl > 0
	if len(f) > 6 {
		uninherited = strings.TrimSpace(f[6]) == "1"
	}
	return TimingPoint{Time: t, BeatLength: bl, Uninherited: uninherited}, nil
}

func parseHitObject(line string) (HitObject, error) {
	f := strings.Split(line, ",")
	if len(f) < 4 {
		return HitObject{}, errors.Errorf("hit object %q: too few fields", line)
	}
	x, err1 := strconv.ParseFloat(f[0], 64)
	y, err2 := strconv.ParseFloat(f[1], 64)
	t, err3 := strconv.Atoi(f[2])
	typ, err4 := strconv.Atoi(f[3])
	for _, err := range []error{err1, err2, err3, err4} {
		if err != nil {
			return HitObject{}, errors.Wrapf(err, "hit object %q", line)
		}
	}
	ho := HitObject{
		Pos:      Point{x, y},
		Time:     t,
		NewCombo: typ&typeNewCombo != 0,
	}
	switch {
	case typ&typeSlider != 0:
		ho.Kind = KindSlider
		if len(f) < 8 {
			return HitObject{}, errors.Errorf("slider %q: too few fields", line)
		}
		parts := strings.Split(f[5], "|")
		if len(parts[0]) != 1 {
			return HitObject{}, errors.Errorf("slider %q: bad curve type", line)
		}
		ho.CurveType = parts[0][0]
		for _, p := range parts[1:] {
			xs, ys, ok := strings.Cut(p, ":")
			if !ok {
				return HitObject{}, errors.Errorf("slider %q: bad control point %q", line, p)
			}
			px, err1 := strconv.ParseFloat(xs, 64)
			py, err2 := strconv.ParseFloat(ys, 64)
			if err1 != nil || err2 != nil {
				return HitObject{}, errors.Errorf("slider %q: bad control point %q", line, p)
			}
			ho.Points = append(ho.Points, Point{px, py})
		}
		if len(ho.Points) == 0 {
			return HitObject{}, errors.Errorf("slider %q: no control points", line)
		}
		if ho.Slides, err1 = strconv.Atoi(f[6]); err1 != nil {
			return HitObject{}, errors.Wrapf(err1, "slider %q: slides", line)
		}
		if ho.Length, err1 = strconv.ParseFloat(f[7], 64); err1 != nil {
			return HitObject{}, errors.Wrapf(err1, "slider %q: length", line)
		}
		if ho.Slides < 1 {
			ho.Slides = 1
		}
	case typ&typeSpinner != 0:
		ho.Kind = KindSpinner
		if len(f) < 6 {
			return HitObject{}, errors.Errorf("spinner %q: too few fields", line)
		}
		end, err := strconv.Atoi(f[5])
		if err != nil {
			return HitObject{}, errors.Wrapf(err, "spinner %q: end time", line)
		}
		ho.EndTime = end
	case typ&typeCircle != 0:
		ho.Kind = KindCircle
	default:
		// Mania holds and unknown kinds are treated as circles.
		ho.Kind = KindCircle
	}
	return ho, nil
}

// beatState returns the beat length and slider velocity multiplier in
// effect at time t. An uninherited point resets the velocity to 1.
func (b *Beatmap) beatState(t float64) (beatLength, sv float64) {
	beatLength, sv = 500, 1
	seenRed := false
	for _, tp := range b.TimingPoints {
		if tp.Time > t && seenRed {
			break
		}
		if tp.Uninherited {
			beatLength = tp.BeatLength
			sv = 1
			seenRed = true
			continue
		}
		if tp.Time <= t && tp.BeatLength < 0 {
			sv = -100 / tp.BeatLength
			if sv < 0.1 {
				sv = 0.1
			} else if sv > 10 {
				sv = 10
			}
		}
	}
	return beatLength, sv
}

// SliderEnd returns the time at which a slider's last slide finishes.
func (b *Beatmap) SliderEnd(ho HitObject) int {
	beatLength, sv := b.beatState(float64(ho.Time))
	mult := b.SliderMultiplier
	if mult <= 0 {
		mult = 1.4
	}
	dur := ho.Length / (mult * 100 * sv) * beatLength * float64(ho.Slides)
	return ho.Time + int(dur+0.5)
}
