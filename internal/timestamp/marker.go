// Package timestamp finds [m:ss] markers in assistant text and renders them
// as activatable seek targets.
package timestamp

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
)

var markerPattern = regexp.MustCompile(`\[(\d{1,2}):(\d{2})\]`)

// MaxSeconds is the largest seconds part of a valid marker.
const MaxSeconds = 59

// Marker is one [minutes:seconds] occurrence. Start and End are byte offsets
// into the text it was found in.
type Marker struct {
	Start   int    `json:"-"`
	End     int    `json:"-"`
	Minutes int    `json:"minutes"`
	Seconds int    `json:"seconds"`
	Label   string `json:"label"`
}

// Offset is the seek target in seconds.
func (m Marker) Offset() int {
	return m.Minutes*60 + m.Seconds
}

// Find returns the markers in text. Matches whose seconds part is above
// MaxSeconds, such as [1:75], are not markers.
func Find(text string) []Marker {
	matches := markerPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}

	var markers []Marker
	for _, m := range matches {
		minutes, err := strconv.Atoi(text[m[2]:m[3]])
		if err != nil {
			continue
		}
		seconds, err := strconv.Atoi(text[m[4]:m[5]])
		if err != nil || seconds > MaxSeconds {
			continue
		}
		markers = append(markers, Marker{
			Start:   m[0],
			End:     m[1],
			Minutes: minutes,
			Seconds: seconds,
			Label:   text[m[0]:m[1]],
		})
	}
	return markers
}

// Segment is a run of plain text or a single marker.
type Segment struct {
	Text   string `json:"text"`
	Marker *int   `json:"marker,omitempty"`
	Seek   *int   `json:"seek,omitempty"`
}

// Segments splits text into plain runs and markers. Marker indexes refer to
// the order returned by Find.
func Segments(text string) []Segment {
	markers := Find(text)
	segments := make([]Segment, 0, 2*len(markers)+1)

	pos := 0
	for i, m := range markers {
		if m.Start > pos {
			segments = append(segments, Segment{Text: text[pos:m.Start]})
		}
		index, seek := i, m.Offset()
		segments = append(segments, Segment{Text: m.Label, Marker: &index, Seek: &seek})
		pos = m.End
	}
	if pos < len(text) {
		segments = append(segments, Segment{Text: text[pos:]})
	}
	return segments
}

// HTML renders text with every marker wrapped in a span carrying its
// metadata. The panel binds one delegated click listener to data-seek spans;
// no executable markup is emitted and all text is escaped.
func HTML(text string, messageIndex int) string {
	var b strings.Builder
	for _, seg := range Segments(text) {
		if seg.Marker == nil {
			b.WriteString(html.EscapeString(seg.Text))
			continue
		}
		fmt.Fprintf(&b,
			`<span class="timestamp" role="button" tabindex="0" data-message="%d" data-marker="%d" data-seek="%d">%s</span>`,
			messageIndex, *seg.Marker, *seg.Seek, html.EscapeString(seg.Text),
		)
	}
	return b.String()
}

// Format renders seconds back into the [m:ss] form.
func Format(seconds int) string {
	return fmt.Sprintf("[%d:%02d]", seconds/60, seconds%60)
}
