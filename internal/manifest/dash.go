package manifest

import (
	"encoding/base64"
	"encoding/xml"
	"strconv"
	"strings"

	"tidarr/internal/models"
	"tidarr/internal/utils/logging"
)

const numberPlaceholder = "$Number$"

// DASH document shapes, trimmed to the first
// Period/AdaptationSet/Representation path the resolver walks.
type mpdDoc struct {
	Periods []mpdPeriod `xml:"Period"`
}

type mpdPeriod struct {
	AdaptationSets []mpdAdaptationSet `xml:"AdaptationSet"`
}

type mpdAdaptationSet struct {
	Representations []mpdRepresentation `xml:"Representation"`
}

type mpdRepresentation struct {
	SegmentTemplate *mpdSegmentTemplate `xml:"SegmentTemplate"`
}

type mpdSegmentTemplate struct {
	Initialization string       `xml:"initialization,attr"`
	Media          string       `xml:"media,attr"`
	StartNumber    *int         `xml:"startNumber,attr"`
	Timeline       *mpdTimeline `xml:"SegmentTimeline"`
}

type mpdTimeline struct {
	Segments []mpdTimelineEntry `xml:"S"`
}

type mpdTimelineEntry struct {
	Duration int64 `xml:"d,attr"`
	Repeat   int   `xml:"r,attr"`
}

// TrackSegments decodes the base64 DASH manifest and expands its segment
// template into the ordered descriptor list: the initialization URL at
// ordinal 0, then one descriptor per timeline occurrence with successive
// numbers substituted into the media template.
func (r *Resolver) TrackSegments(payload string) ([]models.SegmentDescriptor, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, &ManifestError{Detail: "audio manifest is not valid base64", Err: err}
	}

	var doc mpdDoc
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, &ManifestError{Detail: "audio manifest is not valid XML", Err: err}
	}

	tmpl, err := firstSegmentTemplate(&doc)
	if err != nil {
		return nil, err
	}

	switch {
	case tmpl.Initialization == "":
		return nil, &ManifestError{Detail: "SegmentTemplate is missing the initialization attribute"}
	case tmpl.Media == "":
		return nil, &ManifestError{Detail: "SegmentTemplate is missing the media attribute"}
	case !strings.Contains(tmpl.Media, numberPlaceholder):
		return nil, &ManifestError{Detail: "media template has no " + numberPlaceholder + " placeholder"}
	case tmpl.StartNumber == nil:
		return nil, &ManifestError{Detail: "SegmentTemplate is missing the startNumber attribute"}
	case tmpl.Timeline == nil || len(tmpl.Timeline.Segments) == 0:
		return nil, &ManifestError{Detail: "SegmentTimeline is missing or empty"}
	}

	segs := []models.SegmentDescriptor{{
		URL:      tmpl.Initialization,
		Filename: segmentFilename(tmpl.Initialization, 0, ".mp4"),
		Ordinal:  0,
	}}

	number := *tmpl.StartNumber
	for _, entry := range tmpl.Timeline.Segments {
		if entry.Duration <= 0 {
			return nil, &ManifestError{Detail: "timeline entry is missing the d attribute"}
		}
		for i := 0; i <= entry.Repeat; i++ {
			segURL := strings.ReplaceAll(tmpl.Media, numberPlaceholder, strconv.Itoa(number))
			ordinal := len(segs)
			segs = append(segs, models.SegmentDescriptor{
				URL:      segURL,
				Filename: segmentFilename(segURL, ordinal, ".m4s"),
				Ordinal:  ordinal,
			})
			number++
		}
	}

	logging.D(1, "DASH template expanded to %d segment(s) (start number %d)", len(segs), *tmpl.StartNumber)
	return segs, nil
}

// firstSegmentTemplate walks first Period → first AdaptationSet → first
// Representation → SegmentTemplate, erroring on whichever level is absent.
func firstSegmentTemplate(doc *mpdDoc) (*mpdSegmentTemplate, error) {
	if len(doc.Periods) == 0 {
		return nil, &ManifestError{Detail: "manifest has no Period"}
	}
	period := doc.Periods[0]
	if len(period.AdaptationSets) == 0 {
		return nil, &ManifestError{Detail: "Period has no AdaptationSet"}
	}
	set := period.AdaptationSets[0]
	if len(set.Representations) == 0 {
		return nil, &ManifestError{Detail: "AdaptationSet has no Representation"}
	}
	rep := set.Representations[0]
	if rep.SegmentTemplate == nil {
		return nil, &ManifestError{Detail: "Representation has no SegmentTemplate"}
	}
	return rep.SegmentTemplate, nil
}
