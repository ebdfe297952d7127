// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package rtmp

import (
	"bytes"
	"encoding/xml"

	"golang.org/x/net/html/charset"

	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/normalize"
)

// Video is the video track metadata nginx-rtmp reports for a stream.
type Video struct {
	Width     *int     `json:"width"`
	Height    *int     `json:"height"`
	FrameRate *float64 `json:"frame_rate"`
	Codec     *string  `json:"codec"`
}

// Audio is the audio track metadata nginx-rtmp reports for a stream.
type Audio struct {
	Codec      *string `json:"codec"`
	SampleRate *int    `json:"sample_rate"`
	Channels   *int    `json:"channels"`
}

// LiveStream is a point-in-time view of one published stream.
type LiveStream struct {
	Name  string `json:"name"`
	Video Video  `json:"video"`
	Audio Audio  `json:"audio"`
}

type statDocument struct {
	Servers []struct {
		Applications []statApplication `xml:"application"`
	} `xml:"server"`
}

type statApplication struct {
	Name *string `xml:"name"`
	Live struct {
		Streams []statStream `xml:"stream"`
	} `xml:"live"`
}

type statStream struct {
	Name string `xml:"name"`
	Meta struct {
		Video *struct {
			Width     *string `xml:"width"`
			Height    *string `xml:"height"`
			FrameRate *string `xml:"frame_rate"`
			Codec     *string `xml:"codec"`
		} `xml:"video"`
		Audio *struct {
			Codec      *string `xml:"codec"`
			SampleRate *string `xml:"sample_rate"`
			Channels   *string `xml:"channels"`
		} `xml:"audio"`
	} `xml:"meta"`
}

// decodeStats parses a statistics document. ok is false when it is not
// well-formed.
func decodeStats(data []byte) (doc statDocument, ok bool) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel
	if err := dec.Decode(&doc); err != nil {
		return statDocument{}, false
	}
	return doc, true
}

func (d statDocument) streams(app string) []statStream {
	var out []statStream
	for _, srv := range d.Servers {
		for _, a := range srv.Applications {
			if a.Name == nil || *a.Name != app {
				continue
			}
			out = append(out, a.Live.Streams...)
		}
	}
	return out
}

// ParseApplication returns every stream published to app. A document that
// is not well-formed yields an empty slice.
func ParseApplication(data []byte, app string) []LiveStream {
	doc, ok := decodeStats(data)
	if !ok {
		return []LiveStream{}
	}
	raw := doc.streams(app)
	out := make([]LiveStream, 0, len(raw))
	for _, s := range raw {
		ls := LiveStream{Name: s.Name}
		if v := s.Meta.Video; v != nil {
			ls.Video = Video{
				Width:     normalize.ParseIntPtr(v.Width),
				Height:    normalize.ParseIntPtr(v.Height),
				FrameRate: normalize.ParseFloatPtr(v.FrameRate),
				Codec:     v.Codec,
			}
		}
		if a := s.Meta.Audio; a != nil {
			ls.Audio = Audio{
				Codec:      a.Codec,
				SampleRate: normalize.ParseIntPtr(a.SampleRate),
				Channels:   normalize.ParseIntPtr(a.Channels),
			}
		}
		out = append(out, ls)
	}
	return out
}

// ActiveStreamNames returns the non-empty stream names published to app.
func ActiveStreamNames(data []byte, app string) []string {
	doc, ok := decodeStats(data)
	if !ok {
		return []string{}
	}
	names := []string{}
	for _, s := range doc.streams(app) {
		if s.Name != "" {
			names = append(names, s.Name)
		}
	}
	return names
}
