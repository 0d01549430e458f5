package main

import (
	"github.com/framevault/dedupe-engine/internal/resolution"
	"github.com/framevault/dedupe-engine/pkg/models"
)

// Built-in metadata conditionals. The engine core treats these as an opaque
// host capability keyed by summary string; this is the host side of that
// contract, covering the filters the default rules and the configuration UI
// offer out of the box.

type mimeConditional struct {
	mime    string
	summary string
}

func (m mimeConditional) Test(media *models.MediaResult) bool {
	return media.Mime == m.mime
}

func (m mimeConditional) Summary() string { return m.summary }

type filesizeOverConditional struct {
	bytes   int64
	summary string
}

func (f filesizeOverConditional) Test(media *models.MediaResult) bool {
	return media.Filesize > f.bytes
}

func (f filesizeOverConditional) Summary() string { return f.summary }

type filesizeUnderConditional struct {
	bytes   int64
	summary string
}

func (f filesizeUnderConditional) Test(media *models.MediaResult) bool {
	return media.Filesize > 0 && media.Filesize < f.bytes
}

func (f filesizeUnderConditional) Summary() string { return f.summary }

type iccConditional struct{}

func (iccConditional) Test(media *models.MediaResult) bool { return media.HasICC }

func (iccConditional) Summary() string { return "has icc profile" }

var builtinConditionals = func() map[string]resolution.MetadataConditional {
	conditionals := []resolution.MetadataConditional{
		mimeConditional{mime: "image/jpeg", summary: "filetype is jpeg"},
		mimeConditional{mime: "image/png", summary: "filetype is png"},
		mimeConditional{mime: "image/webp", summary: "filetype is webp"},
		mimeConditional{mime: "image/gif", summary: "filetype is gif"},
		iccConditional{},
		filesizeOverConditional{bytes: 1 << 20, summary: "filesize over 1MiB"},
		filesizeUnderConditional{bytes: 100 << 10, summary: "filesize under 100KB"},
	}

	m := make(map[string]resolution.MetadataConditional, len(conditionals))
	for _, c := range conditionals {
		m[c.Summary()] = c
	}
	return m
}()

// resolveConditional is the ConditionalResolver handed to the rule engine and
// the persistence layer.
func resolveConditional(key string) (resolution.MetadataConditional, bool) {
	c, ok := builtinConditionals[key]
	return c, ok
}
