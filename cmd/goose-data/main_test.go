package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ilkoid/goose-tune/pkg/dataset"
)

func TestFormatReport(t *testing.T) {
	reports := []dataset.FileReport{
		{Name: "polls.jsonl", Training: true, Examples: 3},
		{Name: "forms.jsonl", Training: true, Examples: 2},
		{Name: "broken.jsonl", Training: true, Err: errors.New("line 4: missing output")},
		{Name: "validation.jsonl"},
	}

	out := formatReport(reports)
	assert.Contains(t, out, "Training files: 2  Examples: 5  Broken: 1")
	assert.Contains(t, out, "missing output")
	assert.Contains(t, out, "skipped")
	assert.True(t, hasBroken(reports))
	assert.False(t, hasBroken(reports[:2]))
}

func TestFormatReport_Empty(t *testing.T) {
	assert.Equal(t, "No files found.", formatReport(nil))
}
