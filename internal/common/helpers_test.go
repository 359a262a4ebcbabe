package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatTimeGapPicksCoarsestUnit(t *testing.T) {
	cases := []struct {
		seconds int64
		want    string
	}{
		{50, "50 seconds"},
		{59, "59 seconds"},
		{60, "1 minute"},
		{90, "1 minute"},
		{120, "2 minutes"},
		{3600, "1 hour"},
		{7200, "2 hours"},
		{86400, "1 day"},
		{90000, "1 day"},
		{172800, "2 days"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, FormatTimeGap(c.seconds), "seconds=%d", c.seconds)
	}
}

func TestFormatSigned(t *testing.T) {
	assert.Equal(t, "+35", FormatSigned(35))
	assert.Equal(t, "-12", FormatSigned(-12))
	assert.Equal(t, "0", FormatSigned(0))
}
