package printer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatBytes(t *testing.T) {
	tests := map[string]struct {
		size int64
		exp  string
	}{
		"Empty output.":                 {size: 0, exp: "0 B"},
		"Negative sizes are clamped.":   {size: -1, exp: "0 B"},
		"Short output stays in bytes.":  {size: 1023, exp: "1023 B"},
		"Kilobytes have one decimal.":   {size: 1536, exp: "1.5 KB"},
		"Megabytes of command output.":  {size: 3*1024*1024 + 512*1024, exp: "3.5 MB"},
		"Gigabytes.":                    {size: 10 << 30, exp: "10.0 GB"},
		"Terabytes are the last unit.":  {size: 2048 << 30, exp: "2.0 TB"},
		"Huge values stay in terabytes": {size: 5000 << 30, exp: "4.9 TB"},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.exp, FormatBytes(test.size))
		})
	}
}
