package printer

import "fmt"

// FormatBytes returns a human-readable byte size string using binary units,
// like "512 B", "1.5 KB" or "10.0 GB".
func FormatBytes(bytes int64) string {
	if bytes < 1024 {
		if bytes < 0 {
			bytes = 0
		}
		return fmt.Sprintf("%d B", bytes)
	}

	size := float64(bytes)
	for _, unit := range []string{"KB", "MB", "GB"} {
		size /= 1024
		if size < 1024 {
			return fmt.Sprintf("%.1f %s", size, unit)
		}
	}

	return fmt.Sprintf("%.1f TB", size/1024)
}
