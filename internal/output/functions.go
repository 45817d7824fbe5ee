package output

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// FormatBytes converts bytes to human-readable format
func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatSpeed calculates and formats download speed
func FormatSpeed(bytes int64, elapsed float64) string {
	if elapsed == 0 {
		return "0 B/s"
	}
	bps := float64(bytes) / elapsed
	formatted := FormatBytes(uint64(bps))
	return formatted[:len(formatted)-1] + "B/s"
}

// renderBar builds a determinate progress bar string. chars holds the
// filled rune first and the empty rune last; missing runes fall back to the
// default glyphs.
func renderBar(current, total int64, width int, chars string) string {
	if width <= 0 {
		width = 30
	}
	if total <= 0 {
		total = 1
	}
	if current < 0 {
		current = 0
	}
	if current > total {
		current = total
	}
	filled, empty := StyleSymbols["hline"], " "
	runes := []rune(chars)
	if len(runes) > 0 {
		filled = string(runes[0])
	}
	if len(runes) > 1 {
		empty = string(runes[len(runes)-1])
	}
	percent := float64(current) / float64(total)
	filledWidth := max(0, min(int(percent*float64(width)), width))
	bar := StyleSymbols["bullet"]
	bar += strings.Repeat(filled, filledWidth)
	if filledWidth < width {
		bar += strings.Repeat(empty, width-filledWidth)
	}
	bar += StyleSymbols["bullet"]
	return debugStyle.Render(fmt.Sprintf("%s %.1f%%", bar, percent*100))
}

func getTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80 // Default fallback width
	}
	return width
}

func shortenFilename(name string, limit int) string {
	if limit <= 3 || len(name) <= limit {
		return name
	}
	return "..." + name[len(name)-(limit-3):]
}
