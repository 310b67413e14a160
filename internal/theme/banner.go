package theme

import (
	"fmt"
	"io"
)

const (
	cyan    = "\033[36m"
	magenta = "\033[35m"
	reset   = "\033[0m"
)

// Banner returns the startup banner for the given bot handle.
func Banner(handle string) string {
	return "" +
		magenta + "  ~ reputest ~" + reset + "\n" +
		cyan + "  good vibes and megajoules, on the record\n" + reset +
		fmt.Sprintf("  watching @%s\n", handle)
}

// PrintBanner writes the banner to w.
func PrintBanner(w io.Writer, handle string) {
	fmt.Fprint(w, Banner(handle))
}
