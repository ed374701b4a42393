package verify

import (
	"encoding/base64"
	"fmt"
)

// Naming selects how evidence files are named.
type Naming string

const (
	// NamingIndex names files fail_<index>.png.
	NamingIndex Naming = "index"
	// NamingURL names files after the unpadded URL-safe base64 of the URL.
	NamingURL Naming = "url"
)

// ScreenshotName returns the evidence file name for item.
func ScreenshotName(naming Naming, item WorkItem) string {
	if naming == NamingURL {
		return base64.RawURLEncoding.EncodeToString([]byte(item.URL)) + ".png"
	}
	return fmt.Sprintf("fail_%d.png", item.Index)
}
