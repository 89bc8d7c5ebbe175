package clicks

import (
	"strings"

	"github.com/wadjakorntonsri/trimrr/pkg/core/domain"
)

var tabletTokens = []string{"ipad", "tablet", "kindle", "silk", "playbook"}

var mobileTokens = []string{"mobi", "iphone", "ipod", "android", "blackberry", "windows phone", "opera mini"}

// ClassifyDevice maps a raw user agent to a device category.
// Tablets are checked first since most tablet agents also carry a mobile token.
func ClassifyDevice(userAgent string) domain.DeviceCategory {
	ua := strings.ToLower(strings.TrimSpace(userAgent))
	if ua == "" {
		return domain.DeviceUnknown
	}

	if containsAny(ua, tabletTokens) {
		return domain.DeviceTablet
	}
	// Android tablets drop "mobile" from the agent
	if strings.Contains(ua, "android") && !strings.Contains(ua, "mobile") {
		return domain.DeviceTablet
	}
	if containsAny(ua, mobileTokens) {
		return domain.DeviceMobile
	}

	return domain.DeviceDesktop
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
