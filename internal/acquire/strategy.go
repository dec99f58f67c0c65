package acquire

import "time"

// Strategy describes one client impersonation attempt in the acquisition
// ladder. Mobile and TV clients come first because they dodge token checks
// that web clients trip without cookies.
type Strategy struct {
	Name         string
	PlayerClient string
	SkipPlayer   bool
	Headers      map[string]string
	NeedsCookies bool
}

var baseStrategies = []Strategy{
	{
		Name:         "Android (Primary)",
		PlayerClient: "android",
		SkipPlayer:   true,
		Headers: map[string]string{
			"User-Agent":               "com.google.android.youtube/19.45.38 (Linux; U; Android 14; en_US)",
			"X-YouTube-Client-Name":    "3",
			"X-YouTube-Client-Version": "19.45.38",
			"Accept-Language":          "en-US,en;q=0.9",
		},
	},
	{
		Name:         "iOS (Fallback)",
		PlayerClient: "ios",
		SkipPlayer:   true,
		Headers: map[string]string{
			"User-Agent":               "com.google.ios.youtube/19.45.4 (iPhone16,2; U; CPU iOS 18_1_1 like Mac OS X;)",
			"X-YouTube-Client-Name":    "5",
			"X-YouTube-Client-Version": "19.45.4",
		},
	},
	{
		Name:         "TV Client (Unrestricted)",
		PlayerClient: "tv",
		SkipPlayer:   true,
	},
	{
		Name:         "Web (Cookie-Fallback)",
		PlayerClient: "web",
		NeedsCookies: true,
	},
}

// Strategies returns the ordered ladder for one acquisition. Cookie-gated
// strategies are dropped when no cookie jar is available.
func Strategies(cookiesAvailable bool) []Strategy {
	out := make([]Strategy, 0, len(baseStrategies))
	for _, s := range baseStrategies {
		if s.NeedsCookies && !cookiesAvailable {
			continue
		}
		out = append(out, s)
	}
	return out
}

var retryDelays = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	3 * time.Second,
	5 * time.Second,
	8 * time.Second,
	10 * time.Second,
}

// DelayFor returns the pause before attempt i of the ladder. The first
// attempt runs immediately; later attempts back off up to ten seconds.
func DelayFor(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	if attempt-1 < len(retryDelays) {
		return retryDelays[attempt-1]
	}
	return retryDelays[len(retryDelays)-1]
}

// RateLimitCooldown is the extra pause inserted after a blocked or
// rate-limited attempt before the next strategy fires.
const RateLimitCooldown = 5 * time.Second
