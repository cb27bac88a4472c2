package finance

import "time"

// getEasternTime returns America/New_York location, falling back to fixed EST if tzdata is missing.
func getEasternTime() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.FixedZone("EST", -5*3600)
	}
	return loc
}

// AsOf formats t as a market-time stamp for captions, e.g. "Jan 02 15:04 ET".
func AsOf(t time.Time) string {
	return t.In(getEasternTime()).Format("Jan 02 15:04") + " ET"
}
