package training

// Streak returns the number of consecutive training days ending today, or
// ending yesterday when there was no session today. Dates after today are
// ignored and duplicates count once.
func Streak(dates []Date, today Date) int {
	seen := make(map[Date]struct{}, len(dates))
	for _, d := range dates {
		if d.After(today) {
			continue
		}
		seen[d] = struct{}{}
	}

	cursor := today
	if _, ok := seen[cursor]; !ok {
		cursor = today.AddDays(-1)
		if _, ok := seen[cursor]; !ok {
			return 0
		}
	}

	streak := 0
	for {
		if _, ok := seen[cursor]; !ok {
			return streak
		}
		streak++
		cursor = cursor.AddDays(-1)
	}
}
