package meeting

import (
	"fmt"
	"time"
)

// Messages are appended to the announcement, one picked at random per meeting.
var Messages = []string{
	"Stuck on something at work? Talk it through over a break, a good idea might pop up! :hugging_face:",
	"Small talk often turns into the conversation that unblocks you. Come say hi!",
	"Most people can only focus for 30 to 50 minutes at a stretch. A short pause makes the next one count!",
	"Stand up, stretch, grab a drink and come chat for a few minutes!",
	"Creative ideas often come from casual talk. Meet the people you never work with directly!",
}

// Announcement renders the chat message for a freshly created room. Times
// are shown in loc and the length is the provider-confirmed duration.
func Announcement(m Info, loc *time.Location, message string) string {
	start := m.StartTime.In(loc)
	end := start.Add(time.Duration(m.DurationMinutes) * time.Minute)
	return fmt.Sprintf("@here How about a short break? :coffee: %s-%s (%d minutes only)\n:zoom: %s\n%s",
		start.Format("15:04"), end.Format("15:04"), m.DurationMinutes, m.JoinURL, message)
}
