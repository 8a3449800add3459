package rangelog

import (
	"strconv"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"
)

// icsNamespace derives stable event UIDs from a session id and position so
// repeated exports of the same log import as updates, not duplicates.
var icsNamespace = uuid.MustParse("5b0f9f0e-3c4e-4b8e-9a55-2f1f7c2d9a10")

// ICS renders the log as an iCalendar document with one tentative VEVENT
// per record. sessionID seeds the UIDs.
func (l *Log) ICS(prodID, sessionID string, now time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(prodID)

	for i, r := range l.Records() {
		uid := uuid.NewSHA1(icsNamespace, []byte(sessionID+"/"+strconv.Itoa(i))).String()
		ev := cal.AddEvent(uid)
		ev.SetDtStampTime(now.UTC())
		ev.SetCreatedTime(r.CreatedAt.UTC())
		ev.SetStartAt(r.Start.UTC())
		ev.SetEndAt(r.End.UTC())
		ev.SetSummary(r.Text)
		ev.SetStatus(ical.ObjectStatusTentative)
	}
	return cal.Serialize()
}
