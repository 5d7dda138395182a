package schedule

import (
	"crypto/md5"
	"encoding/hex"
	"strings"

	"edtcal/internal/model"
)

// StableUID derives the durable identifier of one course occurrence from
// (user, date, start, subject, room). Re-fetching the same day reproduces
// the same UID for the same underlying occurrence, which is what lets
// calendar subscribers recognize "same event, not a duplicate" across
// polls. MD5 here is an identity function, not a security boundary; the
// algorithm is fixed so UIDs stay stable for existing subscriptions.
func StableUID(user string, date model.CivilDate, c model.Course) string {
	data := strings.Join([]string{user, date.String(), c.Start, c.Subject, c.Room}, "|")
	sum := md5.Sum([]byte(data))
	return hex.EncodeToString(sum[:])
}
