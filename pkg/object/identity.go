package object

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Identity is a parsed author, committer or tagger line.
type Identity struct {
	Name  string
	Email string
	When  time.Time
}

// FormatIdentity renders "Name <email> <unix seconds> <+hhmm>".
func FormatIdentity(name, email string, when time.Time) string {
	return fmt.Sprintf("%s <%s> %d %s", name, email, when.Unix(), formatTimezoneOffset(when))
}

func (id Identity) String() string {
	return FormatIdentity(id.Name, id.Email, id.When)
}

func formatTimezoneOffset(t time.Time) string {
	_, offset := t.Zone()
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	hours := offset / 3600
	minutes := (offset % 3600) / 60
	return fmt.Sprintf("%s%02d%02d", sign, hours, minutes)
}

// ParseIdentity parses an identity line. The time zone of When is a fixed
// zone carrying the recorded offset.
func ParseIdentity(s string) (Identity, error) {
	open := strings.LastIndexByte(s, '<')
	closing := strings.LastIndexByte(s, '>')
	if open < 0 || closing < open {
		return Identity{}, formatErr("parse identity", s, fmt.Errorf("missing <email>"))
	}
	id := Identity{
		Name:  strings.TrimSpace(s[:open]),
		Email: s[open+1 : closing],
	}

	fields := strings.Fields(s[closing+1:])
	if len(fields) == 0 {
		return id, nil
	}
	if len(fields) != 2 {
		return Identity{}, formatErr("parse identity", s, fmt.Errorf("want <unix> <zone> after email"))
	}
	secs, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return Identity{}, formatErr("parse identity", s, fmt.Errorf("bad timestamp %q", fields[0]))
	}
	loc, err := parseTimezoneOffset(fields[1])
	if err != nil {
		return Identity{}, formatErr("parse identity", s, err)
	}
	id.When = time.Unix(secs, 0).In(loc)
	return id, nil
}

func parseTimezoneOffset(tz string) (*time.Location, error) {
	if len(tz) != 5 || (tz[0] != '+' && tz[0] != '-') {
		return nil, fmt.Errorf("bad timezone %q", tz)
	}
	hours, err1 := strconv.Atoi(tz[1:3])
	minutes, err2 := strconv.Atoi(tz[3:5])
	if err1 != nil || err2 != nil {
		return nil, fmt.Errorf("bad timezone %q", tz)
	}
	offset := hours*3600 + minutes*60
	if tz[0] == '-' {
		offset = -offset
	}
	return time.FixedZone(tz, offset), nil
}
