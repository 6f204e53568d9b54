package store

import (
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/roach88/healthstore/internal/errs"
)

// timeToken resumes a record listing ordered by (start time, row id). It
// stores the timestamp of the last returned row and how many rows with that
// timestamp were already returned; a plain row-id cursor would skip or
// repeat rows when rows sharing the timestamp are inserted between pages.
type timeToken struct {
	Timestamp int64
	Offset    int
	Ascending bool
}

// rowToken resumes a listing ordered by row id alone.
type rowToken struct {
	LastRowID int64
}

const (
	timeTokenTag = "t"
	rowTokenTag  = "r"
)

func (t timeToken) encode() string {
	dir := "a"
	if !t.Ascending {
		dir = "d"
	}
	raw := strings.Join([]string{timeTokenTag, strconv.FormatInt(t.Timestamp, 10), strconv.Itoa(t.Offset), dir}, ":")
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func (t rowToken) encode() string {
	raw := rowTokenTag + ":" + strconv.FormatInt(t.LastRowID, 10)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeToken(token string) ([]string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, errs.ValidationField("page_token", "malformed page token")
	}
	return strings.Split(string(raw), ":"), nil
}

func decodeTimeToken(token string) (timeToken, error) {
	parts, err := decodeToken(token)
	if err != nil {
		return timeToken{}, err
	}
	if len(parts) != 4 || parts[0] != timeTokenTag || (parts[3] != "a" && parts[3] != "d") {
		return timeToken{}, errs.ValidationField("page_token", "page token was not issued for a record listing")
	}
	ts, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return timeToken{}, errs.ValidationField("page_token", "malformed page token timestamp")
	}
	offset, err := strconv.Atoi(parts[2])
	if err != nil || offset < 0 {
		return timeToken{}, errs.ValidationField("page_token", "malformed page token offset")
	}
	return timeToken{Timestamp: ts, Offset: offset, Ascending: parts[3] == "a"}, nil
}

func decodeRowToken(token string) (rowToken, error) {
	parts, err := decodeToken(token)
	if err != nil {
		return rowToken{}, err
	}
	if len(parts) != 2 || parts[0] != rowTokenTag {
		return rowToken{}, errs.ValidationField("page_token", "page token was not issued for a resource listing")
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return rowToken{}, errs.ValidationField("page_token", "malformed page token row id")
	}
	return rowToken{LastRowID: id}, nil
}
