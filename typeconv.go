package pklbridge
// Conversion in between unpickled values and Go types.

import (
	"math/big"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	ogórek "github.com/kisielk/og-rek"
)

var (
	classDatetime  = ogórek.Class{Module: "datetime", Name: "datetime"}
	classDate      = ogórek.Class{Module: "datetime", Name: "date"}
	classTimezone  = ogórek.Class{Module: "datetime", Name: "timezone"}
	classTimedelta = ogórek.Class{Module: "datetime", Name: "timedelta"}
	classTimestamp = ogórek.Class{Module: "pandas._libs.tslibs.timestamps", Name: "_unpickle_timestamp"}
)

// AsFloat64 tries to represent unpickled value as float64.
//
// Python float is decoded as float64, int as int64 and long as big.Int.
// All of them are accepted.
func AsFloat64(x any) (float64, error) {
	switch x := x.(type) {
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	case *big.Int:
		f, _ := new(big.Float).SetInt(x).Float64()
		return f, nil
	}
	return 0, errors.Newf("expect float|int|long; got %T", x)
}

// AsTime tries to represent unpickled value as time.Time.
//
// It accepts Python datetime.datetime, datetime.date and pandas.Timestamp.
// Naive datetimes and dates are taken to be in UTC. Timezone-aware values
// are supported only with datetime.timezone tzinfo, which becomes
// time.FixedZone.
func AsTime(x any) (time.Time, error) {
	switch x := x.(type) {
	case time.Time:
		return x, nil
	case ogórek.Call:
		switch x.Callable {
		case classDatetime:
			return unpickleDatetime(x.Args)
		case classDate:
			return unpickleDate(x.Args)
		case classTimestamp:
			return unpickleTimestamp(x.Args)
		}
		return time.Time{}, errors.Newf("expect datetime|date|Timestamp; got call to %s.%s",
			x.Callable.Module, x.Callable.Name)
	}
	return time.Time{}, errors.Newf("expect datetime|date|Timestamp; got %T", x)
}

// AsLabel represents unpickled value as table label.
//
// Strings are used as they are; anything else is rendered with Repr.
func AsLabel(x any) string {
	if s, err := ogórek.AsString(x); err == nil {
		return s
	}
	switch x := x.(type) {
	case int64:
		return strconv.FormatInt(x, 10)
	case ogórek.Bytes:
		return string(x)
	}
	return Repr(x)
}

// cell normalizes unpickled value for use as table cell.
//
// None becomes nil and datetime-like values become time.Time. Everything
// else is returned as is.
func cell(x any) any {
	switch v := x.(type) {
	case ogórek.None:
		return nil
	case ogórek.Call:
		if t, err := AsTime(v); err == nil {
			return t
		}
	}
	return x
}

// datetimeState returns the state bytes Python keeps in datetime pickles.
func datetimeState(x any, size int) ([]byte, error) {
	var state string
	switch x := x.(type) {
	case ogórek.Bytes:
		state = string(x)
	case string:
		state = x // py2 str
	default:
		b, err := ogórek.AsBytes(x)
		if err != nil {
			return nil, err
		}
		state = string(b)
	}
	if len(state) != size {
		return nil, errors.Newf("datetime state: expect %d bytes; got %d", size, len(state))
	}
	return []byte(state), nil
}

// unpickleDatetime handles datetime.datetime(state[, tzinfo]).
//
// state is 10 bytes: year (2, big endian), month, day, hour, minute, second,
// microsecond (3, big endian). The high bit of month carries the fold flag.
func unpickleDatetime(argv ogórek.Tuple) (time.Time, error) {
	if len(argv) != 1 && len(argv) != 2 {
		return time.Time{}, errors.Newf("datetime: expect (state[, tzinfo]); got %d args", len(argv))
	}
	s, err := datetimeState(argv[0], 10)
	if err != nil {
		return time.Time{}, err
	}

	loc := time.UTC
	if len(argv) == 2 {
		loc, err = unpickleTimezone(argv[1])
		if err != nil {
			return time.Time{}, err
		}
	}

	year := int(s[0])<<8 | int(s[1])
	us := int(s[7])<<16 | int(s[8])<<8 | int(s[9])
	return time.Date(year, time.Month(s[2]&0x7f), int(s[3]),
		int(s[4]), int(s[5]), int(s[6]), us*1000, loc), nil
}

// unpickleDate handles datetime.date(state) with 4 bytes state: year (2, big endian), month, day.
func unpickleDate(argv ogórek.Tuple) (time.Time, error) {
	if len(argv) != 1 {
		return time.Time{}, errors.Newf("date: expect (state,); got %d args", len(argv))
	}
	s, err := datetimeState(argv[0], 4)
	if err != nil {
		return time.Time{}, err
	}
	year := int(s[0])<<8 | int(s[1])
	return time.Date(year, time.Month(s[2]), int(s[3]), 0, 0, 0, 0, time.UTC), nil
}

// timestampUnits maps numpy datetime unit codes, as pandas pickles them, to nanoseconds.
var timestampUnits = map[int64]int64{
	7:  int64(time.Second),
	8:  int64(time.Millisecond),
	9:  int64(time.Microsecond),
	10: 1,
}

// unpickleTimestamp handles pandas _unpickle_timestamp(value, freq, tz[, reso]).
func unpickleTimestamp(argv ogórek.Tuple) (time.Time, error) {
	if len(argv) != 3 && len(argv) != 4 {
		return time.Time{}, errors.Newf("Timestamp: expect (value, freq, tz[, reso]); got %d args", len(argv))
	}
	value, err := ogórek.AsInt64(argv[0])
	if err != nil {
		return time.Time{}, errors.Wrap(err, "Timestamp")
	}

	unit := int64(1)
	if len(argv) == 4 {
		reso, err := ogórek.AsInt64(argv[3])
		if err != nil {
			return time.Time{}, errors.Wrap(err, "Timestamp: reso")
		}
		var ok bool
		unit, ok = timestampUnits[reso]
		if !ok {
			return time.Time{}, errors.Newf("Timestamp: unsupported resolution %d", reso)
		}
	}

	loc := time.UTC
	if tz := argv[2]; tz != (ogórek.None{}) {
		loc, err = unpickleTimezone(tz)
		if err != nil {
			return time.Time{}, err
		}
	}

	sec, rem := value/(int64(time.Second)/unit), value%(int64(time.Second)/unit)
	return time.Unix(sec, rem*unit).In(loc), nil
}

// unpickleTimezone handles datetime.timezone(timedelta[, name]) tzinfo.
func unpickleTimezone(x any) (*time.Location, error) {
	if x == (ogórek.None{}) {
		return time.UTC, nil
	}
	tz, ok := x.(ogórek.Call)
	if !ok || tz.Callable != classTimezone || len(tz.Args) < 1 || len(tz.Args) > 2 {
		return nil, errors.Newf("tzinfo: only datetime.timezone is supported; got %s", Repr(x))
	}

	offset, err := unpickleTimedelta(tz.Args[0])
	if err != nil {
		return nil, errors.Wrap(err, "tzinfo")
	}

	name := ""
	if len(tz.Args) == 2 {
		name, err = ogórek.AsString(tz.Args[1])
		if err != nil {
			return nil, errors.Wrap(err, "tzinfo: name")
		}
	}
	if offset == 0 && name == "" {
		return time.UTC, nil
	}
	return time.FixedZone(name, int(offset/time.Second)), nil
}

// unpickleTimedelta handles datetime.timedelta(days, seconds, microseconds).
func unpickleTimedelta(x any) (time.Duration, error) {
	td, ok := x.(ogórek.Call)
	if !ok || td.Callable != classTimedelta || len(td.Args) != 3 {
		return 0, errors.Newf("expect timedelta; got %s", Repr(x))
	}
	var v [3]int64
	for i := range v {
		n, err := ogórek.AsInt64(td.Args[i])
		if err != nil {
			return 0, errors.Wrap(err, "timedelta")
		}
		v[i] = n
	}
	return time.Duration(v[0])*24*time.Hour +
		time.Duration(v[1])*time.Second +
		time.Duration(v[2])*time.Microsecond, nil
}

// pydatetime returns t in the form Python pickles datetime.datetime.
//
// Times in UTC are pickled naive; other locations get datetime.timezone
// with the fixed offset t has.
func pydatetime(t time.Time) ogórek.Call {
	y, us := t.Year(), t.Nanosecond()/1000
	state := []byte{
		byte(y >> 8), byte(y), byte(t.Month()), byte(t.Day()),
		byte(t.Hour()), byte(t.Minute()), byte(t.Second()),
		byte(us >> 16), byte(us >> 8), byte(us),
	}
	argv := ogórek.Tuple{ogórek.Bytes(state)}
	if t.Location() != time.UTC {
		_, offset := t.Zone()
		argv = append(argv, pytimezone(offset))
	}
	return ogórek.Call{Callable: classDatetime, Args: argv}
}

// pytimezone returns datetime.timezone with UTC offset of offset seconds.
func pytimezone(offset int) ogórek.Call {
	days := int64(offset) / 86400
	secs := int64(offset) % 86400
	if secs < 0 {
		days--
		secs += 86400
	}
	delta := ogórek.Call{
		Callable: classTimedelta,
		Args:     ogórek.Tuple{days, secs, int64(0)},
	}
	return ogórek.Call{Callable: classTimezone, Args: ogórek.Tuple{delta}}
}
