package httpapi

import (
	"net/url"
	"strconv"
	"strings"
)

// parseUintList parses a CSV query parameter of uint32 values, e.g.
// message_uids=1,2,3. An empty string yields a nil, not an error.
func parseUintList(csv string) ([]uint32, error) {
	if csv == "" {
		return nil, nil
	}
	parts := strings.Split(csv, ",")
	out := make([]uint32, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(p), 10, 32)
		if err != nil {
			return nil, err
		}
		out = append(out, uint32(n))
	}
	return out, nil
}

// parseStringList parses a CSV query parameter of flag tokens, e.g.
// flags=Seen,Answered.
func parseStringList(csv string) []string {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

func queryInt(q url.Values, key string) (int, bool, error) {
	v := q.Get(key)
	if v == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, true, err
	}
	return n, true, nil
}

func queryUint16(q url.Values, key string) (uint16, bool, error) {
	v := q.Get(key)
	if v == "" {
		return 0, false, nil
	}
	n, err := strconv.ParseUint(v, 10, 16)
	if err != nil {
		return 0, true, err
	}
	return uint16(n), true, nil
}

func queryUint32(q url.Values, key string) (uint32, bool, error) {
	v := q.Get(key)
	if v == "" {
		return 0, false, nil
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, true, err
	}
	return uint32(n), true, nil
}

func queryBool(q url.Values, key string) (bool, bool, error) {
	v := q.Get(key)
	if v == "" {
		return false, false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, true, err
	}
	return b, true, nil
}
