package mimeparse

import "encoding/json"

// Address is one entry of an envelope address list, as reported by an
// IMAP ENVELOPE response.
type Address struct {
	Name    string `json:"name"`
	Mailbox string `json:"mailbox"`
	Host    string `json:"host"`
}

// AddressListJSON encodes an address list the way the Cache Store's
// from/sender/to/cc/bcc/reply_to columns expect it: a JSON array of
// {name,mailbox,host} objects, missing components as empty strings,
// a missing list as "[]". A nil slice and an empty slice both render
// as "[]".
func AddressListJSON(addrs []Address) string {
	if len(addrs) == 0 {
		return "[]"
	}
	b, err := json.Marshal(addrs)
	if err != nil {
		return "[]"
	}
	return string(b)
}
