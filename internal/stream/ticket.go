package stream

import (
	"encoding/base64"
	"encoding/json"
)

// EncodeTicket renders a ticket in its wire form: base64 of the JSON
// encoding. The wire form is the only ticket artifact intended to leave the
// process.
func EncodeTicket(t *ShareTicket) (string, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return "", invalidHashf("encoding ticket: %v", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodeTicket parses a wire-form ticket. Malformed base64 and malformed
// JSON both fail with ErrInvalidHash.
func DecodeTicket(encoded string) (*ShareTicket, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, invalidHashf("ticket is not valid base64: %v", err)
	}
	var t ShareTicket
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, invalidHashf("ticket payload is not valid JSON: %v", err)
	}
	return &t, nil
}
