package uevent

import (
	"fmt"
)

// buildPayload concatenates NUL-terminated KEY=VALUE records. action and
// seqnum are always the first two records; any caller-supplied
// ACTION/SEQNUM properties are dropped and regenerated.
func buildPayload(action string, seqnum uint64, props map[string]string) []byte {
	payload := make([]byte, 0, 256)
	payload = appendRecord(payload, "ACTION", action)
	payload = appendRecord(payload, "SEQNUM", fmt.Sprintf("%d", seqnum))

	for k, v := range props {
		if k == "ACTION" || k == "SEQNUM" {
			continue
		}
		payload = appendRecord(payload, k, v)
	}
	return payload
}

func appendRecord(buf []byte, key, value string) []byte {
	buf = append(buf, key...)
	buf = append(buf, '=')
	buf = append(buf, value...)
	buf = append(buf, 0)
	return buf
}

// Build assembles a complete libudev uevent message: header followed by
// payload, ready to be sent on the KOBJECT_UEVENT netlink socket.
func Build(action string, seqnum uint64, subsystem, devtype string, props map[string]string) []byte {
	payload := buildPayload(action, seqnum, props)
	header := buildHeader(len(payload), subsystem, devtype)
	msg := make([]byte, 0, headerSize+len(payload))
	msg = append(msg, header[:]...)
	msg = append(msg, payload...)
	return msg
}
