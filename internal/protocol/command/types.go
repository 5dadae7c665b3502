package command

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
)

// Type is the command tag. Its ordinal is the wire identity: values are
// frozen once released and new variants are only ever appended.
type Type int32

const (
	UserExit Type = iota
	PCLockWithTimer
	PCLock
	PCUnlock
	PCRestart
	PCLogOff
	PCShutdown
	Message
	ClientLoginInform
	ClientLogOffInform
	IsNameExists
	SendClientList
	FreeCommand

	typeCount
)

var typeNames = [typeCount]string{
	UserExit:           "user_exit",
	PCLockWithTimer:    "pc_lock_with_timer",
	PCLock:             "pc_lock",
	PCUnlock:           "pc_unlock",
	PCRestart:          "pc_restart",
	PCLogOff:           "pc_log_off",
	PCShutdown:         "pc_shutdown",
	Message:            "message",
	ClientLoginInform:  "client_login_inform",
	ClientLogOffInform: "client_log_off_inform",
	IsNameExists:       "is_name_exists",
	SendClientList:     "send_client_list",
	FreeCommand:        "free_command",
}

func (t Type) Valid() bool {
	return t >= 0 && t < typeCount
}

func (t Type) String() string {
	if !t.Valid() {
		return fmt.Sprintf("type(%d)", int32(t))
	}
	return typeNames[t]
}

// ParseType accepts the snake-case name or the decimal ordinal.
func ParseType(raw string) (Type, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	for i, name := range typeNames {
		if name == key {
			return Type(i), nil
		}
	}
	if n, err := strconv.ParseInt(key, 10, 32); err == nil && Type(n).Valid() {
		return Type(n), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownType, raw)
}

// Types lists every known variant in ordinal order.
func Types() []Type {
	out := make([]Type, 0, typeCount)
	for t := Type(0); t < typeCount; t++ {
		out = append(out, t)
	}
	return out
}

// Command is one instruction destined for the server.
type Command struct {
	Type     Type
	Target   netip.Addr
	Metadata []byte
}

func New(t Type, target netip.Addr, metadata []byte) Command {
	return Command{Type: t, Target: target, Metadata: metadata}
}

func (c Command) String() string {
	return fmt.Sprintf("%s target=%s metadata=%dB", c.Type, c.Target, len(c.Metadata))
}
