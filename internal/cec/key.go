package cec

import (
	"fmt"
	"sort"
)

// Key is an HDMI-CEC user control code.
type Key int

const (
	KeySelect      Key = 0x00
	KeyUp          Key = 0x01
	KeyDown        Key = 0x02
	KeyLeft        Key = 0x03
	KeyRight       Key = 0x04
	KeyRootMenu    Key = 0x09
	KeyExit        Key = 0x0D
	KeyNumber0     Key = 0x20
	KeyNumber1     Key = 0x21
	KeyNumber2     Key = 0x22
	KeyNumber3     Key = 0x23
	KeyNumber4     Key = 0x24
	KeyNumber5     Key = 0x25
	KeyNumber6     Key = 0x26
	KeyNumber7     Key = 0x27
	KeyNumber8     Key = 0x28
	KeyNumber9     Key = 0x29
	KeyEnter       Key = 0x2B
	KeyChannelUp   Key = 0x30
	KeyChannelDown Key = 0x31
	KeyPlay        Key = 0x44
	KeyStop        Key = 0x45
	KeyPause       Key = 0x46
	KeyRewind      Key = 0x48
	KeyFastForward Key = 0x49
	KeyBlue        Key = 0x71
	KeyRed         Key = 0x72
	KeyGreen       Key = 0x73
	KeyYellow      Key = 0x74
)

var keyNames = map[Key]string{
	KeySelect:      "select",
	KeyUp:          "up",
	KeyDown:        "down",
	KeyLeft:        "left",
	KeyRight:       "right",
	KeyRootMenu:    "root_menu",
	KeyExit:        "exit",
	KeyNumber0:     "0",
	KeyNumber1:     "1",
	KeyNumber2:     "2",
	KeyNumber3:     "3",
	KeyNumber4:     "4",
	KeyNumber5:     "5",
	KeyNumber6:     "6",
	KeyNumber7:     "7",
	KeyNumber8:     "8",
	KeyNumber9:     "9",
	KeyEnter:       "enter",
	KeyChannelUp:   "channel_up",
	KeyChannelDown: "channel_down",
	KeyPlay:        "play",
	KeyStop:        "stop",
	KeyPause:       "pause",
	KeyRewind:      "rewind",
	KeyFastForward: "fast_forward",
	KeyBlue:        "blue",
	KeyRed:         "red",
	KeyGreen:       "green",
	KeyYellow:      "yellow",
}

// Keys lists every enumerated key in code order.
func Keys() []Key {
	out := make([]Key, 0, len(keyNames))
	for k := range keyNames {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (k Key) String() string {
	if name, ok := keyNames[k]; ok {
		return name
	}
	return fmt.Sprintf("key(0x%02x)", int(k))
}

// Known reports whether k is one of the enumerated keys.
func (k Key) Known() bool {
	_, ok := keyNames[k]
	return ok
}
